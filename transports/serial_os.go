//go:build !baremetal

package transports

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialTransport implements Conn using a hardware serial port.
type SerialTransport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
}

// OpenSerial opens a serial port with the given configuration.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}
	cfg.setDefaults()

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &SerialTransport{
		port:     port,
		portName: cfg.Port,
		timeout:  cfg.Timeout,
	}, nil
}

// Read returns (0, nil) when the read timeout expires with no data.
func (t *SerialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

func (t *SerialTransport) SetReadTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return t.port.SetReadTimeout(timeout)
}

// Flush discards bytes the driver has received but nobody has read.
func (t *SerialTransport) Flush() error {
	return t.port.ResetInputBuffer()
}

// PortName returns the serial port name.
func (t *SerialTransport) PortName() string {
	return t.portName
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
