//go:build !baremetal

package transports

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// tarmPollInterval is the read timeout the port is opened with. The tarm
// driver cannot change it afterwards, so Read polls in slices of this size.
const tarmPollInterval = 10 * time.Millisecond

// TarmTransport implements Conn on github.com/tarm/serial, for platforms
// where go.bug.st/serial is unavailable.
type TarmTransport struct {
	port     *serial.Port
	portName string
	timeout  time.Duration
}

// OpenTarm opens a serial port through the tarm driver.
func OpenTarm(cfg SerialConfig) (*TarmTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}
	cfg.setDefaults()

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: tarmPollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	return &TarmTransport{
		port:     port,
		portName: cfg.Port,
		timeout:  cfg.Timeout,
	}, nil
}

func (t *TarmTransport) Read(p []byte) (int, error) {
	return pollRead(t.port, p, t.timeout)
}

func (t *TarmTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *TarmTransport) Close() error {
	return t.port.Close()
}

func (t *TarmTransport) SetReadTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

func (t *TarmTransport) Flush() error {
	return t.port.Flush()
}

// PortName returns the serial port name.
func (t *TarmTransport) PortName() string {
	return t.portName
}

// pollRead repeats short reads on r until data arrives or timeout passes.
// The tarm driver reports an expired poll as io.EOF, which means no data here.
func pollRead(r io.Reader, p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		n, err := r.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
	}
}
