//go:build baremetal

package transports

import (
	"errors"
	"fmt"
	"machine"
	"time"
)

// MCUTransport drives the bus from a microcontroller UART under TinyGo.
type MCUTransport struct {
	*machine.UART
	timeout time.Duration
}

var currentTransport MCUTransport

// OpenSerial configures UART "0" or "1" for the bus.
func OpenSerial(cfg SerialConfig) (*MCUTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}
	cfg.setDefaults()

	switch cfg.Port {
	case "0":
		currentTransport = MCUTransport{UART: machine.UART0}
	case "1":
		currentTransport = MCUTransport{UART: machine.UART1}
	default:
		return nil, fmt.Errorf("unknown UART %s", cfg.Port)
	}

	currentTransport.SetBaudRate(uint32(cfg.BaudRate))
	currentTransport.timeout = cfg.Timeout

	return &currentTransport, nil
}

// Read polls the UART receive buffer until data arrives or the timeout passes.
func (t *MCUTransport) Read(p []byte) (int, error) {
	deadline := time.Now().Add(t.timeout)
	for {
		if t.Buffered() > 0 {
			return t.UART.Read(p)
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func (t *MCUTransport) SetReadTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

func (t *MCUTransport) Close() error {
	return nil
}

func (t *MCUTransport) Flush() error {
	for t.Buffered() > 0 {
		if _, err := t.ReadByte(); err != nil {
			return err
		}
	}
	return nil
}
