// Package transports provides byte-level connections to an LX-16A servo bus.
package transports

import (
	"io"
	"time"
)

// DefaultBaudRate is the fixed LX-16A bus speed.
const DefaultBaudRate = 115200

// Conn is the contract every backend satisfies. Read returns (0, nil) when
// nothing arrives within the read timeout.
type Conn interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
	Flush() error
}

// SerialConfig holds configuration for opening a serial port.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

func (cfg *SerialConfig) setDefaults() {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
}
