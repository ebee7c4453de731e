package lx16a

import (
	"io"
	"time"
)

// Transport is the interface for low-level communication with the servo bus.
// This abstraction allows for testing with mock implementations.
//
// Read must return (0, nil) when no bytes arrive within the read timeout.
// Any other error is treated as a hard I/O failure.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout sets the read timeout duration.
	SetReadTimeout(timeout time.Duration) error

	// Flush discards any buffered input data.
	Flush() error
}
