package lx16a

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout   = errors.New("communication timeout")
	ErrBusClosed = errors.New("bus is closed")
	ErrInvalidID = errors.New("invalid servo ID")

	// Framing errors. These stay inside the bus read loop and only reach
	// callers through Decode.
	ErrIncompleteFrame = errors.New("incomplete frame")
	ErrBadHeader       = errors.New("bad frame header")
	ErrBadChecksum     = errors.New("bad frame checksum")

	// ErrBadReply means a frame decoded cleanly but its payload does not fit
	// the command it answers.
	ErrBadReply = errors.New("unexpected reply payload")
)

// InputError reports a caller-supplied value outside its protocol range.
// It is always returned before anything is written to the bus.
type InputError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %d out of range (valid range: %d-%d)", e.Field, e.Value, e.Min, e.Max)
}

// CommError represents a communication-level error.
type CommError struct {
	Op  string // Operation that failed (e.g., "read", "write", "exchange")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// ServoError represents an error from an operation on a specific servo.
type ServoError struct {
	ID  int    // Servo ID
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *ServoError) Error() string {
	return fmt.Sprintf("servo %d %s failed: %v", e.ID, e.Op, e.Err)
}

func (e *ServoError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsInputError returns true if the error was caused by an invalid argument
// and nothing reached the wire.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr) || errors.Is(err, ErrInvalidID)
}

// IsCommError returns true if the error came from the underlying transport
// rather than from a timeout or bad input.
func IsCommError(err error) bool {
	var commErr *CommError
	return errors.As(err, &commErr) && !IsTimeout(err)
}

// GetServoError extracts a ServoError from an error chain, if present.
func GetServoError(err error) (*ServoError, bool) {
	var servoErr *ServoError
	if errors.As(err, &servoErr) {
		return servoErr, true
	}
	return nil, false
}
