// Package lx16a provides a Go library for communicating with LX-16A serial bus servos.
package lx16a

import (
	"encoding/binary"
	"fmt"
)

// Special ID values.
const (
	BroadcastID = 0xFE
	MaxServoID  = 0xFD
)

// Packet header bytes.
const (
	headerByte1 = 0x55
	headerByte2 = 0x55
)

// Frame size limits.
const (
	// MaxParams is the largest parameter payload any LX-16A command carries.
	MaxParams = 4

	minLength = 3 // length + command + checksum
	maxLength = minLength + MaxParams

	// header(2) + id(1) + length(1) + command(1) + checksum(1)
	frameOverhead = 6
)

// Frame is one wire-encoded protocol message, request or response.
type Frame struct {
	ID      byte
	Command byte
	Params  []byte
}

// Len returns the encoded size of the frame in bytes.
func (f Frame) Len() int {
	return frameOverhead + len(f.Params)
}

func (f Frame) String() string {
	name := fmt.Sprintf("0x%02X", f.Command)
	if cmd, ok := LookupCommand(f.Command); ok {
		name = cmd.Name
	}
	return fmt.Sprintf("id=%d cmd=%s params=% X", f.ID, name, f.Params)
}

// Encode constructs a wire-format packet from the given frame.
func Encode(f Frame) ([]byte, error) {
	if len(f.Params) > MaxParams {
		return nil, &InputError{Field: "params", Value: len(f.Params), Min: 0, Max: MaxParams}
	}

	length := byte(minLength + len(f.Params))

	// header(2) + id(1) + length(1) + command(1) + params(n) + checksum(1)
	buf := make([]byte, 0, f.Len())
	buf = append(buf, headerByte1, headerByte2)
	buf = append(buf, f.ID)
	buf = append(buf, length)
	buf = append(buf, f.Command)
	buf = append(buf, f.Params...)
	buf = append(buf, Checksum(buf[2:]))

	return buf, nil
}

// Decode parses one frame from the start of data.
//
// The returned count is how many leading bytes the caller should drop from its
// buffer: the whole frame on success, the noise up to the next candidate header
// on ErrBadHeader or ErrBadChecksum, and zero on ErrIncompleteFrame.
func Decode(data []byte) (Frame, int, error) {
	if len(data) == 0 {
		return Frame{}, 0, ErrIncompleteFrame
	}
	if data[0] != headerByte1 || (len(data) > 1 && data[1] != headerByte2) {
		return Frame{}, nextHeader(data, 1), ErrBadHeader
	}
	if len(data) < 4 {
		return Frame{}, 0, ErrIncompleteFrame
	}

	length := int(data[3])
	if length < minLength || length > maxLength {
		return Frame{}, nextHeader(data, 1), fmt.Errorf("%w: length %d", ErrBadHeader, length)
	}

	totalLen := 3 + length // header(2) + id(1) + [length bytes]
	if len(data) < totalLen {
		return Frame{}, 0, ErrIncompleteFrame
	}

	expected := Checksum(data[2 : totalLen-1])
	actual := data[totalLen-1]
	if expected != actual {
		return Frame{}, nextHeader(data, 1), fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrBadChecksum, expected, actual)
	}

	f := Frame{
		ID:      data[2],
		Command: data[4],
	}

	paramLen := length - minLength
	if paramLen > 0 {
		f.Params = make([]byte, paramLen)
		copy(f.Params, data[5:5+paramLen])
	}

	return f, totalLen, nil
}

// Checksum computes the one's complement of the byte sum of body, which runs
// from the ID byte through the last parameter.
func Checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return ^sum
}

// nextHeader returns the offset of the first byte at or after from that could
// begin a header. A trailing lone sentinel byte is kept.
func nextHeader(data []byte, from int) int {
	for i := from; i < len(data); i++ {
		if data[i] != headerByte1 {
			continue
		}
		if i+1 == len(data) || data[i+1] == headerByte2 {
			return i
		}
	}
	return len(data)
}

// EncodeWord converts a 16-bit value to bytes, low byte first.
func EncodeWord(value uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return buf
}

// DecodeWord converts little-endian bytes to a 16-bit value.
func DecodeWord(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(data)
}

// DecodeSignedWord converts little-endian bytes to a two's complement 16-bit value.
func DecodeSignedWord(data []byte) int {
	return int(int16(DecodeWord(data)))
}
