package lx16a

import "fmt"

// Stats counts bus traffic and the faults seen while decoding replies.
type Stats struct {
	FramesSent       uint64
	FramesReceived   uint64
	BytesDiscarded   uint64
	HeaderErrors     uint64
	ChecksumErrors   uint64
	MismatchedFrames uint64 // valid frames for another ID or opcode
	Timeouts         uint64
	IOErrors         uint64
}

// Errors returns the total number of faults recorded.
func (s Stats) Errors() uint64 {
	return s.HeaderErrors + s.ChecksumErrors + s.MismatchedFrames + s.Timeouts + s.IOErrors
}

func (s Stats) String() string {
	return fmt.Sprintf("sent=%d received=%d discarded=%dB header=%d checksum=%d mismatched=%d timeouts=%d io=%d",
		s.FramesSent, s.FramesReceived, s.BytesDiscarded, s.HeaderErrors,
		s.ChecksumErrors, s.MismatchedFrames, s.Timeouts, s.IOErrors)
}
