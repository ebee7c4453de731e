package lx16a

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hipsterbrown/lx16a-servo/transports"
)

func TestBus_ExchangeReadsReply(t *testing.T) {
	mock := &transports.MockTransport{
		Respond: respondFrom(t, replyTable{1: {28: EncodeWord(500)}}),
	}
	bus := newTestBus(t, mock, BusConfig{})

	reply, err := bus.Exchange(context.Background(), Frame{ID: 1, Command: 28}, true, 0)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if reply.ID != 1 || DecodeWord(reply.Params) != 500 {
		t.Errorf("reply: got %v", reply)
	}

	// Expected: 55 55 01 03 1C DF
	want := []byte{0x55, 0x55, 0x01, 0x03, 0x1C, 0xDF}
	if got := mock.Written(); !bytes.Equal(got, want) {
		t.Errorf("written: got % X, want % X", got, want)
	}
	if mock.Flushes == 0 {
		t.Error("input was not flushed before the request")
	}

	stats := bus.Stats()
	if stats.FramesSent != 1 || stats.FramesReceived != 1 || stats.Errors() != 0 {
		t.Errorf("stats: %v", stats)
	}
}

func TestBus_Timeout(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock, BusConfig{})

	start := time.Now()
	_, err := bus.Exchange(context.Background(), Frame{ID: 1, Command: 28}, true, 100*time.Millisecond)
	elapsed := time.Since(start)

	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	var commErr *CommError
	if !errors.As(err, &commErr) || commErr.Op != "read" {
		t.Errorf("expected read CommError, got %v", err)
	}
	if IsCommError(err) {
		t.Error("timeout should not count as a transport failure")
	}
	if elapsed < 95*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Errorf("elapsed %v outside expected window", elapsed)
	}
	if got := bus.Stats().Timeouts; got != 1 {
		t.Errorf("timeouts: got %d, want 1", got)
	}
}

func TestBus_FakeClockDeadline(t *testing.T) {
	clock := newFakeClock()
	reads := 0
	mock := &transports.MockTransport{}
	mock.ReadFunc = func(p []byte) (int, error) {
		reads++
		clock.Advance(25 * time.Millisecond)
		return 0, nil
	}
	bus := newTestBus(t, mock, BusConfig{Clock: clock, Timeout: 100 * time.Millisecond})

	_, err := bus.Exchange(context.Background(), Frame{ID: 1, Command: 28}, true, 0)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if reads != 4 {
		t.Errorf("reads before deadline: got %d, want 4", reads)
	}
}

func TestBus_ResyncAfterNoise(t *testing.T) {
	mock := &transports.MockTransport{
		Respond: respondFrom(t, replyTable{1: {26: {35}}}),
	}
	mock.Queue([]byte{0x00})
	bus := newTestBus(t, mock, BusConfig{})

	temp, err := bus.Servo(1).Temperature(context.Background())
	if err != nil {
		t.Fatalf("Temperature failed: %v", err)
	}
	if temp != 35 {
		t.Errorf("temperature: got %d, want 35", temp)
	}

	stats := bus.Stats()
	if stats.HeaderErrors != 1 || stats.BytesDiscarded != 1 {
		t.Errorf("stats: %v", stats)
	}
}

func TestBus_StraySentinelBeforeReply(t *testing.T) {
	// A lone 0x55 shifts the header so the ID byte reads as the length.
	for _, id := range []byte{5, 6, 7} {
		mock := &transports.MockTransport{
			Respond: respondFrom(t, replyTable{id: {28: EncodeWord(500)}}),
		}
		mock.Queue([]byte{0x55})
		bus := newTestBus(t, mock, BusConfig{})

		pos, err := bus.Servo(int(id)).Position(context.Background())
		if err != nil {
			t.Fatalf("id %d: Position failed: %v", id, err)
		}
		if pos != 500 {
			t.Errorf("id %d: position: got %d, want 500", id, pos)
		}
		if stats := bus.Stats(); stats.FramesReceived != 1 || stats.BytesDiscarded != 1 || stats.Timeouts != 0 {
			t.Errorf("id %d: stats: %v", id, stats)
		}
	}
}

func TestBus_TimeoutLogsFlushFailure(t *testing.T) {
	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf)
	mock := &transports.MockTransport{FlushErr: errors.New("flush unsupported")}
	bus := newTestBus(t, mock, BusConfig{Timeout: 20 * time.Millisecond, Logger: &logger})

	if _, err := bus.Servo(1).Position(context.Background()); !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	// Once before the write and once after the timeout.
	if got := strings.Count(logBuf.String(), "flush failed"); got != 2 {
		t.Errorf("flush failures logged: got %d, want 2\n%s", got, logBuf.String())
	}
}

func TestBus_CorruptReplyThenValid(t *testing.T) {
	good := mustEncode(t, Frame{ID: 1, Command: 28, Params: EncodeWord(321)})
	bad := append([]byte(nil), good...)
	bad[5] ^= 0x01

	mock := &transports.MockTransport{
		Respond: func([]byte) []byte { return append(append([]byte(nil), bad...), good...) },
	}
	bus := newTestBus(t, mock, BusConfig{})

	pos, err := bus.Servo(1).Position(context.Background())
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 321 {
		t.Errorf("position: got %d, want 321", pos)
	}
	if got := bus.Stats().ChecksumErrors; got != 1 {
		t.Errorf("checksum errors: got %d, want 1", got)
	}
}

func TestBus_DiscardsMismatchedFrames(t *testing.T) {
	other := mustEncode(t, Frame{ID: 2, Command: 28, Params: EncodeWord(100)})
	wrongCmd := mustEncode(t, Frame{ID: 1, Command: 26, Params: []byte{40}})
	mine := mustEncode(t, Frame{ID: 1, Command: 28, Params: EncodeWord(200)})

	mock := &transports.MockTransport{
		Respond: func([]byte) []byte {
			return bytes.Join([][]byte{other, wrongCmd, mine}, nil)
		},
	}
	bus := newTestBus(t, mock, BusConfig{})

	pos, err := bus.Servo(1).Position(context.Background())
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 200 {
		t.Errorf("position: got %d, want 200", pos)
	}
	if got := bus.Stats().MismatchedFrames; got != 2 {
		t.Errorf("mismatched frames: got %d, want 2", got)
	}
}

func TestBus_Echo(t *testing.T) {
	mock := &transports.MockTransport{
		Echo:    true,
		Respond: respondFrom(t, replyTable{1: {28: EncodeWord(750)}}),
	}
	bus := newTestBus(t, mock, BusConfig{Echo: true})
	servo := bus.Servo(1)
	ctx := context.Background()

	if err := servo.SetLED(ctx, true); err != nil {
		t.Fatalf("SetLED failed: %v", err)
	}
	pos, err := servo.Position(ctx)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 750 {
		t.Errorf("position: got %d, want 750", pos)
	}

	stats := bus.Stats()
	if stats.MismatchedFrames != 0 || stats.BytesDiscarded != 0 {
		t.Errorf("echo was treated as noise: %v", stats)
	}
}

func TestBus_ReadError(t *testing.T) {
	ioErr := errors.New("device unplugged")
	mock := &transports.MockTransport{ReadErr: ioErr}
	bus := newTestBus(t, mock, BusConfig{Timeout: time.Second})

	start := time.Now()
	_, err := bus.Servo(1).Position(context.Background())
	if !IsCommError(err) {
		t.Fatalf("expected CommError, got %v", err)
	}
	if !errors.Is(err, ioErr) {
		t.Errorf("underlying error lost: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("transport failure should not wait for the timeout")
	}
	if got := bus.Stats().IOErrors; got != 1 {
		t.Errorf("io errors: got %d, want 1", got)
	}
}

func TestBus_WriteError(t *testing.T) {
	mock := &transports.MockTransport{WriteErr: errors.New("write failed")}
	bus := newTestBus(t, mock, BusConfig{})

	err := bus.Servo(1).StopMove(context.Background())
	var commErr *CommError
	if !errors.As(err, &commErr) || commErr.Op != "write" {
		t.Errorf("expected write CommError, got %v", err)
	}
}

func TestBus_InvalidID(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock, BusConfig{})

	for _, id := range []int{-1, 255, 1000} {
		_, err := bus.Servo(id).Position(context.Background())
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("id %d: expected ErrInvalidID, got %v", id, err)
		}
	}
	if len(mock.Written()) != 0 {
		t.Error("invalid ID reached the wire")
	}
}

func TestBus_Close(t *testing.T) {
	mock := &transports.MockTransport{}
	bus, err := NewBus(BusConfig{Transport: mock})
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !mock.Closed {
		t.Error("transport not closed")
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	_, err = bus.Exchange(context.Background(), Frame{ID: 1, Command: 28}, true, 0)
	if !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}

func TestBus_NewBusRequiresTransportOrPort(t *testing.T) {
	if _, err := NewBus(BusConfig{}); err == nil {
		t.Error("expected error without transport or port")
	}
}

func TestBus_ContextCancellation(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock, BusConfig{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bus.Servo(1).Position(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBus_ContextDeadline(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock, BusConfig{Timeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := bus.Servo(1).Position(ctx)
	if !IsTimeout(err) && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("context deadline ignored, took %v", elapsed)
	}
}

func TestBus_SerializesExchanges(t *testing.T) {
	mock := &transports.MockTransport{}
	mock.Respond = func(packet []byte) []byte {
		// Respond runs under the mock lock; unread bytes here mean two
		// exchanges overlapped.
		if len(mock.ReadData) != 0 {
			t.Errorf("request % X written while % X was unread", packet, mock.ReadData)
		}
		req, _, err := Decode(packet)
		if err != nil {
			t.Errorf("bad request: %v", err)
			return nil
		}
		return mustEncode(t, Frame{ID: req.ID, Command: req.Command, Params: EncodeWord(uint16(req.ID) * 10)})
	}
	bus := newTestBus(t, mock, BusConfig{})

	var wg sync.WaitGroup
	for _, id := range []int{3, 7} {
		wg.Add(1)
		go func(servo *Servo) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				pos, err := servo.Position(context.Background())
				if err != nil {
					t.Errorf("servo %d: %v", servo.ID(), err)
					return
				}
				if pos != servo.ID()*10 {
					t.Errorf("servo %d: got position %d", servo.ID(), pos)
				}
			}
		}(bus.Servo(id))
	}
	wg.Wait()

	if got := bus.Stats().FramesSent; got != 40 {
		t.Errorf("frames sent: got %d, want 40", got)
	}
}

func TestBus_Scan(t *testing.T) {
	mock := &transports.MockTransport{
		Respond: respondFrom(t, replyTable{
			1: {14: {1}},
			3: {14: {3}},
		}),
	}
	bus := newTestBus(t, mock, BusConfig{})

	found, err := bus.Scan(context.Background(), 0, 4, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 2 || found[0].ID != 1 || found[1].ID != 3 {
		t.Errorf("found: got %+v", found)
	}

	if _, err := bus.Scan(context.Background(), 5, 2, time.Millisecond); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestBus_ResetStats(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock, BusConfig{})

	bus.Exchange(context.Background(), Frame{ID: 1, Command: 28}, true, 10*time.Millisecond)
	if bus.Stats().Timeouts != 1 {
		t.Fatal("timeout not counted")
	}
	bus.ResetStats()
	if got := bus.Stats(); got != (Stats{}) {
		t.Errorf("stats after reset: %v", got)
	}
}
