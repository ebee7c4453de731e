package lx16a

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hipsterbrown/lx16a-servo/transports"
)

// Bus manages communication with servos on an LX-16A bus.
// All exchanges on one Bus are serialized, so Servo handles sharing it may be
// used from several goroutines.
type Bus struct {
	transport Transport
	timeout   time.Duration
	echo      bool
	clock     Clock
	log       zerolog.Logger

	mu          sync.Mutex
	lastCmdTime time.Time
	minCmdGap   time.Duration
	closed      bool
	stats       Stats
}

// BusConfig holds configuration for creating a new Bus.
type BusConfig struct {
	// Transport is the underlying communication transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g., "/dev/ttyUSB0").
	// Ignored if Transport is provided.
	Port string

	// BaudRate is the communication speed. Default is 115200.
	BaudRate int

	// Timeout bounds each exchange unless the caller passes its own. Default is 1 second.
	Timeout time.Duration

	// MinCommandGap is the minimum time between commands. Default is 1ms.
	MinCommandGap time.Duration

	// Echo is set when the adapter loops transmitted bytes back to the
	// receiver, as single-wire half-duplex adapters do.
	Echo bool

	// Clock is used for exchange deadlines. Default is the system clock.
	Clock Clock

	// Logger receives diagnostic events. Default discards them.
	Logger *zerolog.Logger
}

// NewBus creates a new servo bus with the given configuration.
func NewBus(cfg BusConfig) (*Bus, error) {
	// Set defaults
	if cfg.BaudRate == 0 {
		cfg.BaudRate = transports.DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.MinCommandGap == 0 {
		cfg.MinCommandGap = time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	// Get or create transport
	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
	}

	return &Bus{
		transport:   transport,
		timeout:     cfg.Timeout,
		echo:        cfg.Echo,
		clock:       cfg.Clock,
		log:         logger.With().Str("component", "lx16a").Logger(),
		minCmdGap:   cfg.MinCommandGap,
		lastCmdTime: cfg.Clock.Now(),
	}, nil
}

// Close closes the bus and releases resources.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.transport.Close()
}

// Timeout returns the default exchange timeout.
func (b *Bus) Timeout() time.Duration {
	return b.timeout
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ResetStats zeroes the bus counters.
func (b *Bus) ResetStats() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = Stats{}
}

// Servo returns a handle for the servo with the given ID.
func (b *Bus) Servo(id int) *Servo {
	return NewServo(b, id)
}

// Broadcast returns a handle addressing every servo on the bus.
func (b *Bus) Broadcast() *Servo {
	return NewServo(b, BroadcastID)
}

// Exchange writes req and, if expectReply is set, waits for the matching reply.
//
// A timeout of zero uses the bus default. Frames that fail to decode, echo the
// request, or answer a different ID or command are discarded while time
// remains. When the budget runs out the error wraps ErrTimeout; transport
// failures are returned at once as *CommError. Retrying is left to the caller.
func (b *Bus) Exchange(ctx context.Context, req Frame, expectReply bool, timeout time.Duration) (Frame, error) {
	if err := validateID(int(req.ID)); err != nil {
		return Frame{}, err
	}
	packet, err := Encode(req)
	if err != nil {
		return Frame{}, err
	}
	if timeout <= 0 {
		timeout = b.timeout
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Frame{}, ErrBusClosed
	}

	deadline := b.clock.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := b.sendPacketLocked(packet); err != nil {
		b.stats.IOErrors++
		b.log.Error().Err(err).Stringer("frame", req).Msg("write failed")
		return Frame{}, &CommError{Op: "write", Err: err}
	}

	if !expectReply {
		if b.echo {
			b.drainEchoLocked(ctx, packet, deadline)
		}
		return Frame{}, nil
	}

	return b.readReplyLocked(ctx, req, timeout, deadline)
}

// FoundServo represents a servo discovered during scanning.
type FoundServo struct {
	ID int
}

// Scan searches for servos by reading the ID of each address in the range.
// Each probe waits at most perID for an answer.
func (b *Bus) Scan(ctx context.Context, startID, endID int, perID time.Duration) ([]FoundServo, error) {
	if startID < 0 || endID > MaxServoID || startID > endID {
		return nil, fmt.Errorf("invalid ID range: %d to %d", startID, endID)
	}

	var found []FoundServo

	for id := startID; id <= endID; id++ {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		got, err := b.Servo(id).WithTimeout(perID).ReadID(ctx)
		if err != nil {
			if IsTimeout(err) || errors.Is(err, ErrBadReply) {
				continue // No response at this ID
			}
			return found, err
		}
		if got != id {
			b.log.Warn().Int("addressed", id).Int("reported", got).Msg("servo reported a different ID")
		}

		found = append(found, FoundServo{ID: id})
	}

	return found, nil
}

// Internal methods

func validateID(id int) error {
	if id < 0 || id > BroadcastID {
		return fmt.Errorf("%w: %d (valid range: 0-%d, broadcast %d)", ErrInvalidID, id, MaxServoID, BroadcastID)
	}
	return nil
}

func (b *Bus) enforceCommandGap() {
	elapsed := b.clock.Now().Sub(b.lastCmdTime)
	if elapsed < b.minCmdGap {
		time.Sleep(b.minCmdGap - elapsed)
	}
}

func (b *Bus) sendPacketLocked(packet []byte) error {
	b.enforceCommandGap()

	// Flush any stale input
	if err := b.transport.Flush(); err != nil {
		b.log.Warn().Err(err).Msg("flush failed")
	}

	n, err := b.transport.Write(packet)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("incomplete write: %d of %d bytes", n, len(packet))
	}

	b.lastCmdTime = b.clock.Now()
	b.stats.FramesSent++
	b.log.Debug().Hex("tx", packet).Msg("frame sent")

	// Small delay for half-duplex turnaround
	time.Sleep(100 * time.Microsecond)

	return nil
}

// drainEchoLocked consumes the looped-back copy of a write-only packet.
// A missing echo does not fail the command since the write itself succeeded.
func (b *Bus) drainEchoLocked(ctx context.Context, packet []byte, deadline time.Time) {
	buf := make([]byte, 0, len(packet))
	chunk := make([]byte, len(packet))

	for len(buf) < len(packet) {
		if ctx.Err() != nil {
			return
		}
		remaining := deadline.Sub(b.clock.Now())
		if remaining <= 0 {
			b.log.Warn().Hex("partial", buf).Msg("echo not received")
			return
		}
		if err := b.transport.SetReadTimeout(remaining); err != nil {
			return
		}
		n, err := b.transport.Read(chunk[:len(packet)-len(buf)])
		if err != nil {
			b.log.Warn().Err(err).Msg("echo read failed")
			return
		}
		buf = append(buf, chunk[:n]...)
	}

	if !bytes.Equal(buf, packet) {
		b.stats.BytesDiscarded += uint64(len(buf))
		b.log.Warn().Hex("echo", buf).Hex("tx", packet).Msg("echo does not match transmitted frame")
	}
}

func (b *Bus) readReplyLocked(ctx context.Context, req Frame, timeout time.Duration, deadline time.Time) (Frame, error) {
	var buf []byte
	chunk := make([]byte, 64)

	for {
		if f, ok := b.takeReplyLocked(req, &buf); ok {
			return f, nil
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		default:
		}

		remaining := deadline.Sub(b.clock.Now())
		if remaining <= 0 {
			b.stats.Timeouts++
			b.log.Warn().Stringer("frame", req).Hex("pending", buf).Dur("timeout", timeout).Msg("no reply")
			if err := b.transport.Flush(); err != nil {
				b.log.Warn().Err(err).Msg("flush failed")
			}
			return Frame{}, &CommError{Op: "read", Err: fmt.Errorf("%w: no valid reply to %s within %v", ErrTimeout, req, timeout)}
		}

		if err := b.transport.SetReadTimeout(remaining); err != nil {
			b.stats.IOErrors++
			return Frame{}, &CommError{Op: "read", Err: err}
		}

		n, err := b.transport.Read(chunk)
		if err != nil {
			b.stats.IOErrors++
			b.log.Error().Err(err).Stringer("frame", req).Msg("read failed")
			return Frame{}, &CommError{Op: "read", Err: fmt.Errorf("read error: %w", err)}
		}

		buf = append(buf, chunk[:n]...)
	}
}

// takeReplyLocked decodes buffered bytes until it finds the reply to req or
// runs out of complete frames. Consumed bytes are removed from buf.
func (b *Bus) takeReplyLocked(req Frame, buf *[]byte) (Frame, bool) {
	for len(*buf) > 0 {
		f, n, err := Decode(*buf)
		if errors.Is(err, ErrIncompleteFrame) {
			skip := completeFrameOffset(*buf)
			if skip == 0 {
				return Frame{}, false
			}
			b.stats.HeaderErrors++
			b.stats.BytesDiscarded += uint64(skip)
			b.log.Warn().Hex("dropped", (*buf)[:skip]).Msg("resynchronizing on buffered frame")
			*buf = (*buf)[skip:]
			continue
		}

		if err != nil {
			if errors.Is(err, ErrBadChecksum) {
				b.stats.ChecksumErrors++
			} else {
				b.stats.HeaderErrors++
			}
			b.stats.BytesDiscarded += uint64(n)
			b.log.Warn().Err(err).Hex("dropped", (*buf)[:n]).Msg("resynchronizing")
			*buf = (*buf)[n:]
			continue
		}

		*buf = (*buf)[n:]
		b.stats.FramesReceived++
		b.log.Debug().Stringer("rx", f).Msg("frame received")

		if isEcho(req, f) {
			if !b.echo {
				b.log.Debug().Msg("unexpected echo; is BusConfig.Echo set?")
			}
			continue
		}
		if isReplyTo(req, f) {
			return f, true
		}

		b.stats.MismatchedFrames++
		b.log.Warn().Stringer("frame", f).Stringer("request", req).Msg("discarding unrelated frame")
	}
	return Frame{}, false
}

// completeFrameOffset returns the offset of the first later header that
// starts a complete, valid frame, or 0 if there is none. A stray sentinel
// before a real header otherwise makes the ID byte read as a length.
func completeFrameOffset(buf []byte) int {
	for i := nextHeader(buf, 1); i < len(buf); i = nextHeader(buf, i+1) {
		if _, _, err := Decode(buf[i:]); err == nil {
			return i
		}
	}
	return 0
}

// isEcho reports whether f is our own request looped back by the adapter.
func isEcho(req, f Frame) bool {
	return f.ID == req.ID && f.Command == req.Command && bytes.Equal(f.Params, req.Params)
}

func isReplyTo(req, f Frame) bool {
	if f.Command != req.Command {
		return false
	}
	return req.ID == BroadcastID || f.ID == req.ID
}
