package lx16a

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hipsterbrown/lx16a-servo/transports"
)

// replyTable maps servo ID to opcode to reply parameters.
type replyTable map[byte]map[byte][]byte

// respondFrom answers read requests from the table the way servos on a real
// bus would. Broadcast requests are answered by every servo that knows the
// opcode, in ID order.
func respondFrom(t *testing.T, table replyTable) func([]byte) []byte {
	t.Helper()
	return func(packet []byte) []byte {
		req, _, err := Decode(packet)
		if err != nil {
			t.Errorf("servo received undecodable packet % X: %v", packet, err)
			return nil
		}

		ids := []byte{req.ID}
		if req.ID == BroadcastID {
			ids = ids[:0]
			for id := range table {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		}

		var out []byte
		for _, id := range ids {
			params, ok := table[id][req.Command]
			if !ok {
				continue
			}
			out = append(out, mustEncode(t, Frame{ID: id, Command: req.Command, Params: params})...)
		}
		return out
	}
}

func mustEncode(t *testing.T, f Frame) []byte {
	t.Helper()
	packet, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode(%v) failed: %v", f, err)
	}
	return packet
}

func newTestBus(t *testing.T, mock *transports.MockTransport, cfg BusConfig) *Bus {
	t.Helper()
	cfg.Transport = mock
	if cfg.Timeout == 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	bus, err := NewBus(cfg)
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
