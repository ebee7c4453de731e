package transports

import (
	"sync"
	"time"
)

// MockTransport implements Conn for testing.
//
// Bytes in ReadData are returned by Read. When ReadData is empty, Read waits
// for the read timeout and returns (0, nil) as a real port does. Respond, if
// set, is called with every written packet and its result is queued for
// reading.
type MockTransport struct {
	mu sync.Mutex

	ReadData    []byte
	ReadErr     error
	WriteData   []byte
	WriteErr    error
	Closed      bool
	ReadTimeout time.Duration
	Flushes     int
	FlushErr    error

	// Echo loops written bytes back to the reader, as a half-duplex adapter does.
	Echo bool

	// Respond builds the bytes the bus answers a written packet with.
	Respond func(packet []byte) []byte

	// ReadFunc allows custom read behavior for complex tests
	ReadFunc func(p []byte) (int, error)

	// WriteFunc allows custom write behavior for complex tests
	WriteFunc func(p []byte) (int, error)
}

// Queue appends bytes for later reads.
func (m *MockTransport) Queue(data ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range data {
		m.ReadData = append(m.ReadData, d...)
	}
}

// Written returns a copy of everything written so far.
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.WriteData...)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}

	m.mu.Lock()
	if m.ReadErr != nil {
		err := m.ReadErr
		m.mu.Unlock()
		return 0, err
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	wait := m.ReadTimeout
	m.mu.Unlock()

	if n == 0 {
		time.Sleep(wait)
	}
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	if m.WriteFunc != nil {
		return m.WriteFunc(p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.WriteData = append(m.WriteData, p...)
	if m.Echo {
		m.ReadData = append(m.ReadData, p...)
	}
	if m.Respond != nil {
		m.ReadData = append(m.ReadData, m.Respond(append([]byte(nil), p...))...)
	}
	return len(p), nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadTimeout = timeout
	return nil
}

func (m *MockTransport) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushes++
	// Don't clear ReadData - tests need to preserve mock response data
	return m.FlushErr
}
