//go:build !baremetal

package transports

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection.
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConfig holds configuration for a remote serial bridge.
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	Timeout       time.Duration
}

// WebSocketTransport carries raw bus bytes in binary WebSocket messages to a
// serial bridge on another host.
//
// A single goroutine owns conn reads and hands messages over a channel, so an
// expired read timeout never leaves the connection in a failed state.
type WebSocketTransport struct {
	conn    *websocket.Conn
	timeout time.Duration

	msgs chan []byte
	done chan struct{}

	mu   sync.Mutex
	err  error
	buf  []byte
	once sync.Once
}

// OpenWebSocket dials the bridge, authenticating with HTTP Basic auth when a
// username is set.
func OpenWebSocket(cfg WebSocketConfig) (*WebSocketTransport, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if cfg.Username != "" && cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	return NewWebSocketTransport(conn, cfg.Timeout), nil
}

// NewWebSocketTransport wraps an established connection and starts its reader.
func NewWebSocketTransport(conn *websocket.Conn, timeout time.Duration) *WebSocketTransport {
	t := &WebSocketTransport{
		conn:    conn,
		timeout: timeout,
		msgs:    make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *WebSocketTransport) readLoop() {
	defer close(t.msgs)
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case t.msgs <- data:
		case <-t.done:
			return
		}
	}
}

func (t *WebSocketTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	if len(t.buf) > 0 {
		n := copy(p, t.buf)
		t.buf = t.buf[n:]
		t.mu.Unlock()
		return n, nil
	}
	timeout := t.timeout
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data, ok := <-t.msgs:
		if !ok {
			return 0, t.readErr()
		}
		t.mu.Lock()
		n := copy(p, data)
		t.buf = append(t.buf, data[n:]...)
		t.mu.Unlock()
		return n, nil
	case <-timer.C:
		return 0, nil
	case <-t.done:
		return 0, ErrConnectionClosed
	}
}

func (t *WebSocketTransport) readErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %v", ErrConnectionClosed, t.err)
}

func (t *WebSocketTransport) Write(p []byte) (int, error) {
	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *WebSocketTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *WebSocketTransport) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Flush drops buffered bytes and any messages already queued by the reader.
func (t *WebSocketTransport) Flush() error {
	t.mu.Lock()
	t.buf = nil
	t.mu.Unlock()

	for {
		select {
		case _, ok := <-t.msgs:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}
