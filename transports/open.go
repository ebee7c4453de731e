//go:build !baremetal

package transports

import (
	"fmt"
	"time"
)

// Driver names accepted by Open.
const (
	DriverSerial    = "serial"
	DriverTarm      = "tarm"
	DriverWebSocket = "websocket"
)

// Config selects and configures a backend.
type Config struct {
	Driver   string // serial (default), tarm or websocket
	Port     string
	BaudRate int
	Timeout  time.Duration

	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Open connects using the backend named by cfg.Driver. It returns the
// connection and a short description for log output.
func Open(cfg Config) (Conn, string, error) {
	serialCfg := SerialConfig{Port: cfg.Port, BaudRate: cfg.BaudRate, Timeout: cfg.Timeout}
	serialCfg.setDefaults()

	switch cfg.Driver {
	case "", DriverSerial:
		conn, err := OpenSerial(serialCfg)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, serialCfg.BaudRate), nil

	case DriverTarm:
		conn, err := OpenTarm(serialCfg)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial (tarm): %s @ %d baud", cfg.Port, serialCfg.BaudRate), nil

	case DriverWebSocket:
		if cfg.URL == "" {
			return nil, "", fmt.Errorf("websocket driver requires a URL")
		}
		conn, err := OpenWebSocket(WebSocketConfig{
			URL:           cfg.URL,
			Username:      cfg.Username,
			Password:      cfg.Password,
			SkipSSLVerify: cfg.SkipSSLVerify,
			Timeout:       serialCfg.Timeout,
		})
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", cfg.URL), nil

	default:
		return nil, "", fmt.Errorf("unknown driver %q (use %s, %s or %s)", cfg.Driver, DriverSerial, DriverTarm, DriverWebSocket)
	}
}
