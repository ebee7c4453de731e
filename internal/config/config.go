// Package config holds the lx16a command line configuration and its file and
// environment sources. Precedence is flags, then environment, then file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hipsterbrown/lx16a-servo/lx16a"
	"github.com/hipsterbrown/lx16a-servo/transports"
)

// Config holds CLI configuration for lx16a.
type Config struct {
	Driver   string
	Port     string
	BaudRate int

	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool

	Timeout  time.Duration
	Echo     bool
	LogLevel string

	// Servos maps friendly names to bus IDs.
	Servos map[string]int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Driver:   transports.DriverSerial,
		BaudRate: transports.DefaultBaudRate,
		Timeout:  time.Second,
		LogLevel: "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Driver {
	case "":
		c.Driver = transports.DriverSerial
	case transports.DriverSerial, transports.DriverTarm, transports.DriverWebSocket:
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}

	if c.Driver == transports.DriverWebSocket {
		if c.URL == "" {
			return fmt.Errorf("url is required for the websocket driver")
		}
	} else if c.Port == "" {
		return fmt.Errorf("port is required (or use --driver websocket with --url)")
	}

	if c.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	for name, id := range c.Servos {
		if id < 0 || id > lx16a.MaxServoID {
			return fmt.Errorf("servo %q: id %d out of range (0-%d)", name, id, lx16a.MaxServoID)
		}
	}

	return nil
}

// TransportConfig converts the configuration for transports.Open.
func (c *Config) TransportConfig() transports.Config {
	return transports.Config{
		Driver:        c.Driver,
		Port:          c.Port,
		BaudRate:      c.BaudRate,
		Timeout:       c.Timeout,
		URL:           c.URL,
		Username:      c.Username,
		Password:      c.Password,
		SkipSSLVerify: c.SkipSSLVerify,
	}
}

// ResolveServo turns a command line argument into a servo ID. It accepts a
// number, a name from the servos table, or "all" for broadcast.
func (c *Config) ResolveServo(arg string) (int, error) {
	if strings.EqualFold(arg, "all") {
		return lx16a.BroadcastID, nil
	}
	if id, err := strconv.Atoi(arg); err == nil {
		if id < 0 || id > lx16a.MaxServoID {
			return 0, fmt.Errorf("servo id %d out of range (0-%d)", id, lx16a.MaxServoID)
		}
		return id, nil
	}
	if id, ok := c.Servos[arg]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown servo %q (not a number or a name from the [servos] table)", arg)
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int for values from the environment.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
