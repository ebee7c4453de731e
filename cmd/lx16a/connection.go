package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hipsterbrown/lx16a-servo/lx16a"
	"github.com/hipsterbrown/lx16a-servo/transports"
)

// openTransport is replaced in tests.
var openTransport = func(tc transports.Config) (lx16a.Transport, string, error) {
	return transports.Open(tc)
}

// getPassword retrieves the password from the environment or prompts the user.
func getPassword() (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openBus validates the configuration and connects to the servo bus.
func openBus() (*lx16a.Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Driver == transports.DriverWebSocket && cfg.Username != "" {
		password, err := getPassword()
		if err != nil {
			return nil, err
		}
		cfg.Password = password
	}

	conn, connInfo, err := openTransport(cfg.TransportConfig())
	if err != nil {
		return nil, err
	}
	log.Debug().Str("connection", connInfo).Msg("connected")

	bus, err := lx16a.NewBus(lx16a.BusConfig{
		Transport: conn,
		Timeout:   cfg.Timeout,
		Echo:      cfg.Echo,
		Logger:    &log,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return bus, nil
}

// withBus runs fn against an open bus and closes it afterwards.
func withBus(cmd *cobra.Command, fn func(ctx context.Context, bus *lx16a.Bus) error) error {
	bus, err := openBus()
	if err != nil {
		return err
	}
	defer func() {
		log.Debug().Stringer("stats", bus.Stats()).Msg("closing bus")
		bus.Close()
	}()

	return fn(cmd.Context(), bus)
}

// servoArg resolves a servo argument to a handle.
func servoArg(bus *lx16a.Bus, arg string) (*lx16a.Servo, error) {
	id, err := cfg.ResolveServo(arg)
	if err != nil {
		return nil, err
	}
	return bus.Servo(id), nil
}
