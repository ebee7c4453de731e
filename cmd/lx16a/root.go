package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hipsterbrown/lx16a-servo/internal/config"
	"github.com/hipsterbrown/lx16a-servo/internal/logging"
)

var (
	cfg     = config.DefaultConfig()
	cfgPath string

	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "lx16a",
	Short: "Control LX-16A serial bus servos",
	Long: `lx16a - A CLI tool for driving LX-16A serial bus servos.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--driver tarm]
  WebSocket: --driver websocket --url ws://host/path [--username user]

Settings are read from flags, then LX16A_* environment variables, then the
config file (default $HOME/.lx16a/config.toml). Servos can be named in the
file's [servos] table and addressed by name.

For WebSocket authentication, the password is read from the LX16A_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.lx16a/config.toml)")

	// Serial connection flags
	flags.StringVarP(&cfg.Port, "port", "p", "", "Serial port device")
	flags.IntVarP(&cfg.BaudRate, "baud", "b", cfg.BaudRate, "Baud rate (serial only)")
	flags.StringVar(&cfg.Driver, "driver", cfg.Driver, "Transport driver: serial, tarm or websocket")

	// WebSocket connection flags
	flags.StringVarP(&cfg.URL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&cfg.Username, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&cfg.SkipSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Reply timeout per command")
	flags.BoolVar(&cfg.Echo, "echo", false, "Adapter echoes transmitted bytes (half-duplex)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
}

// loadConfig layers file and environment settings under the flags the user
// set, then validates the result.
func loadConfig(cmd *cobra.Command, args []string) error {
	changed := map[string]bool{}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})

	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = config.DefaultConfigPath()
	}
	if cfgFile != "" && config.FileExists(cfgFile) {
		fc, err := config.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFileConfig(&cfg, fc, changed); err != nil {
			return err
		}
	} else if cfgPath != "" {
		return fmt.Errorf("config file %s not found", cfgPath)
	}

	if err := config.ApplyEnvConfig(&cfg, changed); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	log = logger

	return nil
}
