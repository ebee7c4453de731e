package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Driver        string         `toml:"driver"`
	Port          string         `toml:"port"`
	BaudRate      int            `toml:"baud_rate"`
	URL           string         `toml:"url"`
	Username      string         `toml:"username"`
	SkipSSLVerify *bool          `toml:"no_ssl_verify"`
	Timeout       string         `toml:"timeout"`
	Echo          *bool          `toml:"echo"`
	LogLevel      string         `toml:"log_level"`
	Servos        map[string]int `toml:"servos"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.lx16a/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".lx16a", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("driver", fc.Driver, &cfg.Driver)
	s.setString("port", fc.Port, &cfg.Port)
	s.setString("url", fc.URL, &cfg.URL)
	s.setString("username", fc.Username, &cfg.Username)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("baud", fc.BaudRate, &cfg.BaudRate)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}

	s.setBool("no-ssl-verify", fc.SkipSSLVerify, &cfg.SkipSSLVerify)
	s.setBool("echo", fc.Echo, &cfg.Echo)

	if len(fc.Servos) > 0 {
		if cfg.Servos == nil {
			cfg.Servos = make(map[string]int, len(fc.Servos))
		}
		for name, id := range fc.Servos {
			cfg.Servos[name] = id
		}
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
