package config

import "os"

// ApplyEnvConfig applies configuration from environment variables (LX16A_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("driver", os.Getenv("LX16A_DRIVER"), &cfg.Driver)
	s.setString("port", os.Getenv("LX16A_PORT"), &cfg.Port)
	s.setString("url", os.Getenv("LX16A_URL"), &cfg.URL)
	s.setString("username", os.Getenv("LX16A_USERNAME"), &cfg.Username)
	s.setString("log-level", os.Getenv("LX16A_LOG_LEVEL"), &cfg.LogLevel)

	// There is no password flag; it only comes from here or a prompt.
	if pw := os.Getenv("LX16A_PASSWORD"); pw != "" {
		cfg.Password = pw
	}

	if err := s.setIntFromString("baud", os.Getenv("LX16A_BAUD_RATE"), &cfg.BaudRate); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("LX16A_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}

	s.setBoolFromString("echo", os.Getenv("LX16A_ECHO"), &cfg.Echo)
	s.setBoolFromString("no-ssl-verify", os.Getenv("LX16A_NO_SSL_VERIFY"), &cfg.SkipSSLVerify)

	return nil
}
