package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{
			name:   "serial with port",
			modify: func(c *Config) { c.Port = "/dev/ttyUSB0" },
		},
		{
			name:    "serial without port",
			modify:  func(c *Config) {},
			wantErr: "port is required",
		},
		{
			name: "websocket with url",
			modify: func(c *Config) {
				c.Driver = "websocket"
				c.URL = "ws://bridge.local/serial"
			},
		},
		{
			name:    "websocket without url",
			modify:  func(c *Config) { c.Driver = "websocket" },
			wantErr: "url is required",
		},
		{
			name: "unknown driver",
			modify: func(c *Config) {
				c.Driver = "can"
				c.Port = "/dev/ttyUSB0"
			},
			wantErr: "unknown driver",
		},
		{
			name: "zero timeout",
			modify: func(c *Config) {
				c.Port = "/dev/ttyUSB0"
				c.Timeout = 0
			},
			wantErr: "timeout must be positive",
		},
		{
			name: "servo alias out of range",
			modify: func(c *Config) {
				c.Port = "/dev/ttyUSB0"
				c.Servos = map[string]int{"elbow": 254}
			},
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveServo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servos = map[string]int{"shoulder": 1, "elbow": 2}

	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{arg: "7", want: 7},
		{arg: "0", want: 0},
		{arg: "253", want: 253},
		{arg: "254", wantErr: true},
		{arg: "-1", wantErr: true},
		{arg: "elbow", want: 2},
		{arg: "all", want: 254},
		{arg: "ALL", want: 254},
		{arg: "wrist", wantErr: true},
	}

	for _, tt := range tests {
		got, err := cfg.ResolveServo(tt.arg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ResolveServo(%q) expected error, got %d", tt.arg, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveServo(%q) unexpected error: %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveServo(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Driver:   "tarm",
				Port:     "/dev/ttyAMA0",
				BaudRate: 57600,
				Timeout:  "250ms",
				Echo:     &trueVal,
				Servos:   map[string]int{"pan": 3},
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Driver:   "tarm",
				Port:     "/dev/ttyAMA0",
				BaudRate: 57600,
				Timeout:  250 * time.Millisecond,
				Echo:     true,
				Servos:   map[string]int{"pan": 3},
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Port:    "/dev/ttyS1",
				Timeout: "2s",
			},
			changed: map[string]bool{"port": true},
			initial: Config{
				Port:    "/dev/ttyUSB0",
				Timeout: time.Second,
			},
			expected: Config{
				Port:    "/dev/ttyUSB0",
				Timeout: 2 * time.Second,
			},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{Timeout: "soon"},
			changed:    map[string]bool{},
			initial:    Config{},
			expected:   Config{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
driver = "websocket"
url = "wss://bridge.local/serial"
username = "admin"
timeout = "500ms"
echo = true

[servos]
shoulder = 1
elbow = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig failed: %v", err)
	}
	if fc.Driver != "websocket" || fc.URL != "wss://bridge.local/serial" || fc.Username != "admin" {
		t.Errorf("connection fields: %+v", fc)
	}
	if fc.Timeout != "500ms" || fc.Echo == nil || !*fc.Echo {
		t.Errorf("timeout/echo: %+v", fc)
	}
	if !reflect.DeepEqual(fc.Servos, map[string]int{"shoulder": 1, "elbow": 2}) {
		t.Errorf("servos: %v", fc.Servos)
	}

	if !FileExists(path) {
		t.Error("FileExists returned false for written file")
	}
	if FileExists(filepath.Join(dir, "missing.toml")) {
		t.Error("FileExists returned true for missing file")
	}
}

func TestLoadFileConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("port = [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFileConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("LX16A_PORT", "/dev/ttyUSB1")
	t.Setenv("LX16A_BAUD_RATE", "9600")
	t.Setenv("LX16A_TIMEOUT", "300ms")
	t.Setenv("LX16A_ECHO", "1")
	t.Setenv("LX16A_PASSWORD", "hunter2")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{"baud": true}); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Port != "/dev/ttyUSB1" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.BaudRate != 115200 {
		t.Errorf("baud rate should keep flag value, got %d", cfg.BaudRate)
	}
	if cfg.Timeout != 300*time.Millisecond || !cfg.Echo || cfg.Password != "hunter2" {
		t.Errorf("config: %+v", cfg)
	}
}

func TestApplyEnvConfig_InvalidInt(t *testing.T) {
	t.Setenv("LX16A_BAUD_RATE", "fast")
	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err == nil {
		t.Error("expected error for invalid baud rate")
	}
}

// Precedence order: CLI > Env > File
func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
port = "/dev/file"
timeout = "2s"
baud_rate = 57600
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LX16A_TIMEOUT", "3s")
	t.Setenv("LX16A_PORT", "/dev/env")

	cfg := DefaultConfig()
	cfg.Port = "/dev/flag"
	changed := map[string]bool{"port": true}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig failed: %v", err)
	}
	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Port != "/dev/flag" {
		t.Errorf("port: got %q, want flag value", cfg.Port)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("timeout: got %v, want env value", cfg.Timeout)
	}
	if cfg.BaudRate != 57600 {
		t.Errorf("baud rate: got %d, want file value", cfg.BaudRate)
	}
}

func TestTransportConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = "/dev/ttyUSB0"
	cfg.Username = "admin"

	tc := cfg.TransportConfig()
	if tc.Driver != "serial" || tc.Port != "/dev/ttyUSB0" || tc.BaudRate != 115200 || tc.Username != "admin" {
		t.Errorf("transport config: %+v", tc)
	}
}
