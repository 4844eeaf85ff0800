package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "/tmp/test.db"
  wal_mode: true
notifier:
  port: 9001
  tick_interval: 250ms
  station_timeout: 2m
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Notifier.Port != 9001 {
		t.Errorf("Notifier.Port = %d, want 9001", cfg.Notifier.Port)
	}
	if cfg.Notifier.TickInterval != 250*time.Millisecond {
		t.Errorf("Notifier.TickInterval = %v, want 250ms", cfg.Notifier.TickInterval)
	}
	if cfg.Notifier.StationTimeout != 2*time.Minute {
		t.Errorf("Notifier.StationTimeout = %v, want 2m", cfg.Notifier.StationTimeout)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Notifier.Path != "/" {
		t.Errorf("Notifier.Path = %q, want /", cfg.Notifier.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
notifier:
  port: 70000
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "notifier.port") {
		t.Errorf("Load() error = %v, want mention of notifier.port", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "zero tick interval", mutate: func(c *Config) { c.Notifier.TickInterval = 0 }, wantErr: true},
		{name: "zero station timeout", mutate: func(c *Config) { c.Notifier.StationTimeout = 0 }, wantErr: true},
		{name: "negative handshake timeout", mutate: func(c *Config) { c.Notifier.HandshakeTimeout = -time.Second }, wantErr: true},
		{name: "path without slash", mutate: func(c *Config) { c.Notifier.Path = "ws" }, wantErr: true},
		{name: "zero queue", mutate: func(c *Config) { c.Notifier.QueueSize = 0 }, wantErr: true},
		{name: "zero handshake burst", mutate: func(c *Config) { c.Notifier.HandshakeBurst = 0 }, wantErr: true},
		{name: "same listen address", mutate: func(c *Config) { c.API.Port = c.Notifier.Port }, wantErr: true},
		{name: "invalid qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{
			name: "influx enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "stations"
			},
			wantErr: true,
		},
		{
			name: "influx enabled",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Bucket = "stations"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestNotifierConfig_EffectiveHandshakeTimeout(t *testing.T) {
	n := NotifierConfig{StationTimeout: 600 * time.Second}
	if got := n.EffectiveHandshakeTimeout(); got != 600*time.Second {
		t.Errorf("EffectiveHandshakeTimeout() = %v, want station timeout", got)
	}

	n.HandshakeTimeout = 30 * time.Second
	if got := n.EffectiveHandshakeTimeout(); got != 30*time.Second {
		t.Errorf("EffectiveHandshakeTimeout() = %v, want 30s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("STOMATA_DATABASE_PATH", "/custom/path.db")
	t.Setenv("STOMATA_NOTIFIER_PORT", "9100")
	t.Setenv("STOMATA_API_PORT", "not-a-number")
	t.Setenv("STOMATA_MQTT_HOST", "mqtt.example.com")
	t.Setenv("STOMATA_MQTT_USERNAME", "testuser")
	t.Setenv("STOMATA_MQTT_PASSWORD", "testpass")
	t.Setenv("STOMATA_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("STOMATA_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.Notifier.Port != 9100 {
		t.Errorf("Notifier.Port = %d, want 9100", cfg.Notifier.Port)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("API.Port = %d, want unparsable override ignored", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v, want testuser/testpass", cfg.MQTT.Auth)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Notifier.Port != 8001 {
		t.Errorf("Default Notifier.Port = %d, want 8001", cfg.Notifier.Port)
	}
	if cfg.Notifier.StationTimeout != 600*time.Second {
		t.Errorf("Default Notifier.StationTimeout = %v, want 600s", cfg.Notifier.StationTimeout)
	}
	if cfg.Notifier.TickInterval != time.Second {
		t.Errorf("Default Notifier.TickInterval = %v, want 1s", cfg.Notifier.TickInterval)
	}
	if cfg.NotifierAddr() != "0.0.0.0:8001" {
		t.Errorf("NotifierAddr() = %q, want 0.0.0.0:8001", cfg.NotifierAddr())
	}
}
