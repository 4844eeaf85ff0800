package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the stomata service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Notifier NotifierConfig `yaml:"notifier"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains the producer HTTP API settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// NotifierConfig contains the station push endpoint settings.
type NotifierConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`

	// TickInterval is the cadence of the accept/process/evict/dispatch loop.
	TickInterval time.Duration `yaml:"tick_interval"`

	// StationTimeout closes a registered station after this much inactivity.
	StationTimeout time.Duration `yaml:"station_timeout"`

	// HandshakeTimeout closes a connection that has not authenticated
	// (and not pinged) for this long. Zero means StationTimeout.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// WriteTimeout bounds a single frame write to a station.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	QueueSize      int `yaml:"queue_size"`
	AcceptBacklog  int `yaml:"accept_backlog"`
	SendBuffer     int `yaml:"send_buffer"`
	InboxSize      int `yaml:"inbox_size"`
	MaxMessageSize int `yaml:"max_message_size"`

	// HandshakeRate is the sustained number of registration attempts per
	// second allowed on one connection; HandshakeBurst is the bucket size.
	HandshakeRate  float64 `yaml:"handshake_rate"`
	HandshakeBurst int     `yaml:"handshake_burst"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STOMATA_SECTION_KEY
// For example: STOMATA_DATABASE_PATH, STOMATA_NOTIFIER_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the values used when a key is absent.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/stomata.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Notifier: NotifierConfig{
			Host:           "0.0.0.0",
			Port:           8001,
			Path:           "/",
			TickInterval:   time.Second,
			StationTimeout: 600 * time.Second,
			WriteTimeout:   5 * time.Second,
			QueueSize:      1024,
			AcceptBacklog:  64,
			SendBuffer:     16,
			InboxSize:      8,
			MaxMessageSize: 4096,
			HandshakeRate:  0.2,
			HandshakeBurst: 3,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "stomata",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOMATA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("STOMATA_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("STOMATA_API_PORT"); ok {
		cfg.API.Port = v
	}

	if v := os.Getenv("STOMATA_NOTIFIER_HOST"); v != "" {
		cfg.Notifier.Host = v
	}
	if v, ok := envInt("STOMATA_NOTIFIER_PORT"); ok {
		cfg.Notifier.Port = v
	}

	if v := os.Getenv("STOMATA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STOMATA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STOMATA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("STOMATA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("STOMATA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// envInt reads an integer environment variable. Unparsable values are ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if !validPort(c.API.Port) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if !validPort(c.Notifier.Port) {
		errs = append(errs, "notifier.port must be between 1 and 65535")
	}
	if c.API.Port == c.Notifier.Port && c.API.Host == c.Notifier.Host {
		errs = append(errs, "api and notifier must listen on different addresses")
	}
	if !strings.HasPrefix(c.Notifier.Path, "/") {
		errs = append(errs, "notifier.path must start with /")
	}

	if c.Notifier.TickInterval <= 0 {
		errs = append(errs, "notifier.tick_interval must be positive")
	}
	if c.Notifier.StationTimeout <= 0 {
		errs = append(errs, "notifier.station_timeout must be positive")
	}
	if c.Notifier.HandshakeTimeout < 0 {
		errs = append(errs, "notifier.handshake_timeout must not be negative")
	}
	if c.Notifier.WriteTimeout <= 0 {
		errs = append(errs, "notifier.write_timeout must be positive")
	}
	if c.Notifier.QueueSize < 1 || c.Notifier.AcceptBacklog < 1 || c.Notifier.SendBuffer < 1 || c.Notifier.InboxSize < 1 {
		errs = append(errs, "notifier queue_size, accept_backlog, send_buffer and inbox_size must be at least 1")
	}
	if c.Notifier.HandshakeRate <= 0 || c.Notifier.HandshakeBurst < 1 {
		errs = append(errs, "notifier.handshake_rate must be positive and handshake_burst at least 1")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// EffectiveHandshakeTimeout returns the idle limit for unauthenticated connections.
func (n NotifierConfig) EffectiveHandshakeTimeout() time.Duration {
	if n.HandshakeTimeout > 0 {
		return n.HandshakeTimeout
	}
	return n.StationTimeout
}

// NotifierAddr returns the listen address of the station endpoint.
func (c *Config) NotifierAddr() string {
	return fmt.Sprintf("%s:%d", c.Notifier.Host, c.Notifier.Port)
}

// APIAddr returns the listen address of the producer API.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
