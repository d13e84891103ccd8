package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	HomeKit   HomeKitConfig   `yaml:"homekit"`
	Sync      SyncConfig      `yaml:"sync"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HubConfig contains Fibaro Home Center connection settings.
type HubConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`
	// PollInterval is the time between sync passes in seconds.
	PollInterval int `yaml:"poll_interval"`
}

// HomeKitConfig contains HAP bridge settings.
type HomeKitConfig struct {
	Name         string `yaml:"name"`
	Pin          string `yaml:"pin"`
	Addr         string `yaml:"addr"`
	StorePath    string `yaml:"store_path"`
	Manufacturer string `yaml:"manufacturer"`
}

// SyncConfig controls what a sync pass publishes and how.
type SyncConfig struct {
	// Concurrency bounds how many devices are reconciled at once.
	Concurrency     int                   `yaml:"concurrency"`
	Scenes          bool                  `yaml:"scenes"`
	SecuritySystem  bool                  `yaml:"security_system"`
	GlobalVariables GlobalVariablesConfig `yaml:"global_variables"`
}

// GlobalVariablesConfig lists hub global variables exposed as accessories.
type GlobalVariablesConfig struct {
	Dimmers  []string `yaml:"dimmers"`
	Switches []string `yaml:"switches"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
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

// APIConfig contains status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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

// WebSocketConfig contains WebSocket stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: HCBRIDGE_SECTION_KEY
// For example: HCBRIDGE_HUB_URL, HCBRIDGE_HOMEKIT_PIN
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			Timeout:      10,
			PollInterval: 60,
		},
		HomeKit: HomeKitConfig{
			Name:         "Home Center Bridge",
			Pin:          "00102003",
			StorePath:    "./data/hap",
			Manufacturer: "IlCato",
		},
		Sync: SyncConfig{
			Concurrency:    4,
			Scenes:         true,
			SecuritySystem: false,
		},
		Database: DatabaseConfig{
			Path:        "./data/hcbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hcbridge",
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
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HCBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("HCBRIDGE_HUB_URL"); v != "" {
		cfg.Hub.URL = v
	}
	if v := os.Getenv("HCBRIDGE_HUB_USERNAME"); v != "" {
		cfg.Hub.Username = v
	}
	if v := os.Getenv("HCBRIDGE_HUB_PASSWORD"); v != "" {
		cfg.Hub.Password = v
	}
	if v := os.Getenv("HCBRIDGE_HUB_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Hub.PollInterval = n
		}
	}

	// HomeKit
	if v := os.Getenv("HCBRIDGE_HOMEKIT_PIN"); v != "" {
		cfg.HomeKit.Pin = v
	}
	if v := os.Getenv("HCBRIDGE_HOMEKIT_STORE_PATH"); v != "" {
		cfg.HomeKit.StorePath = v
	}

	// Database
	if v := os.Getenv("HCBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HCBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HCBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HCBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HCBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("HCBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.URL == "" {
		errs = append(errs, "hub.url is required (set HCBRIDGE_HUB_URL environment variable)")
	}
	if c.Hub.PollInterval < 1 {
		errs = append(errs, "hub.poll_interval must be at least 1 second")
	}

	// HAP setup codes are eight digits.
	if !validPin(c.HomeKit.Pin) {
		errs = append(errs, "homekit.pin must be 8 digits")
	}
	if c.HomeKit.StorePath == "" {
		errs = append(errs, "homekit.store_path is required")
	}

	if c.Sync.Concurrency < 1 {
		errs = append(errs, "sync.concurrency must be at least 1")
	}
	errs = append(errs, c.Sync.GlobalVariables.validate()...)

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate rejects empty and repeated names. Each variable becomes one
// accessory, so it may be listed once across dimmers and switches.
func (g GlobalVariablesConfig) validate() []string {
	var errs []string
	seen := make(map[string]string)
	check := func(list string, names []string) {
		for _, name := range names {
			if name == "" {
				errs = append(errs, "sync.global_variables."+list+" contains an empty name")
				continue
			}
			if prev, dup := seen[name]; dup {
				if prev == list {
					errs = append(errs, fmt.Sprintf("sync.global_variables.%s lists %q twice", list, name))
				} else {
					errs = append(errs, fmt.Sprintf("sync.global_variables: %q listed in both %s and %s", name, prev, list))
				}
				continue
			}
			seen[name] = list
		}
	}
	check("dimmers", g.Dimmers)
	check("switches", g.Switches)
	return errs
}

func validPin(pin string) bool {
	if len(pin) != 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetPollInterval returns the hub poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Hub.PollInterval) * time.Second
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
