package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Night Watch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
	Observatory ObservatoryConfig `yaml:"observatory"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Health      HealthConfig      `yaml:"health"`
	SunTimes    SunTimesConfig    `yaml:"suntimes"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for sunrise/sunset lookups.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// AbortPerMinute rate-limits operator abort requests.
	// Default: 6
	AbortPerMinute int `yaml:"abort_per_minute"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains operator token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// ObservatoryConfig describes the observation session itself: where the plan
// comes from, where frames go, and how the hardware bridges are driven.
type ObservatoryConfig struct {
	// PlanFile is the plan text written by the planning stage.
	PlanFile string `yaml:"plan_file"`

	// OutputDir is the root under which per-target image directories are created.
	OutputDir string `yaml:"output_dir"`

	// ExposureSeconds is the exposure duration of every frame.
	ExposureSeconds float64 `yaml:"exposure_seconds"`

	// PollInterval is the begin-time wait granularity.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// ReadyPollInterval is how often the camera is asked whether the frame is ready.
	// Default: 100ms
	ReadyPollInterval time.Duration `yaml:"ready_poll_interval"`

	// ReadyTimeout bounds the wait for a single frame.
	// Default: 30s
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// CommandTimeout bounds each request/response exchange with a hardware bridge.
	// Default: 10s
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// HomeTimeout bounds FindHome, which blocks until the mount settles.
	// Default: 5m
	HomeTimeout time.Duration `yaml:"home_timeout"`

	// ConnectTimeout bounds the wait for the mount to report connected.
	// Default: 60s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// DomeOpenAttempts limits shutter open retries during startup.
	// Default: 5
	DomeOpenAttempts int `yaml:"dome_open_attempts"`

	// DomeSettle is the pause after a shutter command before its state is
	// read back.
	// Default: 5s
	DomeSettle time.Duration `yaml:"dome_settle"`
}

// ScheduleConfig holds the sun-relative timing rules of the day cycle and the
// planning-stage window policy.
type ScheduleConfig struct {
	// BlackoutBuffer is the protective window after sunrise and before sunset.
	// Default: 10m
	BlackoutBuffer time.Duration `yaml:"blackout_buffer"`

	// StartOffset is how long after sunset the cycle starts up.
	// Default: 10m
	StartOffset time.Duration `yaml:"start_offset"`

	// ShutdownBeforeSunrise is how long before the next sunrise a running
	// cycle is shut down.
	// Default: 8m
	ShutdownBeforeSunrise time.Duration `yaml:"shutdown_before_sunrise"`

	// MinGap is the minimum spacing between kept observation windows.
	// Default: 1m
	MinGap time.Duration `yaml:"min_gap"`

	// WindowHalfWidth narrows each window around its midpoint. Zero keeps
	// the full window.
	// Default: 2m
	WindowHalfWidth time.Duration `yaml:"window_half_width"`
}

// HealthConfig configures the bounded pre-observation health check.
type HealthConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

// SunTimesConfig configures the sunrise/sunset lookup service.
type SunTimesConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Attempts int           `yaml:"attempts"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NIGHTWATCH_SECTION_KEY
// For example: NIGHTWATCH_DATABASE_PATH, NIGHTWATCH_PLAN_FILE
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Night Watch",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/nightwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "nightwatch-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			AbortPerMinute: 6,
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
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 720,
			},
		},
		Observatory: ObservatoryConfig{
			PlanFile:          "tleplan.txt",
			OutputDir:         "./data/frames",
			ExposureSeconds:   0.1,
			PollInterval:      time.Second,
			ReadyPollInterval: 100 * time.Millisecond,
			ReadyTimeout:      30 * time.Second,
			CommandTimeout:    10 * time.Second,
			HomeTimeout:       5 * time.Minute,
			ConnectTimeout:    time.Minute,
			DomeOpenAttempts:  5,
			DomeSettle:        5 * time.Second,
		},
		Schedule: ScheduleConfig{
			BlackoutBuffer:        10 * time.Minute,
			StartOffset:           10 * time.Minute,
			ShutdownBeforeSunrise: 8 * time.Minute,
			MinGap:                time.Minute,
			WindowHalfWidth:       2 * time.Minute,
		},
		Health: HealthConfig{
			MaxAttempts: 10,
			Interval:    30 * time.Second,
		},
		SunTimes: SunTimesConfig{
			BaseURL:  "https://api.sunrise-sunset.org",
			Timeout:  15 * time.Second,
			Attempts: 3,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NIGHTWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("NIGHTWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("NIGHTWATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NIGHTWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NIGHTWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("NIGHTWATCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NIGHTWATCH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("NIGHTWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Observatory
	if v := os.Getenv("NIGHTWATCH_PLAN_FILE"); v != "" {
		cfg.Observatory.PlanFile = v
	}
	if v := os.Getenv("NIGHTWATCH_OUTPUT_DIR"); v != "" {
		cfg.Observatory.OutputDir = v
	}

	// Security
	if v := os.Getenv("NIGHTWATCH_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent field checks
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a known zone", c.Site.Timezone))
	}
	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < -180 || c.Site.Location.Longitude > 180 {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The abort endpoint moves real hardware; refuse to expose it with a weak secret.
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when the API is enabled (set NIGHTWATCH_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if c.Observatory.PlanFile == "" {
		errs = append(errs, "observatory.plan_file is required")
	}
	if c.Observatory.OutputDir == "" {
		errs = append(errs, "observatory.output_dir is required")
	}
	if c.Observatory.ExposureSeconds <= 0 {
		errs = append(errs, "observatory.exposure_seconds must be positive")
	}
	if c.Observatory.PollInterval <= 0 {
		errs = append(errs, "observatory.poll_interval must be positive")
	}
	if c.Observatory.CommandTimeout <= 0 {
		errs = append(errs, "observatory.command_timeout must be positive")
	}

	if c.Schedule.MinGap < 0 {
		errs = append(errs, "schedule.min_gap must not be negative")
	}
	if c.Schedule.BlackoutBuffer < 0 {
		errs = append(errs, "schedule.blackout_buffer must not be negative")
	}
	if c.Schedule.ShutdownBeforeSunrise < 0 {
		errs = append(errs, "schedule.shutdown_before_sunrise must not be negative")
	}

	if c.Health.MaxAttempts < 1 {
		errs = append(errs, "health.max_attempts must be at least 1")
	}
	if c.Health.Interval <= 0 {
		errs = append(errs, "health.interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the site time zone used to interpret plan timestamps.
// Validate guarantees the zone name resolves.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
