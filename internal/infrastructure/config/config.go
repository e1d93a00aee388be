package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SmartThings NG.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	SmartThings SmartThingsConfig `yaml:"smartthings"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Security    SecurityConfig    `yaml:"security"`
}

// SmartThingsConfig contains SmartThings cloud account and SmartApp settings.
type SmartThingsConfig struct {
	// AppID is the SmartApp identifier registered in the developer workspace.
	AppID string `yaml:"app_id"`

	// InstalledAppID identifies the installation whose events this daemon owns.
	// Webhook batches for any other installation are discarded.
	InstalledAppID string `yaml:"installed_app_id"`

	// LocationID scopes device and scene discovery.
	LocationID string `yaml:"location_id"`

	// OAuth client credentials for the SmartApp.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// RefreshToken seeds the token store on first start. After that the
	// persisted tokens in the database take precedence.
	RefreshToken string `yaml:"refresh_token"`

	// WebhookSecret verifies the HMAC signature on incoming webhook requests.
	WebhookSecret string `yaml:"webhook_secret"`

	// TokenRefreshMinutes is the interval between proactive token refreshes.
	// SmartThings access tokens expire after 24 hours; the default refreshes
	// well inside that window.
	TokenRefreshMinutes int `yaml:"token_refresh_minutes"`

	// SetupRetrySeconds is the delay between setup attempts when the cloud
	// is unreachable or returns a transient error.
	SetupRetrySeconds int `yaml:"setup_retry_seconds"`
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

	// DiscoveryPrefix is the root of retained discovery config topics,
	// following the Home Assistant discovery layout.
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// BaseTopic is the root for state, command, and event topics.
	BaseTopic string `yaml:"base_topic"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
	JWT       JWTConfig       `yaml:"jwt"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig contains the API login credentials. Token issuance is
// disabled while the password is empty.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SMARTTHINGSNG_SECTION_KEY
// For example: SMARTTHINGSNG_DATABASE_PATH, SMARTTHINGSNG_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		SmartThings: SmartThingsConfig{
			TokenRefreshMinutes: 360,
			SetupRetrySeconds:   30,
		},
		Database: DatabaseConfig{
			Path:        "./data/smartthingsng.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "smartthingsng",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			DiscoveryPrefix: "homeassistant",
			BaseTopic:       "smartthingsng",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
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
				AccessTokenTTL: 15,
			},
			Auth: AuthConfig{
				Username: "admin",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 100,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SMARTTHINGSNG_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// SmartThings
	if v := os.Getenv("SMARTTHINGSNG_ST_APP_ID"); v != "" {
		cfg.SmartThings.AppID = v
	}
	if v := os.Getenv("SMARTTHINGSNG_ST_INSTALLED_APP_ID"); v != "" {
		cfg.SmartThings.InstalledAppID = v
	}
	if v := os.Getenv("SMARTTHINGSNG_ST_LOCATION_ID"); v != "" {
		cfg.SmartThings.LocationID = v
	}
	if v := os.Getenv("SMARTTHINGSNG_ST_CLIENT_ID"); v != "" {
		cfg.SmartThings.ClientID = v
	}
	if v := os.Getenv("SMARTTHINGSNG_ST_CLIENT_SECRET"); v != "" {
		cfg.SmartThings.ClientSecret = v
	}
	if v := os.Getenv("SMARTTHINGSNG_ST_REFRESH_TOKEN"); v != "" {
		cfg.SmartThings.RefreshToken = v
	}
	if v := os.Getenv("SMARTTHINGSNG_ST_WEBHOOK_SECRET"); v != "" {
		cfg.SmartThings.WebhookSecret = v
	}

	// Database
	if v := os.Getenv("SMARTTHINGSNG_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SMARTTHINGSNG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SMARTTHINGSNG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SMARTTHINGSNG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SMARTTHINGSNG_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SMARTTHINGSNG_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SMARTTHINGSNG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("SMARTTHINGSNG_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("SMARTTHINGSNG_AUTH_USERNAME"); v != "" {
		cfg.Security.Auth.Username = v
	}
	if v := os.Getenv("SMARTTHINGSNG_AUTH_PASSWORD"); v != "" {
		cfg.Security.Auth.Password = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// SmartThings validation
	if c.SmartThings.AppID == "" {
		errs = append(errs, "smartthings.app_id is required")
	}
	if c.SmartThings.InstalledAppID == "" {
		errs = append(errs, "smartthings.installed_app_id is required")
	}
	if c.SmartThings.LocationID == "" {
		errs = append(errs, "smartthings.location_id is required")
	}
	if c.SmartThings.ClientID == "" || c.SmartThings.ClientSecret == "" {
		errs = append(errs, "smartthings.client_id and smartthings.client_secret are required")
	}
	if c.SmartThings.TokenRefreshMinutes < 1 {
		errs = append(errs, "smartthings.token_refresh_minutes must be at least 1")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.BaseTopic == "" {
		errs = append(errs, "mqtt.base_topic is required when mqtt is enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - JWT secret is REQUIRED
	// The API exposes command execution against physical devices, so weak
	// secrets could let an attacker forge tokens and operate hardware.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set SMARTTHINGSNG_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// GetTokenRefreshInterval returns the proactive token refresh interval.
func (c *Config) GetTokenRefreshInterval() time.Duration {
	return time.Duration(c.SmartThings.TokenRefreshMinutes) * time.Minute
}

// GetSetupRetryDelay returns the delay between failed setup attempts.
func (c *Config) GetSetupRetryDelay() time.Duration {
	return time.Duration(c.SmartThings.SetupRetrySeconds) * time.Second
}
