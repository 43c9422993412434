package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	SendGrid   SendGridConfig   `yaml:"sendgrid"`
	Invitation InvitationConfig `yaml:"invitation"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Events     EventsConfig     `yaml:"events"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// ServerConfig contains HTTP API and health server settings
type ServerConfig struct {
	Host       string `yaml:"host" env:"SERVER_HOST"`
	Port       int    `yaml:"port" env:"SERVER_PORT"`
	HealthPort int    `yaml:"health_port" env:"SERVER_HEALTH_PORT"`
}

// DatabaseConfig selects and configures the key-value store backend
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER"` // "postgres", "sqlite" or "memory"
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
	Path     string `yaml:"path" env:"DB_PATH"` // sqlite file
}

// SendGridConfig contains email delivery settings. Templates maps an
// internal template name (e.g. "invitation") to a SendGrid dynamic template id.
type SendGridConfig struct {
	APIKey    string            `yaml:"api_key" env:"SENDGRID_API_KEY"`
	FromEmail string            `yaml:"from_email" env:"SENDGRID_FROM_EMAIL"`
	FromName  string            `yaml:"from_name" env:"SENDGRID_FROM_NAME"`
	Templates map[string]string `yaml:"templates"`
}

// InvitationConfig holds the site settings invitations depend on
type InvitationConfig struct {
	BaseURL          string `yaml:"base_url" env:"INVITE_BASE_URL"`
	ExpirationDays   int    `yaml:"expiration_days" env:"INVITE_EXPIRATION_DAYS"`
	RegistrationType string `yaml:"registration_type" env:"REGISTRATION_TYPE"`
	DefaultLang      string `yaml:"default_lang" env:"DEFAULT_LANG"`
	Title            string `yaml:"title" env:"SITE_TITLE"`
	BrowserTitle     string `yaml:"browser_title" env:"SITE_BROWSER_TITLE"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret" env:"JWT_SECRET"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes" env:"JWT_ACCESS_TOKEN_EXPIRY_MINUTES"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "text"
}

// TelemetryConfig enables OTLP trace export when Endpoint is set
type TelemetryConfig struct {
	Endpoint    string `yaml:"otlp_endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// EventsConfig sizes the asynchronous event bus
type EventsConfig struct {
	QueueSize int `yaml:"queue_size" env:"EVENTS_QUEUE_SIZE"`
	Workers   int `yaml:"workers" env:"EVENTS_WORKERS"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	SweepStaleInvitations string `yaml:"sweep_stale_invitations"`
	PurgeExpiredKeys      string `yaml:"purge_expired_keys"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying environment
// overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables win over the file
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.HealthPort < 0 || c.Server.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", c.Server.HealthPort)
	}

	switch c.Database.Driver {
	case "", "memory":
		c.Database.Driver = "memory"
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Invitation.BaseURL == "" {
		return fmt.Errorf("invitation base url is required")
	}
	c.Invitation.BaseURL = strings.TrimRight(c.Invitation.BaseURL, "/")
	if c.Invitation.ExpirationDays < 0 {
		return fmt.Errorf("invalid invitation expiration: %d days", c.Invitation.ExpirationDays)
	}
	if c.Invitation.ExpirationDays == 0 {
		c.Invitation.ExpirationDays = 7
	}
	if c.Invitation.RegistrationType == "" {
		c.Invitation.RegistrationType = "normal"
	}
	if c.Invitation.DefaultLang == "" {
		c.Invitation.DefaultLang = "en-GB"
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "forum-invitations"
	}

	if c.Events.QueueSize == 0 {
		c.Events.QueueSize = 256
	}
	if c.Events.Workers == 0 {
		c.Events.Workers = 2
	}

	if c.Scheduler.SweepStaleInvitations == "" {
		c.Scheduler.SweepStaleInvitations = "0 0 * * * *" // hourly
	}
	if c.Scheduler.PurgeExpiredKeys == "" {
		c.Scheduler.PurgeExpiredKeys = "0 */10 * * * *" // every 10 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns the DSN for the configured driver
func (c *Config) GetDatabaseConnectionString() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP API address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetHealthAddress returns the gRPC health server address, or "" when disabled
func (c *Config) GetHealthAddress() string {
	if c.Server.HealthPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HealthPort)
}
