// Package platform wires the bot, its stores and its HTTP surface together.
package platform

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion is the only supported config apiVersion.
const CurrentConfigVersion = "v1"

// maxPageSize is the number of fields a Discord embed can carry.
const maxPageSize = 25

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLOTWATCH_"

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds the complete configuration.
type Config struct {
	APIVersion string           `yaml:"apiVersion"`
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Discord    DiscordConfig    `yaml:"discord" envPrefix:"DISCORD_"`
	PaissaDB   PaissaDBConfig   `yaml:"paissadb" envPrefix:"PAISSADB_"`
	Database   DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	Pagination PaginationConfig `yaml:"pagination" envPrefix:"PAGINATION_"`
	Admin      AdminConfig      `yaml:"admin" envPrefix:"ADMIN_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOGGING_"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address" env:"ADDRESS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DiscordConfig configures the chat transport.
type DiscordConfig struct {
	Token string `yaml:"token" env:"TOKEN"`
	// GuildID registers commands in a single guild; empty registers globally.
	GuildID        string        `yaml:"guild_id" env:"GUILD_ID"`
	Color          int           `yaml:"color" env:"COLOR"`
	CommandTimeout time.Duration `yaml:"command_timeout" env:"COMMAND_TIMEOUT"`
	SkipRegister   bool          `yaml:"skip_register" env:"SKIP_REGISTER"`
}

// PaissaDBConfig configures the dataset client.
type PaissaDBConfig struct {
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	UserAgent  string        `yaml:"user_agent" env:"USER_AGENT"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxElapsed time.Duration `yaml:"max_elapsed" env:"MAX_ELAPSED"`
}

// DatabaseConfig configures the durable session store.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" env:"DRIVER"`
	DSN          string `yaml:"dsn" env:"DSN"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

// PaginationConfig configures sessions.
type PaginationConfig struct {
	PageSize      int           `yaml:"page_size" env:"PAGE_SIZE"`
	Retention     time.Duration `yaml:"retention" env:"RETENTION"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	QueueSize     int           `yaml:"queue_size" env:"QUEUE_SIZE"`
}

// AdminConfig configures the admin API. The API is unauthenticated when no
// signing key is set.
type AdminConfig struct {
	SigningKey string `yaml:"signing_key" env:"SIGNING_KEY"`
	Issuer     string `yaml:"issuer" env:"ISSUER"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
}

// LoggingConfig configures the default logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// LoadConfig loads configuration from a YAML file, then applies
// PLOTWATCH_-prefixed environment overrides and defaults. An empty path
// configures from the environment alone.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		// #nosec G304 -- path is from CLI args, controlled by admin
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = CurrentConfigVersion
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverMemory
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Pagination.PageSize == 0 {
		cfg.Pagination.PageSize = 9
	}
	if cfg.Pagination.Retention == 0 {
		cfg.Pagination.Retention = 7 * 24 * time.Hour
	}
	if cfg.Pagination.SweepInterval == 0 {
		cfg.Pagination.SweepInterval = 24 * time.Hour
	}
	if cfg.Pagination.QueueSize == 0 {
		cfg.Pagination.QueueSize = 8
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "plotwatch"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.APIVersion != CurrentConfigVersion {
		errs = append(errs, fmt.Sprintf("unsupported apiVersion %q; supported versions: %s", c.APIVersion, CurrentConfigVersion))
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverMySQL, DriverSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for driver "+c.Database.Driver)
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be one of postgres, mysql, sqlite, memory", c.Database.Driver))
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, "database.max_open_conns must not be negative")
	}

	if c.Pagination.PageSize < 1 || c.Pagination.PageSize > maxPageSize {
		errs = append(errs, fmt.Sprintf("pagination.page_size must be between 1 and %d", maxPageSize))
	}
	if c.Pagination.Retention <= 0 {
		errs = append(errs, "pagination.retention must be positive")
	}
	if c.Pagination.SweepInterval <= 0 {
		errs = append(errs, "pagination.sweep_interval must be positive")
	}
	if c.Pagination.QueueSize < 1 {
		errs = append(errs, "pagination.queue_size must be positive")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ErrMissingToken is returned when the bot is started without a token.
var ErrMissingToken = errors.New("discord.token is required")
