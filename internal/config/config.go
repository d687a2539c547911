// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/planwise/planwise-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Edit      EditConfig      `yaml:"edit" mapstructure:"edit"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BackendConfig configures the extraction backend API client.
type BackendConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	AuthToken   string  `yaml:"auth_token" mapstructure:"auth_token"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// StoreConfig configures the local state database.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	Path        string            `yaml:"path" mapstructure:"path"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RegistryConfig configures the field catalog source.
type RegistryConfig struct {
	// FieldsFile overrides the builtin catalog with a JSON or YAML fixture.
	FieldsFile string `yaml:"fields_file" mapstructure:"fields_file"`
}

// EditConfig configures edit behavior.
type EditConfig struct {
	UpdatedBy        string `yaml:"updated_by" mapstructure:"updated_by"`
	BulkConcurrency  int    `yaml:"bulk_concurrency" mapstructure:"bulk_concurrency"`
	ClientListTTLMin int    `yaml:"client_list_ttl_minutes" mapstructure:"client_list_ttl_minutes"`
}

// AnthropicConfig holds Anthropic API settings for plan assessment.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLANWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.rate_limit", 10)
	v.SetDefault("backend.max_attempts", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "planwise.db")
	v.SetDefault("edit.updated_by", "advisor")
	v.SetDefault("edit.bulk_concurrency", 4)
	v.SetDefault("edit.client_list_ttl_minutes", 15)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "edit" for
// anything that writes through the backend, "serve" for the HTTP server,
// "assess" for Claude-narrated assessments.
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.Backend.BaseURL == "" {
		missing = append(missing, "backend.base_url is required")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url is required for the postgres driver")
	}

	switch mode {
	case "edit":
		if c.Edit.UpdatedBy == "" {
			missing = append(missing, "edit.updated_by is required")
		}
		if c.Edit.BulkConcurrency < 1 || c.Edit.BulkConcurrency > 16 {
			missing = append(missing, "edit.bulk_concurrency must be between 1 and 16")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "assess":
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required for narrative assessment")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
