// Package config loads the server configuration from a YAML file and the
// environment.
//
// Every key can be overridden by an environment variable prefixed with PAYMCP_,
// with dots replaced by underscores: store.type becomes PAYMCP_STORE_TYPE. String
// values of the form ${VAR} are replaced by the value of VAR, which keeps secrets
// out of checked-in config files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	paymcp "github.com/paymcp/paymcp-go"
	"github.com/paymcp/paymcp-go/logging"
	"github.com/paymcp/paymcp-go/providers"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "PAYMCP"

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config is the full server configuration
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Provider providers.Config `mapstructure:"provider"`
	Store    StoreConfig      `mapstructure:"store"`
	Flow     FlowConfig       `mapstructure:"flow"`
	Log      logging.Config   `mapstructure:"log"`
}

// ServerConfig describes the MCP endpoint
type ServerConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// StoreConfig selects and configures the payment session store
type StoreConfig struct {
	Type string `mapstructure:"type"` // memory | redis | sqlite | postgres | mongo

	// DSN is the Postgres or Mongo connection string, or the SQLite file path
	DSN string `mapstructure:"dsn"`

	// Addr, Password and DB configure Redis
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Database names the Mongo database
	Database string `mapstructure:"database"`

	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// FlowConfig selects the coordination flow and its limits
type FlowConfig struct {
	Mode         string        `mapstructure:"mode"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
	ValidateArgs bool          `mapstructure:"validate_args"`
}

var defaults = map[string]interface{}{
	"server.name":    "paymcp",
	"server.version": "0.1.0",
	"server.addr":    ":8080",
	"server.path":    "/mcp",

	"provider.name":             "sandbox",
	"provider.api_key":          "",
	"provider.client_id":        "",
	"provider.client_secret":    "",
	"provider.merchant_account": "",
	"provider.location_id":      "",
	"provider.base_url":         "",
	"provider.sandbox":          false,
	"provider.success_url":      "",
	"provider.cancel_url":       "",
	"provider.timeout":          "30s",
	"provider.rate_limit":       0,
	"provider.burst":            0,

	"store.type":       StoreMemory,
	"store.dsn":        "",
	"store.addr":       "localhost:6379",
	"store.password":   "",
	"store.db":         0,
	"store.database":   "paymcp",
	"store.key_prefix": "paymcp",
	"store.ttl":        "1h",

	"flow.mode":          string(paymcp.ModeTwoStep),
	"flow.max_attempts":  5,
	"flow.poll_interval": "3s",
	"flow.max_wait":      "15m",
	"flow.validate_args": true,

	"log.level":  "info",
	"log.format": "json",
}

// Default returns the configuration used when no file or environment overrides are present
func Default() *Config {
	cfg, err := load(newViper(false), "")
	if err != nil {
		// defaults are constant and always valid
		panic(err)
	}
	return cfg
}

// Load reads the config file at path, applies environment overrides and validates
// the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	return load(newViper(true), path)
}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	return v
}

func load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	replaceEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// replaceEnvVars substitutes ${VAR} references in credentials and connection strings
func replaceEnvVars(cfg *Config) {
	for _, field := range []*string{
		&cfg.Provider.APIKey,
		&cfg.Provider.ClientID,
		&cfg.Provider.ClientSecret,
		&cfg.Provider.MerchantAccount,
		&cfg.Provider.LocationID,
		&cfg.Provider.BaseURL,
		&cfg.Store.DSN,
		&cfg.Store.Addr,
		&cfg.Store.Password,
	} {
		*field = expand(*field)
	}
}

func expand(value string) string {
	if !strings.Contains(value, "${") {
		return value
	}
	return os.Expand(value, os.Getenv)
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if _, err := paymcp.ParseMode(c.Flow.Mode); err != nil {
		return fmt.Errorf("flow.mode: %w", err)
	}
	if c.Flow.MaxAttempts <= 0 {
		return errors.New("flow.max_attempts must be positive")
	}
	if c.Flow.PollInterval <= 0 {
		return errors.New("flow.poll_interval must be positive")
	}
	if c.Flow.MaxWait < c.Flow.PollInterval {
		return errors.New("flow.max_wait must not be shorter than flow.poll_interval")
	}

	switch c.Store.Type {
	case StoreMemory, StoreRedis:
	case StoreSQLite, StorePostgres, StoreMongo:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for store type %q", c.Store.Type)
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	if strings.TrimSpace(c.Provider.Name) == "" {
		return errors.New("provider.name is required")
	}
	return nil
}

// Mode returns the parsed flow mode
func (c *Config) Mode() paymcp.Mode {
	mode, _ := paymcp.ParseMode(c.Flow.Mode)
	return mode
}
