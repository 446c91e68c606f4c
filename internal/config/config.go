package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment variables prefixed with "TEMPLATE_" override settings,
// e.g. "TEMPLATE_DATABASE_DSN".
const envVarPrefix = "template"

// Config holds the runtime configuration for the server.
type Config struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`
	// DatabaseDSN is the postgres connection string.
	DatabaseDSN string `mapstructure:"database_dsn"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// TokenSecret signs API tokens.
	TokenSecret string `mapstructure:"token_secret"`
	// TokenTTL is how long issued API tokens stay valid.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// Load reads configuration from the optional config file plus environment
// overrides.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("token_ttl", 24*time.Hour)

	// Unmarshal only sees keys viper knows about, so register the required
	// keys even though they have no usable default.
	v.SetDefault("database_dsn", "")
	v.SetDefault("token_secret", "")

	v.SetEnvPrefix(envVarPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("token_secret is required")
	}
	if cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("database_dsn is required")
	}

	return cfg, nil
}
