package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Provider ProviderConfig
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Addr string
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path       string
	Migrations string
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ProviderConfig holds transaction-provider client settings.
type ProviderConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	ClientID string        `mapstructure:"client_id"`
	Secret   string        `mapstructure:"secret"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and env. Env var overrides use prefix CENTSIBLE_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.path", filepath.Join("data", "centsible.db"))
	v.SetDefault("database.migrations", filepath.Join("internal", "database", "migrations"))
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("provider.base_url", "https://sandbox.plaid.com")
	v.SetDefault("provider.client_id", "")
	v.SetDefault("provider.secret", "")
	v.SetDefault("provider.timeout", 30*time.Second)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("CENTSIBLE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "centsible"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CENTSIBLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
