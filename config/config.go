// Package config loads service configuration from a TOML file and
// RECONCILE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// AuthConfig holds the stand-in identity settings. Real
// authentication is an external concern; the engine only needs an
// acting user id to resolve the organization and stamp audit fields.
type AuthConfig struct {
	DefaultUser string
}

// Load reads configuration from file and env. Env overrides use the
// RECONCILE_ prefix, e.g. RECONCILE_DATABASE_PATH.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "reconcile-engine", "reconcile.db"))
	v.SetDefault("auth.default_user", "local-user")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("RECONCILE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "reconcile-engine"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("RECONCILE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// config file is optional
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
