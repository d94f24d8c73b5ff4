// Package config loads the engine's bootstrap configuration via viper:
// $XDG_CONFIG_HOME/goimap-engine/config.yaml, overridable by GOIMAP_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// TLSMode selects how CreateConnection reaches the server.
type TLSMode string

const (
	TLSImplicit TLSMode = "implicit"
	TLSStartTLS TLSMode = "starttls"
	TLSNone     TLSMode = "none"
)

// Config is the engine's bootstrap surface: how to reach the server and
// where to keep cached state, none of which spec.md's core addresses
// since it treats credential acquisition as out of scope the way it
// treats the GUI as out of scope.
type Config struct {
	ServerAddr           string  `mapstructure:"server_addr"`
	TLSMode              TLSMode `mapstructure:"tls_mode"`
	Account              string  `mapstructure:"account"`
	ExternalsEnabled     bool    `mapstructure:"externals_enabled"`
	AllowPlaintextAuth   bool    `mapstructure:"allow_plaintext_auth"`
	PlaintextPassword    string  `mapstructure:"plaintext_password"`
	SQLiteCachePath      string  `mapstructure:"sqlite_cache_path"`
	UseCompression       bool    `mapstructure:"use_compression"`
	// AuthMechanism is the SASL mechanism AUTHENTICATE falls back to once
	// LOGINDISABLED rules out plain LOGIN: "plain", "xoauth2", or
	// "external". PlaintextPassword/the keyring entry supplies the OAuth
	// bearer token when this is "xoauth2".
	AuthMechanism        string  `mapstructure:"auth_mechanism"`
}

// Load reads configuration from $XDG_CONFIG_HOME/goimap-engine/config.yaml
// (falling back to ~/.config), applying GOIMAP_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir())
	v.SetEnvPrefix("GOIMAP")
	v.AutomaticEnv()

	v.SetDefault("tls_mode", string(TLSStartTLS))
	v.SetDefault("externals_enabled", false)
	v.SetDefault("allow_plaintext_auth", false)
	v.SetDefault("use_compression", false)
	v.SetDefault("auth_mechanism", "plain")
	v.SetDefault("sqlite_cache_path", filepath.Join(configDir(), "cache.sqlite"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &c, nil
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "goimap-engine")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goimap-engine"
	}
	return filepath.Join(home, ".config", "goimap-engine")
}
