// Package config loads LocalZure's YAML configuration file into a
// Config struct, applying the reference defaults to any field the
// file omits. It follows the same yaml.v3-with-struct-tags approach
// used to parse resource manifests elsewhere in this codebase, rather
// than hand-rolled flag parsing.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	KeyVault KeyVaultConfig `yaml:"keyvault"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP facade.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	APIVersion string `yaml:"apiVersion"`
}

// BackendConfig selects and configures the state backend.
type BackendConfig struct {
	Type  string            `yaml:"type"`
	Redis RedisBackendConfig `yaml:"redis"`
	Bolt  BoltBackendConfig  `yaml:"bolt"`
}

// RedisBackendConfig configures the Redis state backend.
type RedisBackendConfig struct {
	Addr                 string `yaml:"addr"`
	Password             string `yaml:"password"`
	DB                   int    `yaml:"db"`
	KeyPrefix            string `yaml:"keyPrefix"`
	MaxConnections       int    `yaml:"maxConnections"`
	SocketTimeoutSeconds int    `yaml:"socketTimeoutSeconds"`
	MaxRetries           int    `yaml:"maxRetries"`
}

// BoltBackendConfig configures the BoltDB state backend.
type BoltBackendConfig struct {
	Path string `yaml:"path"`
}

// KeyVaultConfig configures the Key Vault engine.
type KeyVaultConfig struct {
	SoftDeleteEnabled bool   `yaml:"softDeleteEnabled"`
	RetentionDays     int    `yaml:"retentionDays"`
	VaultHost         string `yaml:"vaultHost"`
}

// OAuthConfig configures the OAuth authority.
type OAuthConfig struct {
	Issuer                string `yaml:"issuer"`
	TokenLifetimeSeconds  int    `yaml:"tokenLifetimeSeconds"`
}

// LoggingConfig configures pkg/log.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the reference configuration, matching every default
// named in the configuration data model: addr ":8080", api-version
// "7.3", memory backend, soft-delete on with a 90-day retention,
// vault host "vault.azure.net", issuer "https://localzure.local",
// a one-hour token lifetime, and info-level text logging.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8080",
			APIVersion: "7.3",
		},
		Backend: BackendConfig{
			Type: "memory",
			Redis: RedisBackendConfig{
				Addr:                 "localhost:6379",
				KeyPrefix:            "localzure:",
				MaxConnections:       50,
				SocketTimeoutSeconds: 5,
				MaxRetries:           3,
			},
			Bolt: BoltBackendConfig{
				Path: "localzure.db",
			},
		},
		KeyVault: KeyVaultConfig{
			SoftDeleteEnabled: true,
			RetentionDays:     90,
			VaultHost:         "vault.azure.net",
		},
		OAuth: OAuthConfig{
			Issuer:               "https://localzure.local",
			TokenLifetimeSeconds: 3600,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads path as YAML into a Config, starting from Default() so
// any field the file omits (or an empty path, which skips reading
// entirely) keeps its reference default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields a partial YAML document
// left unset, so a config file naming only `server.addr` still gets
// every other reference default.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.APIVersion == "" {
		cfg.Server.APIVersion = def.Server.APIVersion
	}
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = def.Backend.Type
	}
	if cfg.Backend.Redis.Addr == "" {
		cfg.Backend.Redis.Addr = def.Backend.Redis.Addr
	}
	if cfg.Backend.Redis.KeyPrefix == "" {
		cfg.Backend.Redis.KeyPrefix = def.Backend.Redis.KeyPrefix
	}
	if cfg.Backend.Redis.MaxConnections == 0 {
		cfg.Backend.Redis.MaxConnections = def.Backend.Redis.MaxConnections
	}
	if cfg.Backend.Redis.SocketTimeoutSeconds == 0 {
		cfg.Backend.Redis.SocketTimeoutSeconds = def.Backend.Redis.SocketTimeoutSeconds
	}
	if cfg.Backend.Redis.MaxRetries == 0 {
		cfg.Backend.Redis.MaxRetries = def.Backend.Redis.MaxRetries
	}
	if cfg.Backend.Bolt.Path == "" {
		cfg.Backend.Bolt.Path = def.Backend.Bolt.Path
	}
	if cfg.KeyVault.RetentionDays == 0 {
		cfg.KeyVault.RetentionDays = def.KeyVault.RetentionDays
	}
	if cfg.KeyVault.VaultHost == "" {
		cfg.KeyVault.VaultHost = def.KeyVault.VaultHost
	}
	if cfg.OAuth.Issuer == "" {
		cfg.OAuth.Issuer = def.OAuth.Issuer
	}
	if cfg.OAuth.TokenLifetimeSeconds == 0 {
		cfg.OAuth.TokenLifetimeSeconds = def.OAuth.TokenLifetimeSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}
