package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Importer   ImporterConfig   `yaml:"importer"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ImporterConfig holds the spreadsheet import settings that are not
// user-editable at runtime. The mutable source settings (transport kind,
// address, credentials, schedule) live in the JSON file managed by
// source.Manager at SourceConfigPath.
type ImporterConfig struct {
	SourceConfigPath string `yaml:"source_config_path"`
	VaultKeyPath     string `yaml:"vault_key_path"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	Timezone         string `yaml:"timezone"`
	// LocalMirror names a locally synced copy of the network share
	// workbook, used as a fallback when the share is unreachable.
	LocalMirror string `yaml:"local_mirror"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Importer.SourceConfigPath == "" {
		cfg.Importer.SourceConfigPath = "./source.json"
	}
	if cfg.Importer.VaultKeyPath == "" {
		cfg.Importer.VaultKeyPath = "./vault.key"
	}
	if cfg.Importer.TimeoutSeconds <= 0 {
		cfg.Importer.TimeoutSeconds = 30
	}
	if cfg.Importer.Timezone == "" {
		cfg.Importer.Timezone = "America/Sao_Paulo"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
