package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Values come from an optional YAML
// file, overridden by environment variables.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	DatabaseURL string `yaml:"database_url"`
	TablePrefix string `yaml:"table_prefix"`
	CORSOrigins string `yaml:"cors_origins"`

	// Blob store
	BlobDir    string `yaml:"blob_dir"`
	QuotaBytes int64  `yaml:"quota_bytes"` // per-owner; 0 disables the quota

	// Logging
	LogDir      string `yaml:"log_dir"` // empty logs to stdout only
	LogMaxFiles int    `yaml:"log_max_files"`
}

// Load reads the optional YAML file named by CONFIG_FILE and layers
// environment variables on top.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Port:        "8080",
		Environment: env,
		TablePrefix: tablePrefix(env),
		CORSOrigins: "http://localhost:3000",
		BlobDir:     "./data/blobs",
		LogMaxFiles: 10,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.TablePrefix = getEnv("TABLE_PREFIX", cfg.TablePrefix)
	cfg.CORSOrigins = getEnv("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.BlobDir = getEnv("BLOB_DIR", cfg.BlobDir)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)

	if v := os.Getenv("QUOTA_BYTES"); v != "" {
		quota, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse QUOTA_BYTES: %w", err)
		}
		cfg.QuotaBytes = quota
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// tablePrefix keeps each environment's tables apart in a shared database.
func tablePrefix(env string) string {
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
