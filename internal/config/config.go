// Package config collects runtime configuration for the bot. Values come
// from an optional YAML file named by VENDO_CONFIG, with environment
// variables taking precedence over the file.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything cmd/bot needs to wire the process.
type Config struct {
	Token          string        `yaml:"token"`
	OperatorID     int64         `yaml:"operator_id"`
	DataFile       string        `yaml:"data_file"`
	LedgerFile     string        `yaml:"ledger_file"`
	HeartbeatEvery time.Duration `yaml:"-"`

	HeartbeatMinutes int `yaml:"heartbeat_minutes"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func int64env(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Load builds the config: defaults, then the YAML file if present, then env.
func Load() (Config, error) {
	cfg := Config{
		DataFile:         "items.json",
		LedgerFile:       "ledger.db",
		HeartbeatMinutes: 10,
	}

	if path := os.Getenv("VENDO_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Token = getenv("VENDO_TOKEN", cfg.Token)
	cfg.OperatorID = int64env("VENDO_OPERATOR_ID", cfg.OperatorID)
	cfg.DataFile = getenv("VENDO_DATA_FILE", cfg.DataFile)
	cfg.LedgerFile = getenv("VENDO_LEDGER_FILE", cfg.LedgerFile)
	cfg.HeartbeatMinutes = int(int64env("VENDO_HEARTBEAT_MIN", int64(cfg.HeartbeatMinutes)))

	if cfg.HeartbeatMinutes <= 0 {
		cfg.HeartbeatMinutes = 10
	}
	cfg.HeartbeatEvery = time.Duration(cfg.HeartbeatMinutes) * time.Minute

	return cfg, nil
}
