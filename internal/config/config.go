package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	Env   string `yaml:"env"`   // "dev" | "prod"
	Store string `yaml:"store"` // "sqlite" | "memory"

	DBPath string `yaml:"db_path"` // e.g. "./data/signin.db"

	// SiteName seeds the settings blob in dev when none is stored.
	SiteName string `yaml:"site_name"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	// Blob history retention (sqlite store only).
	HistoryKeep        int `yaml:"history_keep"`         // 0 = keep forever
	PruneIntervalHours int `yaml:"prune_interval_hours"` // default 6
}

func Defaults() Config {
	return Config{
		HTTPAddr:           ":8080",
		Env:                "dev",
		Store:              "sqlite",
		DBPath:             "./data/signin.db",
		MetricsEnabled:     true,
		HistoryKeep:        50,
		PruneIntervalHours: 6,
	}
}

// Load builds the config from defaults, then the YAML file named by
// SIGNIN_CONFIG (if set), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("SIGNIN_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

// FromEnv is Load without a config file.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	normalize(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("SIGNIN_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Env = strings.ToLower(getenvDefault("SIGNIN_ENV", cfg.Env))
	cfg.Store = strings.ToLower(getenvDefault("SIGNIN_STORE", cfg.Store))
	cfg.DBPath = getenvDefault("SIGNIN_DB_PATH", cfg.DBPath)
	cfg.SiteName = getenvDefault("SIGNIN_SITE_NAME", cfg.SiteName)
	cfg.MetricsEnabled = getenvBool("SIGNIN_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.HistoryKeep = getenvInt("SIGNIN_HISTORY_KEEP", cfg.HistoryKeep)
	cfg.PruneIntervalHours = getenvInt("SIGNIN_PRUNE_INTERVAL_HOURS", cfg.PruneIntervalHours)
}

// normalize is fail-soft: unknown values fall back to defaults.
func normalize(cfg *Config) {
	if cfg.Env != "dev" && cfg.Env != "prod" {
		cfg.Env = "dev"
	}
	if cfg.Store != "sqlite" && cfg.Store != "memory" {
		cfg.Store = "sqlite"
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.HistoryKeep < 0 {
		cfg.HistoryKeep = 0
	}
	if cfg.PruneIntervalHours <= 0 {
		cfg.PruneIntervalHours = 6
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}
