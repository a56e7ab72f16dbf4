package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration loaded from environment variables,
// optionally layered over a YAML file named by DEALERHUB_CONFIG.
type Config struct {
	Addr       string        `yaml:"addr"`       // DEALERHUB_ADDR, default ":8080"
	DBPath     string        `yaml:"db"`         // DEALERHUB_DB, default "dealerhub.db"
	AuthToken  string        `yaml:"authToken"`  // DEALERHUB_AUTH_TOKEN, optional
	APIURL     string        `yaml:"apiUrl"`     // DEALERHUB_API_URL, default derived from Addr
	AlertTTL   time.Duration `yaml:"alertTtl"`   // DEALERHUB_ALERT_TTL, default 5s
	SessionTTL time.Duration `yaml:"sessionTtl"` // DEALERHUB_SESSION_TTL, default 30m
	Sessions   int           `yaml:"sessions"`   // DEALERHUB_SESSIONS, default 256
	PageSize   int           `yaml:"pageSize"`   // DEALERHUB_PAGE_SIZE, default 10
	Seed       bool          `yaml:"seed"`       // DEALERHUB_SEED, default true
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:       ":8080",
		DBPath:     "dealerhub.db",
		AlertTTL:   5 * time.Second,
		SessionTTL: 30 * time.Minute,
		Sessions:   256,
		PageSize:   10,
		Seed:       true,
	}
}

// Load reads configuration from the optional YAML file and then from
// environment variables. Environment variables win over the file.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("DEALERHUB_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Addr = envOr("DEALERHUB_ADDR", cfg.Addr)
	cfg.DBPath = envOr("DEALERHUB_DB", cfg.DBPath)
	cfg.AuthToken = envOr("DEALERHUB_AUTH_TOKEN", cfg.AuthToken)
	cfg.APIURL = envOr("DEALERHUB_API_URL", cfg.APIURL)

	var err error
	if cfg.AlertTTL, err = envDuration("DEALERHUB_ALERT_TTL", cfg.AlertTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = envDuration("DEALERHUB_SESSION_TTL", cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.Sessions, err = envInt("DEALERHUB_SESSIONS", cfg.Sessions); err != nil {
		return Config{}, err
	}
	if cfg.PageSize, err = envInt("DEALERHUB_PAGE_SIZE", cfg.PageSize); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("DEALERHUB_SEED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("DEALERHUB_SEED: %w", err)
		}
		cfg.Seed = b
	}

	if cfg.APIURL == "" {
		cfg.APIURL = selfURL(cfg.Addr)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// selfURL turns a listen address into a loopback base URL so the console
// talks to the API served by the same process.
func selfURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://127.0.0.1" + addr
	}
	return "http://" + addr
}
