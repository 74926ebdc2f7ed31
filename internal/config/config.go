// Package config loads the journeywatch service configuration from a YAML
// file, an optional .env file and JOURNEYWATCH_* environment variables, in
// that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/journeywatch/internal/notify"
	"github.com/ppiankov/journeywatch/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JOURNEYWATCH_"

// Config holds all service settings.
type Config struct {
	HTTPAddr     string             `yaml:"http_addr"`
	GRPCPort     int                `yaml:"grpc_port"`
	ZonesPath    string             `yaml:"zones_path"`
	AuditLog     string             `yaml:"audit_log"`
	NotifyConfig string             `yaml:"notify_config"`
	Store        store.Config       `yaml:"store"`
	Kafka        notify.KafkaConfig `yaml:"kafka"`
	LogLevel     string             `yaml:"log_level"`
	LogDev       bool               `yaml:"log_development"`
	// Timezone, when set, is the clock night detection converts sample
	// timestamps to. Empty keeps each sample's own offset.
	Timezone            string `yaml:"timezone"`
	DedupLocationWeight bool   `yaml:"dedup_location_weight"`
}

// Dir is the per-user state directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".journeywatch"
	}
	return filepath.Join(home, ".journeywatch")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		HTTPAddr:     ":8080",
		GRPCPort:     9090,
		ZonesPath:    filepath.Join(dir, "zones.yaml"),
		AuditLog:     filepath.Join(dir, "audit.jsonl"),
		NotifyConfig: filepath.Join(dir, "notify.yaml"),
		Store: store.Config{
			Backend:    store.BackendSQLite,
			SQLitePath: filepath.Join(dir, "alerts.db"),
			RedisAddr:  "localhost:6379",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. Empty path falls back to
// ~/.journeywatch/config.yaml; a missing file keeps defaults, invalid YAML
// is an error. envFiles default to ".env"; missing ones are skipped.
func Load(path string, envFiles ...string) (*Config, error) {
	if path == "" {
		path = filepath.Join(Dir(), "config.yaml")
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.ZonesPath = getEnv("ZONES", c.ZonesPath)
	c.AuditLog = getEnv("AUDIT_LOG", c.AuditLog)
	c.NotifyConfig = getEnv("NOTIFY_CONFIG", c.NotifyConfig)
	c.Store.Backend = getEnv("STORE", c.Store.Backend)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.PostgresDSN = getEnv("POSTGRES_DSN", c.Store.PostgresDSN)
	c.Store.RedisAddr = getEnv("REDIS_ADDR", c.Store.RedisAddr)
	c.Store.RedisPassword = getEnv("REDIS_PASSWORD", c.Store.RedisPassword)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	var err error
	if c.GRPCPort, err = getEnvInt("GRPC_PORT", c.GRPCPort); err != nil {
		return err
	}
	if c.Store.RedisDB, err = getEnvInt("REDIS_DB", c.Store.RedisDB); err != nil {
		return err
	}
	if c.LogDev, err = getEnvBool("LOG_DEVELOPMENT", c.LogDev); err != nil {
		return err
	}
	if c.DedupLocationWeight, err = getEnvBool("DEDUP_LOCATION_WEIGHT", c.DedupLocationWeight); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendSQLite, store.BackendPostgres, store.BackendRedis:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == store.BackendPostgres && c.Store.PostgresDSN == "" {
		return fmt.Errorf("config: postgres store requires postgres_dsn")
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("config: grpc_port %d out of range", c.GRPCPort)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Empty returns nil: samples are judged on
// their own clock.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
