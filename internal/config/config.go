// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends for the user config store.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// Conversation state backends.
const (
	StateMemory = "memory"
	StateRedis  = "redis"
)

const (
	minPanelTimeout = 10 * time.Second
	maxPanelTimeout = 15 * time.Second
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
	// SendRate caps outbound Telegram calls per second.
	SendRate  float64 `yaml:"send_rate"`
	SendBurst int     `yaml:"send_burst"`
	// RateLimit is the per-user inbound budget per RateWindow (redis only).
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"` // postgres|sqlite|memory
	SQLitePath string `yaml:"sqlite_path"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StateConfig struct {
	Backend string        `yaml:"backend"` // memory|redis
	TTL     time.Duration `yaml:"ttl"`     // redis only; zero keeps abandoned flows forever
}

type SMMConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MinKeyLength     int           `yaml:"min_key_length"`
	NumericServiceID bool          `yaml:"numeric_service_id"`
}

type DispatchConfig struct {
	Workers int `yaml:"workers"`
	// MaxOverflow caps the extra goroutines started while every worker is
	// busy; orders beyond it are dropped.
	MaxOverflow     int           `yaml:"max_overflow"`
	PerOrderTimeout time.Duration `yaml:"per_order_timeout"`
}

type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	State    StateConfig    `yaml:"state"`
	SMM      SMMConfig      `yaml:"smm"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Stats    StatsConfig    `yaml:"stats"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, loads .env if present, applies
// environment overrides and defaults, then validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse builds a validated Config from raw YAML plus the process environment.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&cfg.Bot.Token, "BOT_TOKEN")
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Security.EncryptionKey, "ENCRYPTION_KEY")
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.SendRate <= 0 {
		cfg.Bot.SendRate = 25
	}
	if cfg.Bot.SendBurst <= 0 {
		cfg.Bot.SendBurst = 5
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StoragePostgres
	}
	if cfg.Storage.Backend == StorageSQLite && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/autoboost.db"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	cfg.State.Backend = strings.ToLower(strings.TrimSpace(cfg.State.Backend))
	if cfg.State.Backend == "" {
		cfg.State.Backend = StateMemory
	}
	cfg.SMM.Timeout = clampTimeout(cfg.SMM.Timeout)
	if cfg.SMM.MinKeyLength <= 0 {
		cfg.SMM.MinKeyLength = 8
	}
	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.MaxOverflow <= 0 {
		cfg.Dispatch.MaxOverflow = 256
	}
	if cfg.Dispatch.PerOrderTimeout <= 0 {
		cfg.Dispatch.PerOrderTimeout = cfg.SMM.Timeout + 5*time.Second
	}
	if cfg.Stats.Interval <= 0 {
		cfg.Stats.Interval = 5 * time.Minute
	}
}

// Validate checks cross-field requirements. Defaults must already be applied.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	switch c.Storage.Backend {
	case StoragePostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres backend")
		}
	case StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.State.Backend {
	case StateMemory:
	case StateRedis:
		if !c.Redis.Enabled {
			return errors.New("state.backend=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown state.backend %q", c.State.Backend)
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return errors.New("redis.url is required when redis is enabled")
	}
	if k := len(c.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24, or 32 bytes; got %d", k)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

// clampTimeout keeps the panel timeout inside the 10-15s window.
func clampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return maxPanelTimeout
	case d < minPanelTimeout:
		return minPanelTimeout
	case d > maxPanelTimeout:
		return maxPanelTimeout
	}
	return d
}
