package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Loader     LoaderConfig     `mapstructure:"loader"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Seed       SeedConfig       `mapstructure:"seed"`
}

// ---- Leaf structs ----

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type GeneratorConfig struct {
	Seed              uint64  `mapstructure:"seed"`
	Customers         int     `mapstructure:"customers"`
	SubscriptionRatio float64 `mapstructure:"subscription_ratio"`
	ChargeSuccessRate float64 `mapstructure:"charge_success_rate"`
	BaseDate          string  `mapstructure:"base_date"` // RFC 3339
	SignupWindowDays  int     `mapstructure:"signup_window_days"`
}

type APIConfig struct {
	DefaultLimit         int             `mapstructure:"default_limit"`
	MaxLimit             int             `mapstructure:"max_limit"`
	LegacyCursorFallback bool            `mapstructure:"legacy_cursor_fallback"`
	LegacyHasMore        bool            `mapstructure:"legacy_has_more"`
	APIKeys              []string        `mapstructure:"api_keys"`
	RateLimit            RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RPS       int    `mapstructure:"rps"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | mysql | sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"`
}

type LoaderConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	PageSize    int           `mapstructure:"page_size"`
	Schema      string        `mapstructure:"schema"`
	BatchSize   int           `mapstructure:"batch_size"`
	TimeoutMs   int           `mapstructure:"timeout_ms"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type ClickHouseConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	DSN          string        `mapstructure:"dsn"`
	Database     string        `mapstructure:"database"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	PingTimeout  time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type WorkerConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

type SeedConfig struct {
	Seed       uint64 `mapstructure:"seed"`
	Users      int    `mapstructure:"users"`
	SignupDays int    `mapstructure:"signup_days"`
	AssumeYes  bool   `mapstructure:"assume_yes"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies
// env overrides (BILLSB_*, with "." in keys replaced by "_"). A .env file in
// the working directory is loaded into the environment first.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	v.SetEnvPrefix("BILLSB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.ConnectAttempts < 1 {
		return fmt.Errorf("database.connect_attempts must be positive, got %d", c.Database.ConnectAttempts)
	}
	if c.Database.RetryDelay < 0 {
		return fmt.Errorf("database.retry_delay must not be negative")
	}
	if _, err := c.Generator.ParsedBaseDate(); err != nil {
		return err
	}
	return nil
}

func (g GeneratorConfig) ParsedBaseDate() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, g.BaseDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("generator.base_date: %w", err)
	}
	return t, nil
}
