// Package config
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// YAML config example:
// backend:
//   base_url: "http://localhost:8000"
//   timeout: 30s
// server:
//   addr: ":8080"
//   request_timeout: 10s
// db:
//   conn_str: "host=localhost user=postgres dbname=financeiq sslmode=disable"
//   max_open: 10
//   max_idle: 5
// redis:
//   addr: "localhost:6379"
// log:
//   level: "debug"
//   json: false
// telegram:
//   token: "..."
//   chat_id: "..."
// refresh:
//   schedule: "0 0 */6 * * *"
//   watchlist: ["AAPL", "MSFT", "NVDA"]
//   range: "1Y"
// overlay:
//   defaults: ["sma20", "sma50", "bb", "rsi", "macd"]
//   padded: true
//
// Every field can be overridden from the environment with the FINANCEIQ_ prefix,
// e.g. FINANCEIQ_BACKEND_BASE_URL, FINANCEIQ_DB_CONN_STR, FINANCEIQ_REFRESH_WATCHLIST=AAPL,MSFT.

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FINANCEIQ"

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Overlay  OverlayConfig  `yaml:"overlay"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

type ServerConfig struct {
	Addr               string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	RequestTimeout     time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	ReadTimeout        time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gte=0"`
	WriteTimeout       time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gte=0"`
	MaxRequestBodySize int           `yaml:"max_request_body_size" envconfig:"MAX_REQUEST_BODY_SIZE" validate:"gte=0"`
	MetricsSubsystem   string        `yaml:"metrics_subsystem" envconfig:"METRICS_SUBSYSTEM" validate:"required"`
}

// DBConfig selects the price-history store. An empty ConnStr keeps history in
// memory only.
type DBConfig struct {
	ConnStr string `yaml:"conn_str" envconfig:"CONN_STR"`
	MaxOpen int    `yaml:"max_open" envconfig:"MAX_OPEN" validate:"gte=0"`
	MaxIdle int    `yaml:"max_idle" envconfig:"MAX_IDLE" validate:"gte=0"`
}

// RedisConfig selects the response cache. An empty Addr uses an in-process
// cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR" validate:"omitempty,hostname_port"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	JSON  bool   `yaml:"json" envconfig:"JSON"`
}

// TelegramConfig enables failure alerts when both Token and ChatID are set.
type TelegramConfig struct {
	Token   string        `yaml:"token" envconfig:"TOKEN"`
	ChatID  string        `yaml:"chat_id" envconfig:"CHAT_ID" validate:"required_with=Token"`
	Retries int           `yaml:"retries" envconfig:"RETRIES" validate:"gte=1"`
	Delay   time.Duration `yaml:"delay" envconfig:"DELAY" validate:"gte=0"`
}

type RefreshConfig struct {
	Schedule  string   `yaml:"schedule" envconfig:"SCHEDULE" validate:"required"`
	Watchlist []string `yaml:"watchlist" envconfig:"WATCHLIST" validate:"dive,required"`
	Range     string   `yaml:"range" envconfig:"RANGE" validate:"oneof=1M 3M 6M 1Y 5Y"`
}

type OverlayConfig struct {
	Defaults []string `yaml:"defaults" envconfig:"DEFAULTS" validate:"dive,required"`
	Padded   bool     `yaml:"padded" envconfig:"PADDED"`
}

// Enabled reports whether alerts can be sent.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:               ":8080",
			RequestTimeout:     10 * time.Second,
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       30 * time.Second,
			MaxRequestBodySize: 1 << 20,
			MetricsSubsystem:   "financeiq",
		},
		DB: DBConfig{
			MaxOpen: 10,
			MaxIdle: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telegram: TelegramConfig{
			Retries: 3,
			Delay:   5 * time.Second,
		},
		Refresh: RefreshConfig{
			Schedule: "0 0 */6 * * *",
			Range:    "1Y",
		},
		Overlay: OverlayConfig{
			Defaults: []string{"sma20", "sma50", "bb", "rsi", "macd"},
			Padded:   true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and FINANCEIQ_* environment overrides, in that order, and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
