package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"signal_relay/internal/domain"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr          string `yaml:"addr"`
		ReadTimeoutMS int    `yaml:"read_timeout_ms"`
		MaxBodyBytes  int64  `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Exchange struct {
		BaseURL             string `yaml:"base_url"`
		OrderPath           string `yaml:"order_path"`
		APIKey              string `yaml:"api_key"`
		APISecret           string `yaml:"api_secret"`
		TimeoutMS           int    `yaml:"timeout_ms"`
		TimeSyncIntervalSec int    `yaml:"time_sync_interval_sec"` // 0 disables
	} `yaml:"exchange"`

	Sizing struct {
		DefaultUnit     string           `yaml:"default_unit"` // base | quote
		Precision       int32            `yaml:"precision"`
		Rounding        string           `yaml:"rounding"` // truncate | half_away
		SymbolPrecision map[string]int32 `yaml:"symbol_precision"`
	} `yaml:"sizing"`

	Webhook struct {
		Passphrase string `yaml:"passphrase"`
	} `yaml:"webhook"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Rounding modes for notional-to-quantity conversion
const (
	RoundingTruncate = "truncate"
	RoundingHalfAway = "half_away"
)

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "signal-relay"
	cfg.App.Env = "production"
	cfg.Server.Addr = "0.0.0.0:10000"
	cfg.Server.ReadTimeoutMS = 10_000
	cfg.Server.MaxBodyBytes = 64 << 10
	cfg.Exchange.BaseURL = "https://fapi.binance.com"
	cfg.Exchange.OrderPath = "/fapi/v1/order"
	cfg.Exchange.TimeoutMS = 5_000
	cfg.Sizing.DefaultUnit = string(domain.UnitQuote)
	cfg.Sizing.Precision = 3
	cfg.Sizing.Rounding = RoundingTruncate
	cfg.Logging.Level = "info"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// A missing file is not an error: defaults plus environment are enough to run.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to read .env file", slog.Any("error", err))
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("Config file not found, using defaults", slog.String("path", path))
	default:
		return nil, err
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// Credentials: fail closed
	if err := c.Credentials().Validate(); err != nil {
		return &domain.ConfigError{Field: "exchange.api_key/api_secret", Err: err}
	}

	if !strings.HasPrefix(c.Exchange.BaseURL, "http://") && !strings.HasPrefix(c.Exchange.BaseURL, "https://") {
		return &domain.ConfigError{Field: "exchange.base_url", Err: fmt.Errorf("invalid URL %q", c.Exchange.BaseURL)}
	}
	if c.Exchange.TimeoutMS <= 0 {
		return &domain.ConfigError{Field: "exchange.timeout_ms", Err: errors.New("must be positive")}
	}
	if c.Exchange.TimeSyncIntervalSec < 0 {
		return &domain.ConfigError{Field: "exchange.time_sync_interval_sec", Err: errors.New("must not be negative")}
	}

	// Sizing
	switch domain.AmountUnit(c.Sizing.DefaultUnit) {
	case domain.UnitBase, domain.UnitQuote:
	default:
		return &domain.ConfigError{Field: "sizing.default_unit", Err: fmt.Errorf("unknown unit %q", c.Sizing.DefaultUnit)}
	}
	switch c.Sizing.Rounding {
	case RoundingTruncate, RoundingHalfAway:
	default:
		return &domain.ConfigError{Field: "sizing.rounding", Err: fmt.Errorf("unknown mode %q", c.Sizing.Rounding)}
	}
	if c.Sizing.Precision < 0 || c.Sizing.Precision > 8 {
		return &domain.ConfigError{Field: "sizing.precision", Err: errors.New("must be between 0 and 8")}
	}
	for symbol, p := range c.Sizing.SymbolPrecision {
		if p < 0 || p > 8 {
			return &domain.ConfigError{Field: "sizing.symbol_precision." + symbol, Err: errors.New("must be between 0 and 8")}
		}
	}

	if c.Server.Addr == "" {
		return &domain.ConfigError{Field: "server.addr", Err: errors.New("is required")}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return &domain.ConfigError{Field: "server.max_body_bytes", Err: errors.New("must be positive")}
	}

	return nil
}

// Credentials returns the exchange key pair
func (c *Config) Credentials() domain.Credentials {
	return domain.Credentials{APIKey: c.Exchange.APIKey, APISecret: c.Exchange.APISecret}
}

// ExchangeTimeout bounds every outbound exchange call
func (c *Config) ExchangeTimeout() time.Duration {
	return time.Duration(c.Exchange.TimeoutMS) * time.Millisecond
}

// TimeSyncInterval returns zero when time sync is disabled
func (c *Config) TimeSyncInterval() time.Duration {
	return time.Duration(c.Exchange.TimeSyncIntervalSec) * time.Second
}

// ReadTimeout for the inbound HTTP server
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutMS) * time.Millisecond
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("API_KEY"); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := os.Getenv("API_SECRET"); secret != "" {
		cfg.Exchange.APISecret = secret
	}
	if base := os.Getenv("EXCHANGE_BASE_URL"); base != "" {
		cfg.Exchange.BaseURL = base
	}
	if pass := os.Getenv("WEBHOOK_PASSPHRASE"); pass != "" {
		cfg.Webhook.Passphrase = pass
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = "0.0.0.0:" + port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
