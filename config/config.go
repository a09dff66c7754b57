// Package config loads widget and sandbox settings from defaults, an optional config
// file and BOILERPARTS_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kbsmaine/boilerparts/checkout"
)

// EnvPrefix prefixes every environment override, e.g. BOILERPARTS_STORAGE_DIR.
const EnvPrefix = "BOILERPARTS"

type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Provider ProviderConfig `mapstructure:"provider"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Log      LogConfig      `mapstructure:"log"`
}

type StorageConfig struct {
	Key string `mapstructure:"key"`
	// Dir selects file storage; empty keeps the cart in memory.
	Dir string `mapstructure:"dir"`
}

type CheckoutConfig struct {
	ReadyAttempts  int           `mapstructure:"ready_attempts"`
	ReadyInterval  time.Duration `mapstructure:"ready_interval"`
	ReadyBackoff   float64       `mapstructure:"ready_backoff"`
	Currency       string        `mapstructure:"currency"`
	Description    string        `mapstructure:"description"`
	FundingSources []string      `mapstructure:"funding_sources"`
}

type ProviderConfig struct {
	// URL of an orders API; empty uses the in-process backend.
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Attempts per orders API call, including the first.
	Attempts       int           `mapstructure:"attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// Payer is the given name the in-process backend reports.
	Payer string `mapstructure:"payer"`
}

type SandboxConfig struct {
	Addr      string        `mapstructure:"addr"`
	ReplayTTL time.Duration `mapstructure:"replay_ttl"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.key", "cart")
	v.SetDefault("storage.dir", "")

	v.SetDefault("checkout.ready_attempts", checkout.DefaultReadyAttempts)
	v.SetDefault("checkout.ready_interval", checkout.DefaultReadyInterval)
	v.SetDefault("checkout.ready_backoff", 1.0)
	v.SetDefault("checkout.currency", checkout.DefaultCurrency)
	v.SetDefault("checkout.description", checkout.DefaultOrderNotes)
	v.SetDefault("checkout.funding_sources", []string{
		string(checkout.FundingPayPal),
		string(checkout.FundingPayLater),
		string(checkout.FundingCard),
	})

	v.SetDefault("provider.url", "")
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.attempts", 3)
	v.SetDefault("provider.retry_base_delay", 200*time.Millisecond)
	v.SetDefault("provider.payer", "")

	v.SetDefault("sandbox.addr", ":8088")
	v.SetDefault("sandbox.replay_ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the configuration. path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.Key == "" {
		return fmt.Errorf("storage.key must not be empty")
	}
	if c.Checkout.ReadyAttempts < 1 {
		return fmt.Errorf("checkout.ready_attempts must be at least 1, got %d", c.Checkout.ReadyAttempts)
	}
	if c.Checkout.ReadyInterval <= 0 {
		return fmt.Errorf("checkout.ready_interval must be positive, got %s", c.Checkout.ReadyInterval)
	}
	if c.Provider.Attempts < 1 {
		return fmt.Errorf("provider.attempts must be at least 1, got %d", c.Provider.Attempts)
	}
	if len(c.Checkout.FundingSources) == 0 {
		return fmt.Errorf("checkout.funding_sources must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// RetryPolicy is the provider readiness budget.
func (c CheckoutConfig) RetryPolicy() checkout.RetryPolicy {
	return checkout.RetryPolicy{
		Attempts: c.ReadyAttempts,
		Interval: c.ReadyInterval,
		Backoff:  c.ReadyBackoff,
	}
}

// Sources returns the configured funding sources in order.
func (c CheckoutConfig) Sources() []checkout.FundingSource {
	out := make([]checkout.FundingSource, 0, len(c.FundingSources))
	for _, s := range c.FundingSources {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			out = append(out, checkout.FundingSource(s))
		}
	}
	return out
}

// Logger builds the zap logger described by the log settings.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
