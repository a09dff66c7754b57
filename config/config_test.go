package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsmaine/boilerparts/checkout"
)

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "cart", cfg.Storage.Key)
	assert.Empty(t, cfg.Storage.Dir)
	assert.Equal(t, checkout.DefaultRetryPolicy, cfg.Checkout.RetryPolicy())
	assert.Equal(t, "USD", cfg.Checkout.Currency)
	assert.Equal(t, checkout.DefaultFundingSources, cfg.Checkout.Sources())
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 3, cfg.Provider.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Provider.RetryBaseDelay)
	assert.Equal(t, ":8088", cfg.Sandbox.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boilerparts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  key: basket
  dir: /tmp/carts
checkout:
  ready_attempts: 5
  ready_interval: 50ms
  ready_backoff: 2
  funding_sources: [card, PayPal]
provider:
  url: http://localhost:8088
log:
  level: debug
  development: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "basket", cfg.Storage.Key)
	assert.Equal(t, "/tmp/carts", cfg.Storage.Dir)
	assert.Equal(t, checkout.RetryPolicy{Attempts: 5, Interval: 50 * time.Millisecond, Backoff: 2}, cfg.Checkout.RetryPolicy())
	assert.Equal(t, []checkout.FundingSource{checkout.FundingCard, checkout.FundingPayPal}, cfg.Checkout.Sources())
	assert.Equal(t, "http://localhost:8088", cfg.Provider.URL)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_environmentOverrides(t *testing.T) {
	t.Setenv("BOILERPARTS_STORAGE_KEY", "envcart")
	t.Setenv("BOILERPARTS_CHECKOUT_READY_INTERVAL", "250ms")
	t.Setenv("BOILERPARTS_SANDBOX_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "envcart", cfg.Storage.Key)
	assert.Equal(t, 250*time.Millisecond, cfg.Checkout.ReadyInterval)
	assert.Equal(t, ":9999", cfg.Sandbox.Addr)
}

func TestLoad_invalid(t *testing.T) {
	tests := map[string]string{
		"zero attempts": "checkout:\n  ready_attempts: 0\n",
		"bad level":     "log:\n  level: loud\n",
		"empty key":     "storage:\n  key: \"\"\n",
		"no calls":      "provider:\n  attempts: 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLogConfig_Logger(t *testing.T) {
	logger, err := LogConfig{Level: "warn"}.Logger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(1))

	_, err = LogConfig{Level: "nope"}.Logger()
	assert.Error(t, err)
}
