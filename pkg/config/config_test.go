package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{configPathEnv, cacheDBEnv, cacheTTLEnv, portEnv, logLevelEnv} {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Scraper, cfg.Scraper)
	assert.True(t, cfg.Sites["ebay"].IsEnabled())
	assert.False(t, cfg.Sites["walmart"].IsEnabled())
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
scraper:
  timeout: 5
  retry_base_delay: 500ms
  rate_limit_delay: 1.5
  concurrent_requests: 2
  keep_unpriced: false
sites:
  walmart:
    enabled: true
  ebay:
    selectors:
      price: ".my-price"
metrics:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Scraper.Timeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.RetryBaseDelay.Std())
	assert.Equal(t, 1500*time.Millisecond, cfg.Scraper.RateLimitDelay.Std())
	assert.Equal(t, 2, cfg.Scraper.ConcurrentRequests)
	assert.False(t, cfg.Scraper.KeepUnpriced)
	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Scraper.MaxRetries)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	walmart := cfg.Sites["walmart"]
	assert.True(t, walmart.IsEnabled())
	assert.Equal(t, Default().Sites["walmart"].Selectors, walmart.Selectors)

	ebay := cfg.Sites["ebay"]
	assert.True(t, ebay.IsEnabled())
	assert.Equal(t, ".my-price", ebay.Selectors.Price)
	assert.Equal(t, Default().Sites["ebay"].Selectors.Title, ebay.Selectors.Title)
}

func TestLoad_NewSite(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
sites:
  shop:
    enabled: true
    search_url: "https://shop.example/find?q={query}"
    currency: eur
    selectors:
      item: ".card"
      title: ".card h2"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"aliexpress", "ebay", "shop", "target", "walmart"}, cfg.SiteIDs())

	site := cfg.Site("shop")
	assert.Equal(t, "shop", site.ID)
	assert.Equal(t, "EUR", site.Currency)
	assert.Equal(t, ".card", site.Selectors.Item)
	assert.Equal(t, 10*time.Second, site.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "log:\n  level: info\n")
	t.Setenv(cacheDBEnv, "/tmp/prices.db")
	t.Setenv(cacheTTLEnv, "15")
	t.Setenv(portEnv, "9090")
	t.Setenv(logLevelEnv, "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/prices.db", cfg.Cache.Path)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: 7000\n")
	t.Setenv(configPathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{
			name: "bad yaml",
			body: "scraper: [",
		},
		{
			name: "bad duration",
			body: "scraper:\n  timeout: soon\n",
		},
		{
			name: "unknown renderer",
			body: "sites:\n  ebay:\n    renderer: curl\n",
		},
		{
			name: "search url without placeholder",
			body: "sites:\n  ebay:\n    search_url: https://www.ebay.com/sch\n",
		},
		{
			name: "negative retries",
			body: "scraper:\n  max_retries: -1\n",
		},
		{
			name: "bad ttl",
			body: "",
			env:  map[string]string{cacheTTLEnv: "zero"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoad_DisabledSiteSkipsValidation(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "sites:\n  walmart:\n    renderer: curl\n")
	_, err := Load(path)
	require.NoError(t, err)
}

func TestSettings(t *testing.T) {
	cfg := Default()
	cfg.Scraper.MaxRetries = 4
	cfg.Scraper.DefaultCurrency = "eur"
	cfg.Scraper.KeepUnpriced = false
	cfg.Scraper.PriceCeiling = 500

	s := cfg.Settings()
	assert.Equal(t, 10*time.Second, s.Timeout)
	assert.Equal(t, 5, s.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, s.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, s.Retry.MaxDelay)
	assert.Equal(t, time.Second, s.RateLimitDelay)
	assert.Equal(t, 5, s.ConcurrentRequests)
	assert.Equal(t, "EUR", s.DefaultCurrency)
	assert.False(t, s.KeepUnpriced)
	assert.Equal(t, "500", s.PriceCeiling.String())
}

func TestSettings_MaxRetries(t *testing.T) {
	assert.Equal(t, 3, Default().Settings().Retry.MaxAttempts)

	clearEnv(t)
	cfg, err := Load(writeConfig(t, "scraper:\n  max_retries: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Scraper.MaxRetries)
	assert.Equal(t, 1, cfg.Settings().Retry.MaxAttempts)

	cfg, err = Load(writeConfig(t, "scraper:\n  max_retries: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Settings().Retry.MaxAttempts)
}

func TestSite_FallsBackToDefaultCurrency(t *testing.T) {
	cfg := Default()
	cfg.Scraper.DefaultCurrency = "gbp"
	site := cfg.Sites["ebay"]
	site.Currency = ""
	cfg.Sites["ebay"] = site

	assert.Equal(t, "GBP", cfg.Site("ebay").Currency)
	assert.Equal(t, []string{"ebay.com"}, cfg.Site("ebay").Domains)
}
