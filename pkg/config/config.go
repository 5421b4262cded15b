// Package config loads price-hunter settings from YAML with environment
// overrides on top.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"price-hunter/pkg/logger"
	"price-hunter/pkg/manager"
	"price-hunter/pkg/metrics"
	"price-hunter/pkg/scrapers"
)

const (
	configPathEnv = "PRICE_HUNTER_CONFIG"
	cacheDBEnv    = "CACHE_DB_PATH"
	cacheTTLEnv   = "CACHE_TTL_MINUTES"
	portEnv       = "PORT"
	logLevelEnv   = "LOG_LEVEL"
)

const (
	RendererHTTP    = "http"
	RendererBrowser = "browser"
)

type Config struct {
	Scraper ScraperConfig         `yaml:"scraper"`
	Sites   map[string]SiteConfig `yaml:"sites"`
	Log     logger.Config         `yaml:"log"`
	Cache   CacheConfig           `yaml:"cache"`
	Server  ServerConfig          `yaml:"server"`
	Metrics metrics.Config        `yaml:"metrics"`
}

// ScraperConfig holds the orchestration tuning shared by every source.
type ScraperConfig struct {
	Timeout            Duration `yaml:"timeout"`
	MaxRetries         int      `yaml:"max_retries"`
	RetryBaseDelay     Duration `yaml:"retry_base_delay"`
	RetryMultiplier    float64  `yaml:"retry_multiplier"`
	RetryMaxDelay      Duration `yaml:"retry_max_delay"`
	RateLimitDelay     Duration `yaml:"rate_limit_delay"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	SourceTimeout      Duration `yaml:"source_timeout"`
	PriceCeiling       float64  `yaml:"price_ceiling"`
	DefaultCurrency    string   `yaml:"default_currency"`
	KeepUnpriced       bool     `yaml:"keep_unpriced"`
	UserAgent          string   `yaml:"user_agent"`
	DebugDir           string   `yaml:"debug_dir"`
}

type SiteConfig struct {
	Enabled        *bool              `yaml:"enabled"`
	SearchURL      string             `yaml:"search_url"`
	Domains        []string           `yaml:"domains"`
	Renderer       string             `yaml:"renderer"`
	Currency       string             `yaml:"currency"`
	RateLimitDelay Duration           `yaml:"rate_limit_delay"`
	Selectors      scrapers.Selectors `yaml:"selectors"`
}

func (s SiteConfig) IsEnabled() bool {
	return s.Enabled != nil && *s.Enabled
}

type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	Path    string   `yaml:"path"`
	TTL     Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	// MaxScrapes caps concurrent /api/scrape requests.
	MaxScrapes int `yaml:"max_scrapes"`
}

// Duration accepts "1.5s" style strings or plain numbers of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if secs, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load builds the configuration: defaults, then the YAML file at path (or
// $PRICE_HUNTER_CONFIG when path is empty), then environment overrides. A
// missing file is only an error when the path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(configPathEnv)
		explicit = path != ""
	}
	if path == "" {
		path = "config.yaml"
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = decode(raw, cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(cacheDBEnv); v != "" {
		c.Cache.Path = v
		c.Cache.Enabled = true
	}
	if v := os.Getenv(cacheTTLEnv); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			return fmt.Errorf("config: %s must be a positive integer, got %q", cacheTTLEnv, v)
		}
		c.Cache.TTL = Duration(time.Duration(minutes) * time.Minute)
	}
	if v := os.Getenv(portEnv); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", portEnv, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate rejects settings the manager could not run with.
func (c Config) Validate() error {
	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative")
	}
	if c.Scraper.RetryMultiplier != 0 && c.Scraper.RetryMultiplier < 1 {
		return fmt.Errorf("config: retry_multiplier must be at least 1")
	}
	for _, id := range c.SiteIDs() {
		site := c.Sites[id]
		if !site.IsEnabled() {
			continue
		}
		if !strings.Contains(site.SearchURL, "{query}") {
			return fmt.Errorf("config: site %s: search_url needs a {query} placeholder", id)
		}
		switch site.Renderer {
		case "", RendererHTTP, RendererBrowser:
		default:
			return fmt.Errorf("config: site %s: unknown renderer %q", id, site.Renderer)
		}
	}
	return nil
}

// SiteIDs lists every configured site in sorted order.
func (c Config) SiteIDs() []string {
	ids := make([]string, 0, len(c.Sites))
	for id := range c.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Settings maps the scraper section onto the manager's settings.
func (c Config) Settings() manager.Settings {
	s := manager.DefaultSettings()
	sc := c.Scraper

	if sc.Timeout > 0 {
		s.Timeout = sc.Timeout.Std()
	}
	// max_retries counts the calls after the first; 0 disables retrying.
	s.Retry.MaxAttempts = sc.MaxRetries + 1
	if sc.RetryBaseDelay > 0 {
		s.Retry.BaseDelay = sc.RetryBaseDelay.Std()
	}
	if sc.RetryMultiplier >= 1 {
		s.Retry.Multiplier = sc.RetryMultiplier
	}
	if sc.RetryMaxDelay > 0 {
		s.Retry.MaxDelay = sc.RetryMaxDelay.Std()
	}
	s.RateLimitDelay = sc.RateLimitDelay.Std()
	if sc.ConcurrentRequests > 0 {
		s.ConcurrentRequests = sc.ConcurrentRequests
	}
	s.SourceTimeout = sc.SourceTimeout.Std()
	if sc.PriceCeiling > 0 {
		s.PriceCeiling = decimal.NewFromFloat(sc.PriceCeiling)
	}
	if sc.DefaultCurrency != "" {
		s.DefaultCurrency = strings.ToUpper(sc.DefaultCurrency)
	}
	s.KeepUnpriced = sc.KeepUnpriced
	return s
}

// Site builds the adapter description for id.
func (c Config) Site(id string) scrapers.Site {
	sc := c.Sites[id]
	currency := sc.Currency
	if currency == "" {
		currency = c.Scraper.DefaultCurrency
	}
	return scrapers.Site{
		ID:        id,
		SearchURL: sc.SearchURL,
		Domains:   sc.Domains,
		Currency:  strings.ToUpper(currency),
		UserAgent: c.Scraper.UserAgent,
		Timeout:   c.Scraper.Timeout.Std(),
		Selectors: sc.Selectors,
	}
}
