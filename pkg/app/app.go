// Package app assembles a ready-to-use manager from a loaded configuration.
// Both the HTTP server and the CLI start from here.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"price-hunter/pkg/cache"
	"price-hunter/pkg/config"
	"price-hunter/pkg/logger"
	"price-hunter/pkg/manager"
	"price-hunter/pkg/metrics"
	"price-hunter/pkg/scrapers"
	"price-hunter/pkg/scrapers/browser"
	"price-hunter/pkg/scrapers/htmlsite"
)

// Factory builds the adapter for one configured site.
type Factory func(site scrapers.Site, sc config.SiteConfig, cfg config.Config, log *zap.Logger) (scrapers.Scraper, error)

type App struct {
	Config  config.Config
	Log     *zap.Logger
	Manager *manager.Manager
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Reporter

	cache   *cache.Cache
	ownsLog bool
}

type Option func(*options)

type options struct {
	log     *zap.Logger
	factory Factory
}

// WithLogger uses log instead of building one from the config.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithFactory(f Factory) Option {
	return func(o *options) { o.factory = f }
}

func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{factory: DefaultFactory}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: o.log}
	if a.Log == nil {
		log, err := logger.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		a.Log = log
		a.ownsLog = true
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(cfg.Cache.Path, cfg.Cache.TTL.Std(), a.Log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("cache: %w", err)
		}
		a.cache = c
		if n, err := c.Purge(context.Background()); err != nil {
			a.Log.Warn("cache purge failed", zap.Error(err))
		} else if n > 0 {
			a.Log.Info("purged expired cache entries", zap.Int64("count", n))
		}
		a.Log.Info("cache initialized",
			zap.String("path", cfg.Cache.Path),
			zap.Duration("ttl", cfg.Cache.TTL.Std()),
		)
	}

	reporters := manager.Reporters{manager.NewLogReporter(a.Log)}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewReporter(cfg.Metrics)
		reporters = append(reporters, a.Metrics)
	}
	a.Manager = manager.New(cfg.Settings(), manager.WithReporter(reporters))

	for _, id := range cfg.SiteIDs() {
		sc := cfg.Sites[id]
		site := cfg.Site(id)

		adapter, err := o.factory(site, sc, cfg, a.Log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("site %s: %w", id, err)
		}
		err = a.Manager.Register(cache.Wrap(adapter, a.cache), manager.SourceOptions{
			Enabled:        sc.IsEnabled(),
			Domains:        site.Hosts(),
			RateLimitDelay: sc.RateLimitDelay.Std(),
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Log.Info("sources registered",
		zap.Strings("enabled", a.Manager.Sources()),
		zap.Int("configured", len(cfg.Sites)),
	)
	return a, nil
}

// DefaultFactory picks the colly or chromedp adapter by the site's renderer.
func DefaultFactory(site scrapers.Site, sc config.SiteConfig, cfg config.Config, log *zap.Logger) (scrapers.Scraper, error) {
	switch sc.Renderer {
	case "", config.RendererHTTP:
		return htmlsite.NewScraper(site, log), nil
	case config.RendererBrowser:
		s := browser.NewScraper(site, log)
		s.DebugDir = cfg.Scraper.DebugDir
		return s, nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", sc.Renderer)
	}
}

func (a *App) Close() error {
	var err error
	if a.cache != nil {
		err = a.cache.Close()
		a.cache = nil
	}
	if a.ownsLog && a.Log != nil {
		_ = a.Log.Sync()
	}
	return err
}
