// Package manager runs searches across every registered source and turns
// their raw listings into one ranked, validated result set.
package manager

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"price-hunter/pkg/models"
	"price-hunter/pkg/price"
	"price-hunter/pkg/ratelimit"
	"price-hunter/pkg/retry"
	"price-hunter/pkg/scrapers"
	"price-hunter/pkg/validate"
)

// DefaultMaxPerSource is used by the aggregate queries.
const DefaultMaxPerSource = 10

// Settings is fixed for the lifetime of a Manager.
type Settings struct {
	// Timeout bounds a single adapter attempt.
	Timeout            time.Duration
	Retry              retry.Policy
	RateLimitDelay     time.Duration
	ConcurrentRequests int
	// SourceTimeout bounds one source within a run, retries included. Zero
	// derives it from Timeout, Retry and RateLimitDelay.
	SourceTimeout   time.Duration
	PriceCeiling    decimal.Decimal
	DefaultCurrency string
	KeepUnpriced    bool
}

func DefaultSettings() Settings {
	return Settings{
		Timeout:            10 * time.Second,
		Retry:              retry.DefaultPolicy(),
		RateLimitDelay:     time.Second,
		ConcurrentRequests: 5,
		PriceCeiling:       validate.DefaultPriceCeiling,
		DefaultCurrency:    price.DefaultCurrency,
		KeepUnpriced:       true,
	}
}

func (s Settings) sourceTimeout() time.Duration {
	if s.SourceTimeout > 0 {
		return s.SourceTimeout
	}
	attempts := s.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = retry.DefaultPolicy().MaxAttempts
	}
	return time.Duration(attempts)*(s.Timeout+s.RateLimitDelay) + s.Retry.Budget()
}

// SourceOptions are the per-source registration details.
type SourceOptions struct {
	Enabled bool
	// Domains the source's product URLs must belong to. Empty skips the check.
	Domains []string
	// RateLimitDelay overrides Settings.RateLimitDelay when positive.
	RateLimitDelay time.Duration
}

type source struct {
	adapter scrapers.Scraper
	opts    SourceOptions
}

type Option func(*Manager)

func WithReporter(r Reporter) Option {
	return func(m *Manager) { m.reporter = r }
}

// WithClock replaces the wall clock used to stamp fetched products.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	settings  Settings
	limiter   *ratelimit.Limiter
	validator *validate.Validator
	reporter  Reporter
	now       func() time.Time

	mu      sync.RWMutex
	sources map[string]*source
}

func New(settings Settings, opts ...Option) *Manager {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultSettings().Timeout
	}
	if settings.DefaultCurrency == "" {
		settings.DefaultCurrency = price.DefaultCurrency
	}
	m := &Manager{
		settings:  settings,
		limiter:   ratelimit.New(settings.RateLimitDelay),
		validator: validate.New(settings.PriceCeiling),
		reporter:  NopReporter{},
		now:       time.Now,
		sources:   make(map[string]*source),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Settings() Settings { return m.settings }

// Register adds an adapter under its own ID.
func (m *Manager) Register(adapter scrapers.Scraper, opts SourceOptions) error {
	id := strings.TrimSpace(adapter.ID())
	if id == "" {
		return fmt.Errorf("%w: adapter has no id", models.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("%w: %q registered twice", models.ErrInvalidSource, id)
	}
	m.sources[id] = &source{adapter: adapter, opts: opts}
	if opts.RateLimitDelay > 0 {
		m.limiter.SetInterval(id, opts.RateLimitDelay)
	}
	return nil
}

func (m *Manager) SetEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrInvalidSource, id)
	}
	src.opts.Enabled = enabled
	return nil
}

// Sources returns the enabled source ids in sorted order.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, src := range m.sources {
		if src.opts.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type target struct {
	id string
	source
}

func (m *Manager) enabled() []target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []target
	for id, src := range m.sources {
		if src.opts.Enabled {
			out = append(out, target{id: id, source: *src})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// lookup resolves ids before anything is dispatched.
func (m *Manager) lookup(ids []string) ([]target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var out []target
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		src, ok := m.sources[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown source %q", models.ErrInvalidSource, id)
		}
		if !src.opts.Enabled {
			return nil, fmt.Errorf("%w: source %q is disabled", models.ErrInvalidSource, id)
		}
		out = append(out, target{id: id, source: *src})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no sources given", models.ErrInvalidSource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}
