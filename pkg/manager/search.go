package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"price-hunter/pkg/models"
	"price-hunter/pkg/price"
	"price-hunter/pkg/retry"
	"price-hunter/pkg/validate"
)

var (
	errAttemptTimeout = errors.New("attempt timed out")
	errSourceDeadline = errors.New("rate limit wait exceeds source deadline")
)

// SearchAll queries every enabled source concurrently and returns the valid
// products ordered by price, unpriced ones last. Failing sources only show up
// in the report. The error is non-nil for misuse, when no source is enabled,
// or when ctx ended before every source finished.
func (m *Manager) SearchAll(ctx context.Context, query string, maxPerSource int) ([]models.Product, *Report, error) {
	query, err := checkQuery(query, maxPerSource)
	if err != nil {
		return nil, nil, err
	}
	targets := m.enabled()
	if len(targets) == 0 {
		return nil, nil, fmt.Errorf("%w: no source is enabled", models.ErrInvalidSource)
	}

	results, report := m.run(ctx, query, maxPerSource, targets)
	products := rank(results)
	m.finish(report)
	return products, report, ctx.Err()
}

// SearchSpecific is SearchAll restricted to sourceIDs, keyed by source. Every
// requested id is present in the result, failed ones with an empty list.
func (m *Manager) SearchSpecific(ctx context.Context, query string, sourceIDs []string, maxPerSource int) (map[string][]models.Product, *Report, error) {
	query, err := checkQuery(query, maxPerSource)
	if err != nil {
		return nil, nil, err
	}
	targets, err := m.lookup(sourceIDs)
	if err != nil {
		return nil, nil, err
	}

	results, report := m.run(ctx, query, maxPerSource, targets)
	out := make(map[string][]models.Product, len(targets))
	for _, t := range targets {
		out[t.id] = rank(map[string][]models.Product{t.id: results[t.id]})
	}
	m.finish(report)
	return out, report, ctx.Err()
}

func checkQuery(query string, maxPerSource int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", models.ErrEmptyQuery
	}
	if maxPerSource < 1 {
		return "", fmt.Errorf("%w: max results per source must be at least 1, got %d", models.ErrInvalidArgument, maxPerSource)
	}
	return query, nil
}

func (m *Manager) finish(r *Report) {
	r.State = Aggregated
	m.reporter.RunFinished(r)
}

func (m *Manager) run(ctx context.Context, query string, maxPerSource int, targets []target) (map[string][]models.Product, *Report) {
	report := &Report{
		RunID:   uuid.NewString(),
		Query:   query,
		State:   Dispatched,
		Started: m.now(),
		Sources: make(map[string]*SourceReport, len(targets)),
	}
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.id)
		report.Sources[t.id] = &SourceReport{Source: t.id, State: Running}
	}
	m.reporter.RunStarted(report, ids)

	limit := m.settings.ConcurrentRequests
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}

	clock := &runClock{now: m.now}
	results := make(map[string][]models.Product, len(targets))
	var mu sync.Mutex

	// Plain group: one source failing must not cancel the others.
	var g errgroup.Group
	g.SetLimit(limit)
	report.State = PerSourceRunning
	for _, t := range targets {
		g.Go(func() error {
			products, sr := m.runSource(ctx, t, query, maxPerSource, clock, report.RunID)

			mu.Lock()
			results[t.id] = products
			*report.Sources[t.id] = sr
			mu.Unlock()

			m.reporter.SourceFinished(report.RunID, sr)
			return nil
		})
	}
	_ = g.Wait()

	report.State = Collected
	report.Finished = m.now()
	return results, report
}

func (m *Manager) runSource(ctx context.Context, t target, query string, maxPerSource int, clock *runClock, runID string) ([]models.Product, SourceReport) {
	start := time.Now()
	sr := SourceReport{Source: t.id, Rejected: make(map[validate.Reason]int)}

	unitCtx, cancel := context.WithTimeout(ctx, m.settings.sourceTimeout())
	defer cancel()

	raws, attempts, err := retry.Value(unitCtx, m.settings.Retry, func(ctx context.Context) ([]models.RawProduct, error) {
		return callAdapter(ctx, m, t.id, &sr.RateLimitWait, func(ctx context.Context) ([]models.RawProduct, error) {
			return t.adapter.Search(ctx, query, maxPerSource)
		})
	}, nil)
	sr.Attempts = attempts
	if err != nil {
		sr.State = failureState(ctx, unitCtx, err)
		sr.Err = err
		sr.Duration = time.Since(start)
		return nil, sr
	}

	if len(raws) > maxPerSource {
		raws = raws[:maxPerSource]
	}
	sr.Fetched = len(raws)

	var out []models.Product
	for _, raw := range raws {
		p, parsed := m.normalize(raw, t.id, clock.Now())
		switch parsed {
		case priceMissing:
			sr.Unpriced++
		case priceUnparseable:
			sr.PriceUnparseable++
		}

		if reason := m.validator.Check(p, t.opts.Domains); reason != validate.Valid {
			sr.Rejected[reason]++
			m.reporter.RecordRejected(runID, t.id, reason, p)
			continue
		}
		if !p.HasPrice() && !m.settings.KeepUnpriced {
			continue
		}
		out = append(out, p)
	}

	sr.Accepted = len(out)
	sr.State = Succeeded
	sr.Duration = time.Since(start)
	return out, sr
}

// callAdapter makes one rate-limited attempt and adds the time spent waiting
// for the limiter to waited. The adapter runs in its own goroutine so one
// that ignores ctx still cannot hold the run past its deadline; its late
// result lands in the buffered channel and is dropped.
func callAdapter[T any](ctx context.Context, m *Manager, source string, waited *time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	wait, err := m.limiter.Acquire(ctx, source)
	*waited += wait
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, retry.Permanent(fmt.Errorf("%w: %w", errSourceDeadline, err))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, m.settings.Timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
			return zero, retry.Transient(fmt.Errorf("%w after %s", errAttemptTimeout, m.settings.Timeout))
		}
		return r.v, r.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, retry.Transient(fmt.Errorf("%w after %s", errAttemptTimeout, m.settings.Timeout))
	}
}

func failureState(parent, unit context.Context, err error) State {
	switch {
	case parent.Err() != nil:
		return Canceled
	case unit.Err() != nil, errors.Is(err, errSourceDeadline):
		return FailedTimeout
	case retry.Classify(err) == retry.ClassPermanent:
		return FailedPermanent
	}
	return FailedTransient
}

type priceOutcome int

const (
	priceParsed priceOutcome = iota
	priceMissing
	priceUnparseable
)

// normalize never fails: a price that cannot be read leaves Price nil.
func (m *Manager) normalize(raw models.RawProduct, sourceID string, at time.Time) (models.Product, priceOutcome) {
	p := models.Product{
		Title:        sanitize(raw.Title),
		URL:          strings.TrimSpace(raw.URL),
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		Availability: sanitize(raw.Availability),
		Source:       sourceID,
		FetchedAt:    at,
	}

	hint := strings.TrimSpace(raw.Currency)
	if hint == "" {
		hint = m.settings.DefaultCurrency
	}

	text := strings.TrimSpace(raw.Price)
	if text == "" {
		p.Currency = strings.ToUpper(hint)
		return p, priceMissing
	}

	amount, err := price.Parse(text, hint)
	if err != nil {
		p.Currency = price.DetectCurrency(text, strings.ToUpper(hint))
		return p, priceUnparseable
	}
	p.Price = &amount.Value
	p.Currency = amount.Currency
	return p, priceParsed
}

var invisible = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "", "\u00ad", "")

func sanitize(s string) string {
	return strings.Join(strings.Fields(invisible.Replace(s)), " ")
}

type ranked struct {
	p   models.Product
	idx int
}

// rank orders by price ascending with unpriced products last; ties break
// on source id and then on the position the source returned them in, so the
// order never depends on which source finished first. Prices in different
// currencies are compared by amount.
func rank(results map[string][]models.Product) []models.Product {
	var all []ranked
	for _, products := range results {
		for i, p := range products {
			all = append(all, ranked{p: p, idx: i})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.p.HasPrice() != b.p.HasPrice() {
			return a.p.HasPrice()
		}
		if a.p.HasPrice() {
			if c := a.p.Price.Cmp(*b.p.Price); c != 0 {
				return c < 0
			}
		}
		if a.p.Source != b.p.Source {
			return a.p.Source < b.p.Source
		}
		return a.idx < b.idx
	})

	out := make([]models.Product, len(all))
	for i, r := range all {
		out[i] = r.p
	}
	return out
}

// runClock hands out non-decreasing timestamps within one run.
type runClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *runClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
