package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price-hunter/pkg/models"
	"price-hunter/pkg/retry"
	"price-hunter/pkg/validate"
)

// BestDeals returns the topN cheapest priced products across all sources.
func (m *Manager) BestDeals(ctx context.Context, query string, topN int) ([]models.Product, *Report, error) {
	if topN < 1 {
		return nil, nil, fmt.Errorf("%w: top_n must be at least 1, got %d", models.ErrInvalidArgument, topN)
	}
	products, report, err := m.SearchAll(ctx, query, DefaultMaxPerSource)
	if err != nil {
		return nil, report, err
	}

	deals := make([]models.Product, 0, topN)
	for _, p := range products {
		if len(deals) == topN {
			break
		}
		// ranking puts every priced product first
		if !p.HasPrice() {
			break
		}
		deals = append(deals, p)
	}
	return deals, report, nil
}

// ComparePrices summarizes the priced products for query. Stats and Best stay
// nil when no source returned a usable price.
func (m *Manager) ComparePrices(ctx context.Context, query string) (*models.Comparison, *Report, error) {
	products, report, err := m.SearchAll(ctx, query, DefaultMaxPerSource)
	if err != nil {
		return nil, report, err
	}
	return Compare(strings.TrimSpace(query), products), report, nil
}

// Compare computes the statistics over already ranked products.
func Compare(query string, products []models.Product) *models.Comparison {
	c := &models.Comparison{
		Query:        query,
		TotalResults: len(products),
		Products:     products,
	}

	currencies := make(map[string]bool)
	var priced []models.Product
	for _, p := range products {
		if !p.HasPrice() {
			continue
		}
		priced = append(priced, p)
		if p.Currency != "" {
			currencies[p.Currency] = true
		}
	}
	for cur := range currencies {
		c.Currencies = append(c.Currencies, cur)
	}
	sort.Strings(c.Currencies)

	if len(priced) == 0 {
		return c
	}

	stats := &models.PriceStats{
		Lowest:  *priced[0].Price,
		Highest: *priced[0].Price,
		Count:   len(priced),
	}
	sum := decimal.Zero
	for _, p := range priced {
		v := *p.Price
		if v.LessThan(stats.Lowest) {
			stats.Lowest = v
		}
		if v.GreaterThan(stats.Highest) {
			stats.Highest = v
		}
		sum = sum.Add(v)
	}
	stats.Average = sum.Div(decimal.NewFromInt(int64(len(priced)))).Round(2)

	c.Stats = stats
	best := priced[0]
	c.Best = &best
	return c
}

// FetchOne extracts a single product page through sourceID's adapter.
func (m *Manager) FetchOne(ctx context.Context, productURL, sourceID string) (*models.Product, error) {
	productURL = strings.TrimSpace(productURL)
	if productURL == "" {
		return nil, fmt.Errorf("%w: url is required", models.ErrInvalidArgument)
	}
	targets, err := m.lookup([]string{sourceID})
	if err != nil {
		return nil, err
	}
	t := targets[0]

	unitCtx, cancel := context.WithTimeout(ctx, m.settings.sourceTimeout())
	defer cancel()

	var waited time.Duration
	raw, _, err := retry.Value(unitCtx, m.settings.Retry, func(ctx context.Context) (*models.RawProduct, error) {
		return callAdapter(ctx, m, t.id, &waited, func(ctx context.Context) (*models.RawProduct, error) {
			return t.adapter.ScrapeOne(ctx, productURL)
		})
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", productURL, t.id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", productURL, t.id, models.ErrNotFound)
	}
	if raw.URL == "" {
		raw.URL = productURL
	}

	p, _ := m.normalize(*raw, t.id, m.now())
	if p.Title == "" {
		return nil, fmt.Errorf("fetch %s from %s: %w", productURL, t.id, models.ErrNotFound)
	}
	if reason := m.validator.Check(p, t.opts.Domains); reason != validate.Valid {
		m.reporter.RecordRejected("", t.id, reason, p)
		return nil, fmt.Errorf("%w: %s", models.ErrRejected, reason)
	}
	return &p, nil
}

