// Package htmlsite scrapes server-rendered shops with colly.
package htmlsite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"price-hunter/pkg/models"
	"price-hunter/pkg/retry"
	"price-hunter/pkg/scrapers"
)

type Scraper struct {
	Site scrapers.Site
	// AllowedDomains restricts the collector; nil allows any host.
	AllowedDomains []string

	log *zap.Logger
}

func NewScraper(site scrapers.Site, log *zap.Logger) *Scraper {
	if log == nil {
		log = zap.NewNop()
	}
	var allowed []string
	for _, d := range site.Hosts() {
		allowed = append(allowed, d, "www."+d)
	}
	return &Scraper{
		Site:           site,
		AllowedDomains: allowed,
		log:            log.With(zap.String("source", site.ID)),
	}
}

func (s *Scraper) ID() string { return s.Site.ID }

// collector is built per call; colly refuses revisits within a collector.
func (s *Scraper) collector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.Site.UA()),
		colly.StdlibContext(ctx),
	)
	c.AllowedDomains = s.AllowedDomains
	if s.Site.Timeout > 0 {
		c.SetRequestTimeout(s.Site.Timeout)
	}
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})
	return c
}

func (s *Scraper) Search(ctx context.Context, query string, maxResults int) ([]models.RawProduct, error) {
	target, err := scrapers.SearchURL(s.Site.SearchURL, query)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	var items []models.RawProduct
	c := s.collector(ctx)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		items = scrapers.Listing(e.DOM, s.Site, e.Request.URL, maxResults)
	})

	s.log.Debug("searching", zap.String("url", target))
	if err := s.visit(ctx, c, target); err != nil {
		return nil, err
	}
	s.log.Debug("search done", zap.Int("items", len(items)))
	return items, nil
}

func (s *Scraper) ScrapeOne(ctx context.Context, productURL string) (*models.RawProduct, error) {
	var product *models.RawProduct
	c := s.collector(ctx)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		product = scrapers.Detail(e.DOM, s.Site, e.Request.URL)
	})

	s.log.Debug("scraping product", zap.String("url", productURL))
	if err := s.visit(ctx, c, productURL); err != nil {
		var se *retry.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, retry.Permanent(fmt.Errorf("%w: %w", models.ErrProductNotFound, err))
		}
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%s: %w", productURL, models.ErrProductNotFound)
	}
	return product, nil
}

func (s *Scraper) visit(ctx context.Context, c *colly.Collector, target string) error {
	var respErr error
	c.OnError(func(r *colly.Response, err error) {
		if respErr != nil {
			return
		}
		if r != nil && r.StatusCode >= 400 {
			respErr = retry.FromStatus(r.StatusCode, r.Request.URL.String())
			return
		}
		respErr = err
	})

	start := time.Now()
	err := c.Visit(target)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if respErr != nil {
		err = respErr
	}
	if err == nil {
		return nil
	}

	s.log.Debug("request failed", zap.String("url", target), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	var se *retry.StatusError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, colly.ErrForbiddenDomain) || errors.Is(err, colly.ErrMissingURL) {
		return retry.Permanent(err)
	}
	return retry.Transient(err)
}
