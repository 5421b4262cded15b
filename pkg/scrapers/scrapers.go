// Package scrapers defines the source adapter capability and the extraction
// helpers shared by the concrete adapters.
package scrapers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"price-hunter/pkg/models"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Scraper is implemented once per source. Errors should be marked with
// retry.Transient or retry.Permanent where the adapter knows better than the
// default classification.
type Scraper interface {
	ID() string
	Search(ctx context.Context, query string, maxResults int) ([]models.RawProduct, error)
	ScrapeOne(ctx context.Context, productURL string) (*models.RawProduct, error)
}

// Selectors are CSS selector lists; each entry may hold several
// comma-separated alternatives and the first one that matches wins.
type Selectors struct {
	Item         string `yaml:"item"`
	Title        string `yaml:"title"`
	Link         string `yaml:"link"`
	Price        string `yaml:"price"`
	Image        string `yaml:"image"`
	Availability string `yaml:"availability"`
}

// Site describes one source for the generic adapters.
type Site struct {
	ID        string
	SearchURL string // contains a {query} placeholder
	Domains   []string
	Currency  string
	UserAgent string
	Timeout   time.Duration
	Selectors Selectors
}

// SearchURL fills the {query} placeholder, escaping like a form value.
func SearchURL(template, query string) (string, error) {
	if !strings.Contains(template, "{query}") {
		return "", fmt.Errorf("search url %q has no {query} placeholder", template)
	}
	u := strings.ReplaceAll(template, "{query}", url.QueryEscape(query))
	if _, err := url.Parse(u); err != nil {
		return "", fmt.Errorf("invalid search url: %w", err)
	}
	return u, nil
}

// Hosts returns the domains of a site, falling back to the search URL host.
func (s Site) Hosts() []string {
	if len(s.Domains) > 0 {
		return s.Domains
	}
	u, err := url.Parse(s.SearchURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{strings.TrimPrefix(u.Hostname(), "www.")}
}

func (s Site) UA() string {
	if s.UserAgent != "" {
		return s.UserAgent
	}
	return DefaultUserAgent
}
