package config

import (
	"gopkg.in/yaml.v3"

	"price-hunter/pkg/scrapers"
)

// decode lays raw over base. Anything the file sets replaces the default;
// sites merge field by field so a file can toggle a default site without
// repeating its selectors.
func decode(raw []byte, base Config) (Config, error) {
	defaults := base.Sites
	base.Sites = nil
	if err := yaml.Unmarshal(raw, &base); err != nil {
		return Config{}, err
	}

	merged := make(map[string]SiteConfig, len(defaults)+len(base.Sites))
	for id, site := range defaults {
		merged[id] = site
	}
	for id, site := range base.Sites {
		merged[id] = mergeSite(merged[id], site)
	}
	base.Sites = merged
	return base, nil
}

func mergeSite(base, o SiteConfig) SiteConfig {
	if o.Enabled != nil {
		base.Enabled = o.Enabled
	}
	if o.SearchURL != "" {
		base.SearchURL = o.SearchURL
	}
	if len(o.Domains) > 0 {
		base.Domains = o.Domains
	}
	if o.Renderer != "" {
		base.Renderer = o.Renderer
	}
	if o.Currency != "" {
		base.Currency = o.Currency
	}
	if o.RateLimitDelay > 0 {
		base.RateLimitDelay = o.RateLimitDelay
	}
	base.Selectors = mergeSelectors(base.Selectors, o.Selectors)
	return base
}

func mergeSelectors(base, o scrapers.Selectors) scrapers.Selectors {
	if o.Item != "" {
		base.Item = o.Item
	}
	if o.Title != "" {
		base.Title = o.Title
	}
	if o.Link != "" {
		base.Link = o.Link
	}
	if o.Price != "" {
		base.Price = o.Price
	}
	if o.Image != "" {
		base.Image = o.Image
	}
	if o.Availability != "" {
		base.Availability = o.Availability
	}
	return base
}
