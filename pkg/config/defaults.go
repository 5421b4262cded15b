package config

import (
	"time"

	"price-hunter/pkg/logger"
	"price-hunter/pkg/metrics"
	"price-hunter/pkg/scrapers"
)

func enabled(b bool) *bool { return &b }

// Default returns a runnable configuration; only ebay is enabled.
func Default() Config {
	return Config{
		Scraper: ScraperConfig{
			Timeout:            Duration(10 * time.Second),
			MaxRetries:         2,
			RetryBaseDelay:     Duration(2 * time.Second),
			RetryMultiplier:    2,
			RetryMaxDelay:      Duration(10 * time.Second),
			RateLimitDelay:     Duration(time.Second),
			ConcurrentRequests: 5,
			PriceCeiling:       10_000_000,
			DefaultCurrency:    "USD",
			KeepUnpriced:       true,
			UserAgent:          scrapers.DefaultUserAgent,
		},
		Sites: defaultSites(),
		Log:   logger.DefaultConfig(),
		Cache: CacheConfig{
			Enabled: false,
			Path:    "cache.db",
			TTL:     Duration(60 * time.Minute),
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(5 * time.Minute),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxScrapes:      3,
		},
		Metrics: metrics.DefaultConfig(),
	}
}

func defaultSites() map[string]SiteConfig {
	return map[string]SiteConfig{
		"ebay": {
			Enabled:   enabled(true),
			SearchURL: "https://www.ebay.com/sch/i.html?_nkw={query}",
			Domains:   []string{"ebay.com"},
			Renderer:  RendererHTTP,
			Currency:  "USD",
			Selectors: scrapers.Selectors{
				Item:         ".s-item, .lvresult",
				Title:        ".s-item__title, .lvtitle a, h1.x-item-title__mainTitle, #itemTitle",
				Link:         ".s-item__link, .lvtitle a",
				Price:        ".s-item__price, .lvprice .prc, .x-price-primary span, #prcIsum",
				Image:        ".s-item__image-img, img.img, .ux-image-carousel-item img",
				Availability: ".d-quantity__availability, #qtySubTxt",
			},
		},
		"walmart": {
			Enabled:   enabled(false),
			SearchURL: "https://www.walmart.com/search?q={query}",
			Domains:   []string{"walmart.com"},
			Renderer:  RendererHTTP,
			Currency:  "USD",
			Selectors: scrapers.Selectors{
				Item:         `[data-item-id], .search-result-gridview-item, [data-testid="list-view"]`,
				Title:        `a[link-identifier], .product-title-link, [data-automation-id="product-title"], h1[itemprop="name"]`,
				Link:         `a[link-identifier], .product-title-link`,
				Price:        `[data-automation-id="product-price"], .price-main .price-characteristic, [itemprop="price"]`,
				Image:        `img[data-testid="productTileImage"], .product-image img`,
				Availability: `[data-testid="fulfillment-badge"]`,
			},
		},
		"target": {
			Enabled:   enabled(false),
			SearchURL: "https://www.target.com/s?searchTerm={query}",
			Domains:   []string{"target.com"},
			Renderer:  RendererBrowser,
			Currency:  "USD",
			Selectors: scrapers.Selectors{
				Item:  `[data-test="@web/site-top-of-funnel/ProductCardWrapper"]`,
				Title: `a[data-test="product-title"], .h-text-bs, h1[data-test="product-title"]`,
				Link:  `a[data-test="product-title"]`,
				Price: `[data-test="current-price"], .h-text-sm, [data-test="product-price"]`,
				Image: `img[data-test="product-image"]`,
			},
		},
		"aliexpress": {
			Enabled:   enabled(false),
			SearchURL: "https://www.aliexpress.com/wholesale?SearchText={query}",
			Domains:   []string{"aliexpress.com", "aliexpress.us"},
			Renderer:  RendererBrowser,
			Currency:  "USD",
			Selectors: scrapers.Selectors{
				Item:  "[data-product-id], .list-item",
				Title: "a[title], .title a, h1",
				Link:  "a[href*='/item/'], a[title], .title a",
				Price: `.price-current, .mGXnE_item, [class*="price"]`,
				Image: "img",
			},
		},
	}
}
