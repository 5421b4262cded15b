package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawProduct is what a source adapter extracts before any normalization.
// Price is kept exactly as it appeared on the page.
type RawProduct struct {
	Title        string    `json:"title"`
	Price        string    `json:"price"`
	Currency     string    `json:"currency,omitempty"`
	URL          string    `json:"url"`
	ImageURL     string    `json:"image_url,omitempty"`
	Availability string    `json:"availability,omitempty"`
	Source       string    `json:"source"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// Product is a normalized, validated listing. A nil Price means the price
// could not be extracted, which is not the same as a zero price.
type Product struct {
	Title        string
	Price        *decimal.Decimal
	Currency     string
	URL          string
	ImageURL     string
	Availability string
	Source       string
	FetchedAt    time.Time
}

// HasPrice reports whether the product takes part in price ranking.
func (p Product) HasPrice() bool {
	return p.Price != nil
}

type productJSON struct {
	Title        string    `json:"title"`
	Price        *float64  `json:"price"`
	Currency     string    `json:"currency"`
	URL          string    `json:"url"`
	ImageURL     string    `json:"image_url"`
	Availability string    `json:"availability"`
	Site         string    `json:"site"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	out := productJSON{
		Title:        p.Title,
		Currency:     p.Currency,
		URL:          p.URL,
		ImageURL:     p.ImageURL,
		Availability: p.Availability,
		Site:         p.Source,
		ScrapedAt:    p.FetchedAt,
	}
	if p.Price != nil {
		f := p.Price.InexactFloat64()
		out.Price = &f
	}
	return json.Marshal(out)
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var in productJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Product{
		Title:        in.Title,
		Currency:     in.Currency,
		URL:          in.URL,
		ImageURL:     in.ImageURL,
		Availability: in.Availability,
		Source:       in.Site,
		FetchedAt:    in.ScrapedAt,
	}
	if in.Price != nil {
		d := decimal.NewFromFloat(*in.Price)
		p.Price = &d
	}
	return nil
}
