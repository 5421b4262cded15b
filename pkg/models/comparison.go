package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PriceStats is only present when at least one priced product exists.
type PriceStats struct {
	Lowest  decimal.Decimal
	Highest decimal.Decimal
	Average decimal.Decimal
	Count   int
}

// Comparison is derived from a search and never stored.
type Comparison struct {
	Query        string
	TotalResults int
	Stats        *PriceStats
	Best         *Product
	Currencies   []string
	Products     []Product
}

type comparisonJSON struct {
	Query        string    `json:"query"`
	TotalResults int       `json:"total_results"`
	PricedCount  int       `json:"priced_results"`
	Lowest       *float64  `json:"lowest_price"`
	Highest      *float64  `json:"highest_price"`
	Average      *float64  `json:"average_price"`
	Best         *Product  `json:"best_deal"`
	Currencies   []string  `json:"currencies"`
	Products     []Product `json:"products"`
}

func (c Comparison) MarshalJSON() ([]byte, error) {
	out := comparisonJSON{
		Query:        c.Query,
		TotalResults: c.TotalResults,
		Best:         c.Best,
		Currencies:   c.Currencies,
		Products:     c.Products,
	}
	if out.Currencies == nil {
		out.Currencies = []string{}
	}
	if out.Products == nil {
		out.Products = []Product{}
	}
	if c.Stats != nil {
		lo, hi, avg := c.Stats.Lowest.InexactFloat64(), c.Stats.Highest.InexactFloat64(), c.Stats.Average.InexactFloat64()
		out.Lowest, out.Highest, out.Average = &lo, &hi, &avg
		out.PricedCount = c.Stats.Count
	}
	return json.Marshal(out)
}
