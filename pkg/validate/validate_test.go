package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"price-hunter/pkg/models"
)

func priced(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestValidator_Check(t *testing.T) {
	v := New(decimal.NewFromInt(1000))
	domains := []string{"ebay.com"}

	base := models.Product{
		Title:  "Wireless Headphones",
		Price:  priced("49.99"),
		URL:    "https://www.ebay.com/itm/123",
		Source: "ebay",
	}

	tests := []struct {
		name   string
		modify func(p *models.Product)
		want   Reason
	}{
		{"valid", func(p *models.Product) {}, Valid},
		{"valid without price", func(p *models.Product) { p.Price = nil }, Valid},
		{"blank title", func(p *models.Product) { p.Title = "  " }, MissingTitle},
		{"no url", func(p *models.Product) { p.URL = "" }, MissingURL},
		{"not a url", func(p *models.Product) { p.URL = "not a url" }, MalformedURL},
		{"relative url", func(p *models.Product) { p.URL = "/itm/123" }, MalformedURL},
		{"ftp url", func(p *models.Product) { p.URL = "ftp://ebay.com/itm/1" }, MalformedURL},
		{"other domain", func(p *models.Product) { p.URL = "https://walmart.com/ip/1" }, ForeignDomain},
		{"lookalike domain", func(p *models.Product) { p.URL = "https://notebay.com/itm/1" }, ForeignDomain},
		{"bad image", func(p *models.Product) { p.ImageURL = "::nope" }, MalformedImageURL},
		{"image on cdn", func(p *models.Product) { p.ImageURL = "https://i.ebayimg.com/a.jpg" }, Valid},
		{"zero price", func(p *models.Product) { p.Price = priced("0") }, PriceOutOfRange},
		{"above ceiling", func(p *models.Product) { p.Price = priced("1000.01") }, PriceOutOfRange},
		{"at ceiling", func(p *models.Product) { p.Price = priced("1000") }, Valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.modify(&p)
			assert.Equal(t, tt.want, v.Check(p, domains))
		})
	}
}

func TestValidator_NoDomainsSkipsOwnership(t *testing.T) {
	v := New(decimal.Zero)
	p := models.Product{Title: "x", URL: "http://127.0.0.1:8080/p/1"}
	assert.Equal(t, Valid, v.Check(p, nil))
}

func TestValidator_DefaultCeiling(t *testing.T) {
	v := New(decimal.Zero)
	p := models.Product{Title: "x", URL: "https://a.example/p", Price: priced("99999999")}
	assert.Equal(t, PriceOutOfRange, v.Check(p, nil))
}
