// Package validate performs the structural checks a normalized product must
// pass before it enters a result set.
package validate

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"price-hunter/pkg/models"
)

// Reason names why a record was rejected. The empty Reason means valid.
type Reason string

const (
	Valid             Reason = ""
	MissingTitle      Reason = "missing_title"
	MissingURL        Reason = "missing_url"
	MalformedURL      Reason = "malformed_url"
	PriceOutOfRange   Reason = "price_out_of_range"
	ForeignDomain     Reason = "foreign_domain"
	MalformedImageURL Reason = "malformed_image_url"
)

// DefaultPriceCeiling guards against SKUs or phone numbers parsed as prices.
var DefaultPriceCeiling = decimal.NewFromInt(10_000_000)

type Validator struct {
	ceiling decimal.Decimal
	v       *validator.Validate
}

// New returns a Validator; a non-positive ceiling selects DefaultPriceCeiling.
func New(ceiling decimal.Decimal) *Validator {
	if !ceiling.IsPositive() {
		ceiling = DefaultPriceCeiling
	}
	return &Validator{ceiling: ceiling, v: validator.New()}
}

// Check returns the first failing Reason for p. domains lists the hosts the
// issuing source owns; subdomains match, and an empty list skips the check.
func (val *Validator) Check(p models.Product, domains []string) Reason {
	if strings.TrimSpace(p.Title) == "" {
		return MissingTitle
	}
	if strings.TrimSpace(p.URL) == "" {
		return MissingURL
	}

	u, ok := val.webURL(p.URL)
	if !ok {
		return MalformedURL
	}
	if !ownedBy(u.Hostname(), domains) {
		return ForeignDomain
	}

	if p.ImageURL != "" {
		if _, ok := val.webURL(p.ImageURL); !ok {
			return MalformedImageURL
		}
	}

	if p.Price != nil && (!p.Price.IsPositive() || p.Price.GreaterThan(val.ceiling)) {
		return PriceOutOfRange
	}

	return Valid
}

func (val *Validator) webURL(raw string) (*url.URL, bool) {
	if err := val.v.Var(raw, "required,url"); err != nil {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

func ownedBy(host string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
