package scrapers

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"price-hunter/pkg/models"
)

// Text returns the trimmed text of the first alternative in selector that
// matches under sel.
func Text(sel *goquery.Selection, selector string) string {
	for _, alt := range alternatives(selector) {
		if found := sel.Find(alt).First(); found.Length() > 0 {
			return strings.TrimSpace(found.Text())
		}
	}
	return ""
}

// Attr is Text for an attribute.
func Attr(sel *goquery.Selection, selector, attr string) string {
	for _, alt := range alternatives(selector) {
		found := sel.Find(alt).First()
		if v, ok := found.Attr(attr); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func alternatives(selector string) []string {
	var out []string
	for _, s := range strings.Split(selector, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Listing extracts every search result item in doc. Links and images are
// resolved against page.
func Listing(doc *goquery.Selection, site Site, page *url.URL, maxResults int) []models.RawProduct {
	var out []models.RawProduct
	now := time.Now()

	itemSel := strings.Join(alternatives(site.Selectors.Item), ", ")
	if itemSel == "" {
		return nil
	}

	doc.Find(itemSel).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if maxResults > 0 && len(out) >= maxResults {
			return false
		}

		title := Text(item, site.Selectors.Title)
		if title == "" {
			return true
		}

		link := Attr(item, site.Selectors.Link, "href")
		if link == "" {
			link = Attr(item, site.Selectors.Title, "href")
		}

		image := Attr(item, site.Selectors.Image, "src")

		out = append(out, models.RawProduct{
			Title:        title,
			Price:        Text(item, site.Selectors.Price),
			Currency:     site.Currency,
			URL:          resolve(page, link),
			ImageURL:     resolve(page, image),
			Availability: Text(item, site.Selectors.Availability),
			Source:       site.ID,
			ScrapedAt:    now,
		})
		return true
	})

	return out
}

// Detail extracts a single product page. JSON-LD Product data is preferred;
// selectors fill whatever it leaves empty. A nil result means nothing was
// found.
func Detail(doc *goquery.Selection, site Site, page *url.URL) *models.RawProduct {
	p := models.RawProduct{
		Currency:  site.Currency,
		URL:       page.String(),
		Source:    site.ID,
		ScrapedAt: time.Now(),
	}

	if ld := JSONLD(doc); ld != nil {
		p.Title = strings.TrimSpace(ld.Name)
		p.Price = ld.PriceText()
		if ld.Offers.PriceCurrency != "" {
			p.Currency = ld.Offers.PriceCurrency
		}
		p.Availability = ld.AvailabilityLabel()
		p.ImageURL = resolve(page, ld.ImageURL())
		if ld.Offers.URL != "" {
			if u := resolve(page, ld.Offers.URL); u != "" {
				p.URL = u
			}
		}
	}

	if p.Title == "" {
		p.Title = Text(doc, site.Selectors.Title)
	}
	if p.Title == "" {
		p.Title = Text(doc, "h1")
	}
	if p.Price == "" {
		p.Price = Text(doc, site.Selectors.Price)
	}
	if p.ImageURL == "" {
		p.ImageURL = resolve(page, Attr(doc, site.Selectors.Image, "src"))
	}
	if p.Availability == "" {
		p.Availability = Text(doc, site.Selectors.Availability)
	}

	if p.Title == "" {
		return nil
	}
	return &p
}

func resolve(page *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if page == nil {
		return u.String()
	}
	return page.ResolveReference(u).String()
}

// ProductJSONLD is the subset of schema.org/Product we read.
type ProductJSONLD struct {
	Type   string          `json:"@type"`
	Name   string          `json:"name"`
	Image  json.RawMessage `json:"image"`
	Offers struct {
		Price         json.RawMessage `json:"price"` // string or number
		PriceCurrency string          `json:"priceCurrency"`
		Availability  string          `json:"availability"`
		URL           string          `json:"url"`
	} `json:"offers"`
}

// JSONLD returns the first Product object found in ld+json scripts.
func JSONLD(doc *goquery.Selection) *ProductJSONLD {
	var found *ProductJSONLD
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !strings.Contains(text, "Product") {
			return true
		}
		var ld ProductJSONLD
		if err := json.Unmarshal([]byte(text), &ld); err != nil || ld.Type != "Product" {
			return true
		}
		found = &ld
		return false
	})
	return found
}

func (ld *ProductJSONLD) PriceText() string {
	if len(ld.Offers.Price) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(ld.Offers.Price, &s); err != nil {
		s = string(ld.Offers.Price)
	}
	return strings.Trim(s, `"' `)
}

func (ld *ProductJSONLD) ImageURL() string {
	if len(ld.Image) == 0 {
		return ""
	}
	var one string
	if err := json.Unmarshal(ld.Image, &one); err == nil {
		return one
	}
	var many []string
	if err := json.Unmarshal(ld.Image, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

func (ld *ProductJSONLD) AvailabilityLabel() string {
	avail := strings.ToLower(ld.Offers.Availability)
	switch {
	case avail == "":
		return ""
	case strings.Contains(avail, "instock") || avail == "in stock":
		return "In Stock"
	case strings.Contains(avail, "outofstock"):
		return "Out of Stock"
	}
	return ld.Offers.Availability
}
