package scrapers

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `
<html><body>
  <ul>
    <li class="s-item">
      <a class="s-item__link" href="/itm/1"><span class="s-item__title">Sony WH-1000XM5</span></a>
      <span class="s-item__price">$348.00</span>
      <img class="s-item__image-img" src="https://i.ebayimg.com/1.jpg">
    </li>
    <li class="s-item">
      <span class="s-item__title"></span>
    </li>
    <li class="lvresult">
      <h3 class="lvtitle"><a href="https://www.ebay.com/itm/2">Bose QC45</a></h3>
      <span class="prc">$199.99</span>
    </li>
    <li class="s-item">
      <a class="s-item__link" href="/itm/3"><span class="s-item__title">JBL Tune</span></a>
    </li>
  </ul>
</body></html>`

func ebaySite() Site {
	return Site{
		ID:       "ebay",
		Currency: "USD",
		Selectors: Selectors{
			Item:  ".s-item, .lvresult",
			Title: ".s-item__title, .lvtitle a",
			Link:  ".s-item__link, .lvtitle a",
			Price: ".s-item__price, .prc",
			Image: ".s-item__image-img",
		},
	}
}

func doc(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d.Selection
}

func TestListing(t *testing.T) {
	page, _ := url.Parse("https://www.ebay.com/sch/i.html?_nkw=headphones")

	items := Listing(doc(t, listingHTML), ebaySite(), page, 10)
	require.Len(t, items, 3)

	assert.Equal(t, "Sony WH-1000XM5", items[0].Title)
	assert.Equal(t, "$348.00", items[0].Price)
	assert.Equal(t, "https://www.ebay.com/itm/1", items[0].URL)
	assert.Equal(t, "https://i.ebayimg.com/1.jpg", items[0].ImageURL)
	assert.Equal(t, "ebay", items[0].Source)
	assert.Equal(t, "USD", items[0].Currency)

	assert.Equal(t, "Bose QC45", items[1].Title)
	assert.Equal(t, "$199.99", items[1].Price)
	assert.Equal(t, "https://www.ebay.com/itm/2", items[1].URL)

	assert.Equal(t, "JBL Tune", items[2].Title)
	assert.Empty(t, items[2].Price)
}

func TestListing_RespectsMax(t *testing.T) {
	items := Listing(doc(t, listingHTML), ebaySite(), nil, 1)
	assert.Len(t, items, 1)
}

func TestDetail_PrefersJSONLD(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">
	{"@type":"Product","name":"Vitasia Nori Lachs","image":["/img/a.jpg"],
	 "offers":{"price":"4.99","priceCurrency":"EUR","availability":"https://schema.org/InStock"}}
	</script></head>
	<body><h1>Ignored heading</h1><span class="price">9,99 €</span></body></html>`

	page, _ := url.Parse("https://www.hofer.at/de/p.123.html")
	site := Site{ID: "hofer", Selectors: Selectors{Title: "h1", Price: ".price"}}

	p := Detail(doc(t, html), site, page)
	require.NotNil(t, p)
	assert.Equal(t, "Vitasia Nori Lachs", p.Title)
	assert.Equal(t, "4.99", p.Price)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, "In Stock", p.Availability)
	assert.Equal(t, "https://www.hofer.at/img/a.jpg", p.ImageURL)
	assert.Equal(t, "https://www.hofer.at/de/p.123.html", p.URL)
}

func TestDetail_NumericJSONLDPrice(t *testing.T) {
	html := `<script type="application/ld+json">{"@type":"Product","name":"X","offers":{"price":12.5}}</script>`
	page, _ := url.Parse("https://shop.example/p/1")

	p := Detail(doc(t, html), Site{ID: "x"}, page)
	require.NotNil(t, p)
	assert.Equal(t, "12.5", p.Price)
}

func TestDetail_SelectorFallback(t *testing.T) {
	html := `<html><body>
	<h1 id="itemTitle"> Lenovo ThinkPad </h1>
	<div class="x-price-primary"><span>US $1,099.00</span></div>
	<div class="d-quantity__availability">3 available</div>
	</body></html>`
	page, _ := url.Parse("https://www.ebay.com/itm/42")
	site := Site{ID: "ebay", Selectors: Selectors{
		Title:        "#itemTitle, h1.x-item-title",
		Price:        ".x-price-primary span",
		Availability: ".d-quantity__availability",
	}}

	p := Detail(doc(t, html), site, page)
	require.NotNil(t, p)
	assert.Equal(t, "Lenovo ThinkPad", p.Title)
	assert.Equal(t, "US $1,099.00", p.Price)
	assert.Equal(t, "3 available", p.Availability)
}

func TestDetail_NothingFound(t *testing.T) {
	page, _ := url.Parse("https://www.ebay.com/itm/404")
	assert.Nil(t, Detail(doc(t, "<html><body><p>gone</p></body></html>"), ebaySite(), page))
}

func TestSearchURL(t *testing.T) {
	u, err := SearchURL("https://www.ebay.com/sch/i.html?_nkw={query}", "usb c cable")
	require.NoError(t, err)
	assert.Equal(t, "https://www.ebay.com/sch/i.html?_nkw=usb+c+cable", u)

	_, err = SearchURL("https://www.ebay.com/", "x")
	assert.Error(t, err)
}

func TestSite_Hosts(t *testing.T) {
	s := Site{SearchURL: "https://www.walmart.com/search?q={query}"}
	assert.Equal(t, []string{"walmart.com"}, s.Hosts())

	s.Domains = []string{"walmart.com", "walmart.ca"}
	assert.Equal(t, []string{"walmart.com", "walmart.ca"}, s.Hosts())
}
