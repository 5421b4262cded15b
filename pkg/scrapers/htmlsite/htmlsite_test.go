package htmlsite

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-hunter/pkg/models"
	"price-hunter/pkg/retry"
	"price-hunter/pkg/scrapers"
)

const searchPage = `
<!DOCTYPE html>
<html>
<body>
  <div data-item-id="1">
    <a link-identifier="1" href="/ip/1">Apple AirPods Pro</a>
    <div data-automation-id="product-price">$189.00</div>
    <img data-testid="productTileImage" src="/img/1.jpg">
  </div>
  <div data-item-id="2">
    <a link-identifier="2" href="/ip/2">Apple AirPods (3rd gen)</a>
    <div data-automation-id="product-price">$1,149.50</div>
  </div>
</body>
</html>
`

const productPage = `
<!DOCTYPE html>
<html>
<head>
  <script type="application/ld+json">
  {"@type":"Product","name":"Apple AirPods Pro","offers":{"price":189.0,"priceCurrency":"USD","availability":"https://schema.org/InStock"}}
  </script>
</head>
<body><h1>Apple AirPods Pro</h1></body>
</html>
`

func walmart(baseURL string) scrapers.Site {
	return scrapers.Site{
		ID:        "walmart",
		SearchURL: baseURL + "/search?q={query}",
		Currency:  "USD",
		Selectors: scrapers.Selectors{
			Item:  "[data-item-id], .search-result-gridview-item",
			Title: "a[link-identifier], .product-title-link",
			Link:  "a[link-identifier]",
			Price: `[data-automation-id="product-price"]`,
			Image: `img[data-testid="productTileImage"]`,
		},
	}
}

func newServer(t *testing.T, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Logf("Received request for: %s", r.URL.String())
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("q") != "airpods pro" {
				t.Errorf("unexpected query %q", r.URL.Query().Get("q"))
			}
			fmt.Fprint(w, searchPage)
		case "/ip/1":
			fmt.Fprint(w, productPage)
		case "/ip/empty":
			fmt.Fprintln(w, "<html><body><p>nothing</p></body></html>")
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestScraper_Search(t *testing.T) {
	ts := newServer(t, nil)
	defer ts.Close()

	scraper := NewScraper(walmart(ts.URL), nil)
	scraper.AllowedDomains = nil

	items, err := scraper.Search(context.Background(), "airpods pro", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Apple AirPods Pro", items[0].Title)
	assert.Equal(t, "$189.00", items[0].Price)
	assert.Equal(t, ts.URL+"/ip/1", items[0].URL)
	assert.Equal(t, ts.URL+"/img/1.jpg", items[0].ImageURL)
	assert.Equal(t, "walmart", items[0].Source)

	assert.Equal(t, "$1,149.50", items[1].Price)
	assert.Empty(t, items[1].ImageURL)
}

func TestScraper_SearchTwiceRevisits(t *testing.T) {
	var hits int32
	ts := newServer(t, &hits)
	defer ts.Close()

	scraper := NewScraper(walmart(ts.URL), nil)
	scraper.AllowedDomains = nil

	for i := 0; i < 2; i++ {
		_, err := scraper.Search(context.Background(), "airpods pro", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestScraper_ScrapeOne(t *testing.T) {
	ts := newServer(t, nil)
	defer ts.Close()

	scraper := NewScraper(walmart(ts.URL), nil)
	scraper.AllowedDomains = nil

	p, err := scraper.ScrapeOne(context.Background(), ts.URL+"/ip/1")
	require.NoError(t, err)
	assert.Equal(t, "Apple AirPods Pro", p.Title)
	assert.Equal(t, "189.0", p.Price)
	assert.Equal(t, "In Stock", p.Availability)
}

func TestScraper_ScrapeOneNotFound(t *testing.T) {
	ts := newServer(t, nil)
	defer ts.Close()

	scraper := NewScraper(walmart(ts.URL), nil)
	scraper.AllowedDomains = nil

	_, err := scraper.ScrapeOne(context.Background(), ts.URL+"/ip/missing")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
	assert.Equal(t, retry.ClassPermanent, retry.Classify(err))

	_, err = scraper.ScrapeOne(context.Background(), ts.URL+"/ip/empty")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestScraper_ServerErrorIsTransient(t *testing.T) {
	ts := newServer(t, nil)
	defer ts.Close()

	scraper := NewScraper(walmart(ts.URL), nil)
	scraper.AllowedDomains = nil

	_, err := scraper.ScrapeOne(context.Background(), ts.URL+"/busy")
	require.Error(t, err)
	assert.Equal(t, retry.ClassTransient, retry.Classify(err))
}

func TestScraper_ForeignDomainRefused(t *testing.T) {
	ts := newServer(t, nil)
	defer ts.Close()

	site := walmart(ts.URL)
	site.Domains = []string{"walmart.com"}
	scraper := NewScraper(site, nil)

	_, err := scraper.Search(context.Background(), "airpods pro", 5)
	require.Error(t, err)
	assert.Equal(t, retry.ClassPermanent, retry.Classify(err))
}

func TestScraper_Canceled(t *testing.T) {
	ts := newServer(t, nil)
	defer ts.Close()

	scraper := NewScraper(walmart(ts.URL), nil)
	scraper.AllowedDomains = nil

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scraper.Search(ctx, "airpods pro", 5)
	assert.ErrorIs(t, err, context.Canceled)
}
