// Package browser scrapes shops that only render their listings in a real
// browser. Pages are rendered with chromedp and then extracted with the same
// selectors as the plain HTML adapter.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"price-hunter/pkg/models"
	"price-hunter/pkg/retry"
	"price-hunter/pkg/scrapers"
)

const defaultTimeout = 45 * time.Second

// RenderFunc returns the outer HTML of target once waitFor is ready.
type RenderFunc func(ctx context.Context, target, waitFor string) (string, error)

type Scraper struct {
	Site scrapers.Site
	// DebugDir receives a screenshot and HTML dump when rendering fails.
	DebugDir string
	Render   RenderFunc

	log *zap.Logger
}

func NewScraper(site scrapers.Site, log *zap.Logger) *Scraper {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scraper{
		Site: site,
		log:  log.With(zap.String("source", site.ID)),
	}
	s.Render = s.chrome
	return s
}

func (s *Scraper) ID() string { return s.Site.ID }

func (s *Scraper) Search(ctx context.Context, query string, maxResults int) ([]models.RawProduct, error) {
	target, err := scrapers.SearchURL(s.Site.SearchURL, query)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	doc, page, err := s.load(ctx, target, firstAlternative(s.Site.Selectors.Item))
	if err != nil {
		return nil, err
	}
	return scrapers.Listing(doc, s.Site, page, maxResults), nil
}

func (s *Scraper) ScrapeOne(ctx context.Context, productURL string) (*models.RawProduct, error) {
	doc, page, err := s.load(ctx, productURL, "body")
	if err != nil {
		return nil, err
	}
	p := scrapers.Detail(doc, s.Site, page)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", productURL, models.ErrProductNotFound)
	}
	return p, nil
}

func (s *Scraper) load(ctx context.Context, target, waitFor string) (*goquery.Selection, *url.URL, error) {
	page, err := url.Parse(target)
	if err != nil {
		return nil, nil, retry.Permanent(err)
	}

	s.log.Debug("rendering", zap.String("url", target))
	html, err := s.Render(ctx, target, waitFor)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, retry.Transient(fmt.Errorf("render %s: %w", target, err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, retry.Permanent(err)
	}
	return doc.Selection, page, nil
}

func (s *Scraper) chrome(ctx context.Context, target, waitFor string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(s.Site.UA()),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := s.Site.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	renderCtx, cancelRender := context.WithTimeout(browserCtx, timeout)
	defer cancelRender()

	if waitFor == "" {
		waitFor = "body"
	}

	var html string
	err := chromedp.Run(renderCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady(waitFor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		s.log.Warn("chromedp run failed", zap.String("url", target), zap.Error(err))
		s.dump(browserCtx)
		return "", err
	}
	return html, nil
}

func (s *Scraper) dump(browserCtx context.Context) {
	if s.DebugDir == "" {
		return
	}
	debugCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	base := filepath.Join(s.DebugDir, s.Site.ID+"_debug")

	var buf []byte
	if err := chromedp.Run(debugCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		s.log.Warn("failed to capture screenshot", zap.Error(err))
	} else if err := os.WriteFile(base+".png", buf, 0644); err != nil {
		s.log.Warn("failed to write screenshot", zap.Error(err))
	}

	var html string
	if err := chromedp.Run(debugCtx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		s.log.Warn("failed to capture html", zap.Error(err))
	} else if err := os.WriteFile(base+".html", []byte(html), 0644); err != nil {
		s.log.Warn("failed to write html", zap.Error(err))
	}
}

func firstAlternative(selector string) string {
	first, _, _ := strings.Cut(selector, ",")
	return strings.TrimSpace(first)
}
