package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"price-hunter/pkg/api"
	"price-hunter/pkg/app"
	"price-hunter/pkg/manager"
	"price-hunter/pkg/models"
)

const (
	defaultMaxResults = 10
	defaultTopN       = 5
)

type server struct {
	manager *manager.Manager
	log     *zap.Logger
	// scrapeSemaphore prevents a burst of single-page scrapes from
	// overloading the sources.
	scrapeSemaphore chan struct{}
	metrics         http.Handler
	metricsPath     string
}

func newServer(a *app.App) *server {
	n := a.Config.Server.MaxScrapes
	if n < 1 {
		n = 1
	}
	s := &server{
		manager:         a.Manager,
		log:             a.Log,
		scrapeSemaphore: make(chan struct{}, n),
	}
	if a.Metrics != nil {
		s.metrics = a.Metrics.Handler()
		s.metricsPath = a.Config.Metrics.Path
	}
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", s.searchHandler)
	mux.HandleFunc("/api/best-deals", s.bestDealsHandler)
	mux.HandleFunc("/api/compare", s.compareHandler)
	mux.HandleFunc("/api/sites", s.sitesHandler)
	mux.HandleFunc("/api/scrape", s.scrapeHandler)
	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			api.WriteNotFound(w, "No such endpoint: "+r.URL.Path, r.URL.Path)
			return
		}
		rootHandler(w, r)
	})
	return mux
}

type searchResponse struct {
	Query         string            `json:"query"`
	TotalResults  int               `json:"total_results"`
	Products      []models.Product  `json:"products"`
	FailedSources map[string]string `json:"failed_sources,omitempty"`
}

type siteSearchResponse struct {
	Query         string                      `json:"query"`
	TotalResults  int                         `json:"total_results"`
	Sites         map[string][]models.Product `json:"sites"`
	FailedSources map[string]string           `json:"failed_sources,omitempty"`
}

type dealsResponse struct {
	Query         string            `json:"query"`
	Deals         []models.Product  `json:"deals"`
	FailedSources map[string]string `json:"failed_sources,omitempty"`
}

type sitesResponse struct {
	Sites []string `json:"sites"`
}

type scrapeRequest struct {
	URL  string `json:"url"`
	Site string `json:"site"`
}

func (s *server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}
	query, ok := requireQuery(w, r)
	if !ok {
		return
	}
	maxResults, ok := intParam(w, r, "max_results", defaultMaxResults)
	if !ok {
		return
	}

	if sites := splitList(r.URL.Query().Get("sites")); len(sites) > 0 {
		bySite, report, err := s.manager.SearchSpecific(r.Context(), query, sites, maxResults)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		total := 0
		for _, products := range bySite {
			total += len(products)
		}
		s.respond(w, r, siteSearchResponse{
			Query:         query,
			TotalResults:  total,
			Sites:         bySite,
			FailedSources: failures(report),
		})
		return
	}

	products, report, err := s.manager.SearchAll(r.Context(), query, maxResults)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, searchResponse{
		Query:         query,
		TotalResults:  len(products),
		Products:      nonNil(products),
		FailedSources: failures(report),
	})
}

func (s *server) bestDealsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}
	query, ok := requireQuery(w, r)
	if !ok {
		return
	}
	topN, ok := intParam(w, r, "top_n", defaultTopN)
	if !ok {
		return
	}

	deals, report, err := s.manager.BestDeals(r.Context(), query, topN)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, dealsResponse{
		Query:         query,
		Deals:         nonNil(deals),
		FailedSources: failures(report),
	})
}

func (s *server) compareHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}
	query, ok := requireQuery(w, r)
	if !ok {
		return
	}

	comparison, _, err := s.manager.ComparePrices(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, comparison)
}

func (s *server) sitesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}
	s.respond(w, r, sitesResponse{Sites: nonNil(s.manager.Sources())})
}

func (s *server) scrapeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w, http.MethodPost, r.URL.Path)
		return
	}
	defer r.Body.Close()

	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid JSON body. Expected {\"url\": ..., \"site\": ...}.", r.URL.Path)
		return
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Site) == "" {
		api.WriteBadRequest(w, "URL and site are required", r.URL.Path)
		return
	}

	// Acquire semaphore to prevent system overload
	select {
	case s.scrapeSemaphore <- struct{}{}:
		defer func() { <-s.scrapeSemaphore }()
	case <-r.Context().Done():
		s.fail(w, r, r.Context().Err())
		return
	}

	product, err := s.manager.FetchOne(r.Context(), req.URL, strings.ToLower(strings.TrimSpace(req.Site)))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, product)
}

func (s *server) respond(w http.ResponseWriter, r *http.Request, v any) {
	if err := api.WriteJSON(w, http.StatusOK, v); err != nil {
		s.log.Warn("error encoding response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	api.WriteErr(w, err, r.URL.Path)
}

func requireQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		api.WriteBadRequest(w, `Query parameter "q" is required`, r.URL.Path)
		return "", false
	}
	return q, true
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		api.WriteBadRequest(w, fmt.Sprintf("Parameter %q must be a positive integer, got %q", name, raw), r.URL.Path)
		return 0, false
	}
	return n, true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// failures maps each failed source to its terminal state.
func failures(report *manager.Report) map[string]string {
	if report == nil {
		return nil
	}
	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}
	out := make(map[string]string, len(failed))
	for _, id := range failed {
		out[id] = string(report.Sources[id].State)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
