// Package metrics exports search run statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"price-hunter/pkg/manager"
	"price-hunter/pkg/models"
	"price-hunter/pkg/validate"
)

type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "price_hunter",
	}
}

// Reporter implements manager.Reporter on its own registry so it never
// collides with anything registered globally.
type Reporter struct {
	registry *prometheus.Registry

	runs            prometheus.Counter
	runDuration     prometheus.Histogram
	sourceRuns      *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	sourceAttempts  *prometheus.CounterVec
	rateLimitWait   *prometheus.CounterVec
	productsFetched *prometheus.CounterVec
	productsKept    *prometheus.CounterVec
	unpriced        *prometheus.CounterVec
	rejected        *prometheus.CounterVec
}

var _ manager.Reporter = (*Reporter)(nil)

func NewReporter(cfg Config) *Reporter {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultConfig().Namespace
	}
	ns := cfg.Namespace

	r := &Reporter{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "runs_total",
			Help:      "Number of multi-source search runs.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a search run from dispatch to collection.",
			Buckets:   prometheus.DefBuckets,
		}),
		sourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "source_runs_total",
			Help:      "Per-source outcomes by terminal state.",
		}, []string{"source", "state"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "source_duration_seconds",
			Help:      "Time spent on one source within a run, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		sourceAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "source_attempts_total",
			Help:      "Adapter calls made, retries included.",
		}, []string{"source"}),
		rateLimitWait: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Time spent waiting for the per-source rate limiter.",
		}, []string{"source"}),
		productsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "products_fetched_total",
			Help:      "Raw records returned by adapters.",
		}, []string{"source"}),
		productsKept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "products_accepted_total",
			Help:      "Records that passed normalization and validation.",
		}, []string{"source"}),
		unpriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "products_unpriced_total",
			Help:      "Records without a usable price.",
		}, []string{"source", "cause"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "products_rejected_total",
			Help:      "Records dropped by validation.",
		}, []string{"source", "reason"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runs, r.runDuration,
		r.sourceRuns, r.sourceDuration, r.sourceAttempts, r.rateLimitWait,
		r.productsFetched, r.productsKept, r.unpriced, r.rejected,
	)
	return r
}

func (r *Reporter) Registry() *prometheus.Registry { return r.registry }

func (r *Reporter) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Reporter) RunStarted(rep *manager.Report, sources []string) {
	r.runs.Inc()
}

func (r *Reporter) SourceFinished(runID string, sr manager.SourceReport) {
	r.sourceRuns.WithLabelValues(sr.Source, string(sr.State)).Inc()
	r.sourceDuration.WithLabelValues(sr.Source).Observe(sr.Duration.Seconds())
	r.sourceAttempts.WithLabelValues(sr.Source).Add(float64(sr.Attempts))
	r.rateLimitWait.WithLabelValues(sr.Source).Add(sr.RateLimitWait.Seconds())
	r.productsFetched.WithLabelValues(sr.Source).Add(float64(sr.Fetched))
	r.productsKept.WithLabelValues(sr.Source).Add(float64(sr.Accepted))
	r.unpriced.WithLabelValues(sr.Source, "missing").Add(float64(sr.Unpriced))
	r.unpriced.WithLabelValues(sr.Source, "unparseable").Add(float64(sr.PriceUnparseable))
}

func (r *Reporter) RecordRejected(runID, source string, reason validate.Reason, p models.Product) {
	r.rejected.WithLabelValues(source, string(reason)).Inc()
}

func (r *Reporter) RunFinished(rep *manager.Report) {
	if rep.Finished.After(rep.Started) {
		r.runDuration.Observe(rep.Finished.Sub(rep.Started).Seconds())
	}
}
