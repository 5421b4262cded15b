package manager

import (
	"go.uber.org/zap"

	"price-hunter/pkg/logger"
	"price-hunter/pkg/models"
	"price-hunter/pkg/validate"
)

type logReporter struct {
	log   *zap.Logger
	dedup *logger.Deduplicator
}

// NewLogReporter writes run events to log. Rejected records are reported
// through a Deduplicator since one broken selector rejects every record.
func NewLogReporter(log *zap.Logger) Reporter {
	return &logReporter{
		log:   log,
		dedup: logger.NewDeduplicator(log, logger.DefaultFlushDelay),
	}
}

func (l *logReporter) RunStarted(r *Report, sources []string) {
	l.log.Info("search started",
		zap.String("run_id", r.RunID),
		zap.String("query", r.Query),
		zap.Strings("sources", sources),
	)
}

func (l *logReporter) SourceFinished(runID string, sr SourceReport) {
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("source", sr.Source),
		zap.String("state", string(sr.State)),
		zap.Int("attempts", sr.Attempts),
		zap.Duration("duration", sr.Duration),
		zap.Duration("rate_limit_wait", sr.RateLimitWait),
	}
	if sr.Failed() {
		l.log.Warn("source failed", append(fields, zap.Error(sr.Err))...)
		return
	}
	l.log.Info("source finished", append(fields,
		zap.Int("fetched", sr.Fetched),
		zap.Int("accepted", sr.Accepted),
		zap.Int("unpriced", sr.Unpriced),
		zap.Int("price_unparseable", sr.PriceUnparseable),
	)...)
}

func (l *logReporter) RecordRejected(runID, source string, reason validate.Reason, p models.Product) {
	l.dedup.Warnf("%s: dropped record (%s)", source, reason)
}

func (l *logReporter) RunFinished(r *Report) {
	l.dedup.Flush()
	l.log.Info("search finished",
		zap.String("run_id", r.RunID),
		zap.Duration("duration", r.Finished.Sub(r.Started)),
		zap.Strings("failed", r.Failed()),
	)
}
