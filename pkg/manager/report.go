package manager

import (
	"sort"
	"time"

	"price-hunter/pkg/models"
	"price-hunter/pkg/validate"
)

// State is the terminal state of one source within a run.
type State string

const (
	Running         State = "running"
	Succeeded       State = "succeeded"
	FailedTransient State = "failed_transient"
	FailedPermanent State = "failed_permanent"
	FailedTimeout   State = "failed_timeout"
	Canceled        State = "canceled"
)

type RunState string

const (
	Dispatched       RunState = "dispatched"
	PerSourceRunning RunState = "running"
	Collected        RunState = "collected"
	Aggregated       RunState = "aggregated"
)

// SourceReport describes what happened to one source during a run.
type SourceReport struct {
	Source           string
	State            State
	Attempts         int
	Fetched          int
	Accepted         int
	Unpriced         int
	PriceUnparseable int
	Rejected         map[validate.Reason]int
	Err              error
	Duration         time.Duration
	// RateLimitWait is the part of Duration spent waiting for the limiter.
	RateLimitWait    time.Duration
}

func (r SourceReport) Failed() bool {
	return r.State != Succeeded
}

// Report is the diagnostic side of a run; results never depend on it.
type Report struct {
	RunID    string
	Query    string
	State    RunState
	Started  time.Time
	Finished time.Time
	Sources  map[string]*SourceReport
}

// Failed lists the sources that did not succeed, sorted by id.
func (r *Report) Failed() []string {
	var out []string
	for _, id := range r.ids() {
		if r.Sources[id].Failed() {
			out = append(out, id)
		}
	}
	return out
}

func (r *Report) AllFailed() bool {
	return len(r.Sources) > 0 && len(r.Failed()) == len(r.Sources)
}

func (r *Report) ids() []string {
	ids := make([]string, 0, len(r.Sources))
	for id := range r.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reporter receives run events. Implementations must be safe for concurrent
// use; SourceFinished and RecordRejected are called from worker goroutines.
type Reporter interface {
	RunStarted(r *Report, sources []string)
	SourceFinished(runID string, sr SourceReport)
	RecordRejected(runID, source string, reason validate.Reason, p models.Product)
	RunFinished(r *Report)
}

type NopReporter struct{}

func (NopReporter) RunStarted(*Report, []string)                                  {}
func (NopReporter) SourceFinished(string, SourceReport)                           {}
func (NopReporter) RecordRejected(string, string, validate.Reason, models.Product) {}
func (NopReporter) RunFinished(*Report)                                           {}

// Reporters fans every event out in order.
type Reporters []Reporter

func (rs Reporters) RunStarted(r *Report, sources []string) {
	for _, rep := range rs {
		rep.RunStarted(r, sources)
	}
}

func (rs Reporters) SourceFinished(runID string, sr SourceReport) {
	for _, rep := range rs {
		rep.SourceFinished(runID, sr)
	}
}

func (rs Reporters) RecordRejected(runID, source string, reason validate.Reason, p models.Product) {
	for _, rep := range rs {
		rep.RecordRejected(runID, source, reason, p)
	}
}

func (rs Reporters) RunFinished(r *Report) {
	for _, rep := range rs {
		rep.RunFinished(r)
	}
}
