package logger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultFlushDelay = 2 * time.Second

// Deduplicator collapses identical consecutive warnings into one line with a
// repeat count. A misbehaving source otherwise floods the log once per
// record.
type Deduplicator struct {
	log        *zap.SugaredLogger
	flushDelay time.Duration

	mu      sync.Mutex
	lastMsg string
	count   int
	timer   *time.Timer
}

func NewDeduplicator(log *zap.Logger, flushDelay time.Duration) *Deduplicator {
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Deduplicator{
		log:        log.WithOptions(zap.AddCallerSkip(2)).Sugar(),
		flushDelay: flushDelay,
	}
}

func (d *Deduplicator) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if msg != d.lastMsg {
		d.flush()
		d.lastMsg = msg
	}
	d.count++

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.flushDelay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.flush()
	})
}

// Flush writes out any pending line immediately.
func (d *Deduplicator) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.flush()
}

func (d *Deduplicator) flush() {
	switch d.count {
	case 0:
		return
	case 1:
		d.log.Warn(d.lastMsg)
	default:
		d.log.Warnf("%s (%d)", d.lastMsg, d.count)
	}
	d.count = 0
	d.lastMsg = ""
}
