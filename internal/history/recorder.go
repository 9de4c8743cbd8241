// Package history persists quote snapshots produced by the pollers.
package history

import (
	"context"
	"sync"
	"time"

	"tradedash/internal/poller"
	"tradedash/pkg/marketdata"
	"tradedash/pkg/storage/postgres"

	"go.uber.org/zap"
)

const (
	queueSize    = 64
	writeTimeout = 2 * time.Second
)

// QuoteWriter is the storage side of the recorder.
type QuoteWriter interface {
	InsertQuotes(ctx context.Context, records []postgres.QuoteRecord) (int64, error)
}

type snapshot struct {
	resource  string
	quotes    map[string]marketdata.Quote
	fetchedAt time.Time
}

// Recorder queues quote snapshots and writes them from a single worker.
// Snapshots arriving while the queue is full are dropped.
type Recorder struct {
	writer QuoteWriter
	logger *zap.Logger
	queue  chan snapshot

	mu       sync.Mutex
	lastSeen map[string]time.Time // resource -> last recorded fetch time
}

func NewRecorder(writer QuoteWriter, logger *zap.Logger) *Recorder {
	return &Recorder{
		writer:   writer,
		logger:   logger.Named("history"),
		queue:    make(chan snapshot, queueSize),
		lastSeen: make(map[string]time.Time),
	}
}

// Observe returns a poller OnChange callback that records each new successful fetch.
func (r *Recorder) Observe(resource string) func(poller.State[marketdata.Quote]) {
	return func(s poller.State[marketdata.Quote]) {
		if s.LastFetched.IsZero() || len(s.Data) == 0 {
			return
		}

		r.mu.Lock()
		if !s.LastFetched.After(r.lastSeen[resource]) {
			r.mu.Unlock()
			return
		}
		r.lastSeen[resource] = s.LastFetched
		r.mu.Unlock()

		select {
		case r.queue <- snapshot{resource: resource, quotes: s.Data, fetchedAt: s.LastFetched}:
		default:
			r.logger.Warn("history queue full, dropping snapshot", zap.String("resource", resource))
		}
	}
}

// Run drains the queue until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-r.queue:
			r.write(ctx, snap)
		}
	}
}

func (r *Recorder) write(ctx context.Context, snap snapshot) {
	records := postgres.ToQuoteRecords(snap.quotes, snap.fetchedAt)

	dbCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	n, err := r.writer.InsertQuotes(dbCtx, records)
	cancel()
	if err != nil {
		r.logger.Warn("failed to insert quotes into DB", zap.String("resource", snap.resource), zap.Error(err))
		return
	}
	r.logger.Debug("recorded quotes", zap.String("resource", snap.resource), zap.Int64("rows", n))
}
