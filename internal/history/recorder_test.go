package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradedash/internal/poller"
	"tradedash/pkg/marketdata"
	"tradedash/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]postgres.QuoteRecord
	err     error
}

func (f *fakeWriter) InsertQuotes(_ context.Context, records []postgres.QuoteRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, records)
	return int64(len(records)), nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func quoteState(at time.Time, symbols ...string) poller.State[marketdata.Quote] {
	data := make(map[string]marketdata.Quote, len(symbols))
	for _, s := range symbols {
		data[s] = marketdata.Quote{Symbol: s, Price: decimal.NewFromInt(100)}
	}
	return poller.State[marketdata.Quote]{Data: data, LastFetched: at}
}

// go test -v --run TestRecorderWritesNewSnapshots
func TestRecorderWritesNewSnapshots(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	observe := r.Observe("watchlist")
	t0 := time.Now()

	observe(poller.State[marketdata.Quote]{Loading: true})
	observe(quoteState(t0, "AAPL", "MSFT"))
	observe(quoteState(t0, "AAPL", "MSFT")) // same fetch, e.g. an active toggle
	observe(quoteState(t0.Add(time.Minute), "AAPL"))

	require.Eventually(t, func() bool { return w.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.batches[0], 2)
	assert.Equal(t, "AAPL", w.batches[0][0].Symbol)
	assert.Len(t, w.batches[1], 1)
}

// go test -v --run TestRecorderTracksResourcesSeparately
func TestRecorderTracksResourcesSeparately(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, zaptest.NewLogger(t))

	at := time.Now()
	r.Observe("watchlist")(quoteState(at, "AAPL"))
	r.Observe("market_pulse")(quoteState(at, "SPY"))
	assert.Len(t, r.queue, 2)
}

// go test -v --run TestRecorderWriteFailureContinues
func TestRecorderWriteFailureContinues(t *testing.T) {
	w := &fakeWriter{err: errors.New("db down")}
	r := NewRecorder(w, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Observe("watchlist")(quoteState(time.Now(), "AAPL"))
	require.Eventually(t, func() bool { return len(r.queue) == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, w.count())
}
