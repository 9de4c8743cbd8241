package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradedash/config"
	"tradedash/internal/poller"
	"tradedash/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeBackend answers quotes for whatever tickers are requested.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market-data/health/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/market-data/", func(w http.ResponseWriter, r *http.Request) {
		var parts []string
		for _, s := range strings.Split(r.URL.Query().Get("tickers"), ",") {
			parts = append(parts, `"`+s+`": {"price": 100}`)
		}
		w.Write([]byte("{" + strings.Join(parts, ",") + "}"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{URL: backendURL, HealthTimeout: time.Second},
		Poller: config.PollerConfig{
			InitialTimeout: time.Second,
			RetryTimeout:   time.Second,
			Retry:          config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Hour, MaxDelay: time.Hour},
		},
		Resources: config.ResourcesConfig{
			Watchlist:   config.ResourceConfig{PollingInterval: time.Hour, Symbols: []string{"AAPL"}, Active: true},
			MarketPulse: config.ResourceConfig{PollingInterval: time.Hour, Symbols: []string{"spy"}, Active: true},
			Indicators:  config.IndicatorsConfig{PollingInterval: time.Hour, Period: "3mo", Interval: "1d", Concurrency: 2},
			LiveScreens: config.ResourceConfig{PollingInterval: time.Hour},
		},
		Store:     config.StoreConfig{Backend: "memory"},
		Dashboard: config.DashboardConfig{Addr: "127.0.0.1:0"},
		Log:       config.LogConfig{Environment: "dev"},
	}
}

// go test -v --run TestAppRun
func TestAppRun(t *testing.T) {
	backend := fakeBackend(t)
	cfg := testConfig(backend.URL)

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t), WithStoreBackend(store.NewMemoryBackend()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(a.WatchlistPoller.State().Data) == 1 && len(a.MarketPulsePoller.State().Data) == 1
	}, 2*time.Second, 5*time.Millisecond)

	price, ok := a.LatestPrice(" spy ")
	assert.True(t, ok)
	assert.Equal(t, "100", price.String())

	// watchlist edits flow into the watchlist and indicators pollers
	_, err = a.Watchlist.Add(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, a.WatchlistPoller.Params().Symbols)
	assert.Equal(t, poller.Params{Symbols: []string{"AAPL", "MSFT"}, Period: "3mo", Interval: "1d"}, a.IndicatorsPoller.Params())
	require.Eventually(t, func() bool {
		_, ok := a.WatchlistPoller.State().Data["MSFT"]
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// no screens configured, so nothing is fetched
	screens := a.LiveScreensPoller.State()
	assert.False(t, screens.Active)
	assert.Empty(t, screens.Data)
	assert.False(t, screens.Loading)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, poller.PhaseClosed, a.WatchlistPoller.State().Phase)
}

// go test -v --run TestAppFileStore
func TestAppFileStore(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Store = config.StoreConfig{Backend: "file", Dir: t.TempDir()}
	cfg.Resources.Watchlist.Symbols = nil

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, store.DefaultWatchlist, a.Watchlist.Symbols())
	a.shutdown()
}
