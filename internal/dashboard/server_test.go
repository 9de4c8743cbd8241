package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tradedash/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResource struct {
	name string

	mu        sync.Mutex
	active    bool
	refreshes int
}

func (f *fakeResource) Name() string { return f.name }

func (f *fakeResource) Snapshot() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]any{"active": f.active, "refreshes": f.refreshes}
}

func (f *fakeResource) SetActive(active bool) {
	f.mu.Lock()
	f.active = active
	f.mu.Unlock()
}

func (f *fakeResource) Refresh() {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
}

func (f *fakeResource) state() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.refreshes
}

type probe bool

func (p probe) Probe(context.Context) bool { return bool(p) }

type fixture struct {
	srv       *Server
	handler   http.Handler
	watchlist *fakeResource
	paper     *store.PaperTrading
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	backend := store.NewMemoryBackend()

	wl, err := store.NewWatchlist(ctx, backend, []string{"AAPL"}, logger)
	require.NoError(t, err)
	fav, err := store.NewFavorites(ctx, backend, logger)
	require.NoError(t, err)
	paper, err := store.NewPaperTrading(ctx, backend, logger)
	require.NoError(t, err)

	res := &fakeResource{name: "watchlist", active: true}
	prices := map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(200)}

	srv := NewServer("", Deps{
		Resources: []Resource{res, &fakeResource{name: "market_pulse"}},
		Health:    probe(true),
		Watchlist: wl,
		Favorites: fav,
		Paper:     paper,
		Prices: func(symbol string) (decimal.Decimal, bool) {
			p, ok := prices[symbol]
			return p, ok
		},
	}, logger)

	return &fixture{srv: srv, handler: srv.Handler(), watchlist: res, paper: paper}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

// go test -v --run TestHealthEndpoint
func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["backend_ready"])
}

// go test -v --run TestResourceEndpoints
func TestResourceEndpoints(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/resources", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "watchlist")
	assert.Contains(t, body, "market_pulse")

	w, _ = f.do(t, http.MethodGet, "/api/resources/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/resources/watchlist/active", `{"active": false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	active, _ := f.watchlist.state()
	assert.False(t, active)

	w, _ = f.do(t, http.MethodPut, "/api/resources/watchlist/active", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = f.do(t, http.MethodPost, "/api/resources/watchlist/refresh", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, float64(1), body["refreshes"])
}

// go test -v --run TestWatchlistEndpoints
func TestWatchlistEndpoints(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/watchlist", `{"symbol": "msft"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []any{"AAPL", "MSFT"}, body["symbols"])

	w, _ = f.do(t, http.MethodPost, "/api/watchlist", `{"symbol": "MSFT"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/watchlist", `{"symbol": "A,B"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = f.do(t, http.MethodDelete, "/api/watchlist/aapl", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"MSFT"}, body["symbols"])

	w, _ = f.do(t, http.MethodDelete, "/api/watchlist/AAPL", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = f.do(t, http.MethodGet, "/api/watchlist", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"MSFT"}, body["symbols"])
}

// go test -v --run TestFavoritesEndpoints
func TestFavoritesEndpoints(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/favorites/day_gainers", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["favorite"])

	_, body = f.do(t, http.MethodGet, "/api/favorites", "")
	assert.Equal(t, []any{"day_gainers"}, body["favorites"])

	_, body = f.do(t, http.MethodPost, "/api/favorites/day_gainers", "")
	assert.Equal(t, false, body["favorite"])
}

// go test -v --run TestPaperEndpoints
func TestPaperEndpoints(t *testing.T) {
	f := newFixture(t)

	// no price given: fills at the polled price
	w, body := f.do(t, http.MethodPost, "/api/paper/orders", `{"symbol": "AAPL", "side": "buy", "quantity": 10}`)
	require.Equal(t, http.StatusCreated, w.Code, body)
	order := body["order"].(map[string]any)
	assert.Equal(t, "200", order["price"])

	w, _ = f.do(t, http.MethodPost, "/api/paper/orders", `{"symbol": "TSLA", "side": "buy", "quantity": 1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "no polled price for TSLA")

	w, _ = f.do(t, http.MethodPost, "/api/paper/orders", `{"symbol": "TSLA", "side": "buy", "quantity": 1, "price": "250.5"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/paper/orders", `{"symbol": "AAPL", "side": "sell", "quantity": 11}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/paper/orders", `{"symbol": "AAPL", "side": "short", "quantity": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/paper/orders", `{"symbol": "AAPL", "side": "buy", "quantity": -3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = f.do(t, http.MethodGet, "/api/paper/account", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "97749.5", body["cash"])
	// AAPL marked at 200, TSLA at cost
	assert.Equal(t, "100000", body["equity"])

	w, body = f.do(t, http.MethodPost, "/api/paper/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100000", body["cash"])
	assert.Empty(t, f.paper.Account().Orders)
}

// go test -v --run TestWebsocketSnapshotAndCommands
func TestWebsocketSnapshotAndCommands(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)
	t.Cleanup(func() { f.srv.Stop() })

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Event {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	// sorted resources, then the watchlist
	topics := []string{read().Topic, read().Topic, read().Topic}
	assert.Equal(t, []string{"resource.market_pulse", "resource.watchlist", "watchlist"}, topics)

	require.NoError(t, conn.WriteJSON(Command{Op: "active", Args: []string{"resource.watchlist"}, Active: false}))
	require.NoError(t, conn.WriteJSON(Command{Op: "refresh", Args: []string{"watchlist", "unknown"}}))
	require.Eventually(t, func() bool {
		active, refreshes := f.watchlist.state()
		return !active && refreshes == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return f.srv.deps.Hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	f.srv.Publish("watchlist", map[string]int{"version": 7})
	ev := read()
	assert.Equal(t, "resource.watchlist", ev.Topic)
	assert.Equal(t, "update", ev.Type)
	assert.Equal(t, map[string]any{"version": float64(7)}, ev.Data)
}
