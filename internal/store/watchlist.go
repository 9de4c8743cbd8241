package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const watchlistKey = "watchlist"

// DefaultWatchlist seeds a watchlist that has never been saved.
var DefaultWatchlist = []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"}

var ErrInvalidSymbol = errors.New("invalid symbol")

type watchlistDoc struct {
	Symbols []string `json:"symbols"`
}

// Watchlist is an ordered set of upper-cased ticker symbols.
type Watchlist struct {
	backend Backend
	logger  *zap.Logger

	mu        sync.Mutex
	symbols   []string
	listeners []func([]string)
}

// NewWatchlist loads the saved watchlist, falling back to seed when none exists.
func NewWatchlist(ctx context.Context, backend Backend, seed []string, logger *zap.Logger) (*Watchlist, error) {
	w := &Watchlist{
		backend: backend,
		logger:  logger.Named("watchlist"),
	}

	var doc watchlistDoc
	found, err := loadJSON(ctx, backend, watchlistKey, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		doc.Symbols = seed
	}
	for _, s := range doc.Symbols {
		if s = normalizeSymbol(s); s != "" && !slices.Contains(w.symbols, s) {
			w.symbols = append(w.symbols, s)
		}
	}
	w.logger.Info("watchlist loaded", zap.Strings("symbols", w.symbols), zap.Bool("persisted", found))
	return w, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// OnChange registers fn to receive the new symbol list after every change.
func (w *Watchlist) OnChange(fn func([]string)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watchlist) Symbols() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.symbols)
}

func (w *Watchlist) Contains(symbol string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Contains(w.symbols, normalizeSymbol(symbol))
}

// Add appends symbol. It reports false if the symbol was already present.
func (w *Watchlist) Add(ctx context.Context, symbol string) (bool, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" || strings.ContainsAny(symbol, ", /") {
		return false, ErrInvalidSymbol
	}

	return w.update(ctx, func(cur []string) ([]string, bool) {
		if slices.Contains(cur, symbol) {
			return cur, false
		}
		return append(slices.Clone(cur), symbol), true
	})
}

// Remove drops symbol. It reports false if the symbol was not present.
func (w *Watchlist) Remove(ctx context.Context, symbol string) (bool, error) {
	symbol = normalizeSymbol(symbol)

	return w.update(ctx, func(cur []string) ([]string, bool) {
		i := slices.Index(cur, symbol)
		if i < 0 {
			return cur, false
		}
		return slices.Delete(slices.Clone(cur), i, i+1), true
	})
}

func (w *Watchlist) update(ctx context.Context, fn func([]string) ([]string, bool)) (bool, error) {
	w.mu.Lock()
	next, changed := fn(w.symbols)
	if !changed {
		w.mu.Unlock()
		return false, nil
	}
	if err := saveJSON(ctx, w.backend, watchlistKey, watchlistDoc{Symbols: next}); err != nil {
		w.mu.Unlock()
		return false, err
	}
	w.symbols = next
	listeners := slices.Clone(w.listeners)
	snapshot := slices.Clone(next)
	w.mu.Unlock()

	for _, l := range listeners {
		l(slices.Clone(snapshot))
	}
	return true, nil
}
