// Package resources binds the generic poller to each market-data endpoint.
// Every wrapper is configuration only: a fetch function, default params
// and the shared retry policy.
package resources

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradedash/config"
	"tradedash/internal/poller"
	"tradedash/pkg/marketdata"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	Watchlist   = "watchlist"
	MarketPulse = "market_pulse"
	Indicators  = "indicators"
	LiveScreens = "live_screens"
)

// Source is the subset of the market-data client the pollers need.
type Source interface {
	poller.Prober
	GetQuotes(ctx context.Context, tickers []string) (map[string]marketdata.Quote, error)
	GetIndicators(ctx context.Context, symbol string, period marketdata.Period, interval marketdata.Interval) (marketdata.Indicators, error)
	GetLiveScreens(ctx context.Context, screens []string) (map[string]marketdata.Screen, error)
}

// PollerConfig merges the shared poller settings with one resource's cadence.
func PollerConfig(cfg config.PollerConfig, pollingInterval time.Duration) poller.Config {
	return poller.Config{
		PollingInterval: pollingInterval,
		InitialTimeout:  cfg.InitialTimeout,
		RetryTimeout:    cfg.RetryTimeout,
		Retry: poller.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
	}
}

// NormalizeSymbols upper-cases, trims and de-duplicates tickers, keeping order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// NewWatchlist polls bulk quotes for the user's watchlist symbols.
func NewWatchlist(src Source, cfg poller.Config, logger *zap.Logger, opts ...poller.Option[marketdata.Quote]) *poller.Poller[marketdata.Quote] {
	return poller.New(Watchlist, cfg, src, quotesFetch(src), logger, opts...)
}

// NewMarketPulse polls bulk quotes for the index basket shown in the market pulse view.
func NewMarketPulse(src Source, cfg poller.Config, logger *zap.Logger, opts ...poller.Option[marketdata.Quote]) *poller.Poller[marketdata.Quote] {
	return poller.New(MarketPulse, cfg, src, quotesFetch(src), logger, opts...)
}

// NewLiveScreens polls curated screens; Params.Symbols holds screen ids.
func NewLiveScreens(src Source, cfg poller.Config, logger *zap.Logger, opts ...poller.Option[marketdata.Screen]) *poller.Poller[marketdata.Screen] {
	fetch := func(ctx context.Context, params poller.Params) (map[string]marketdata.Screen, error) {
		return src.GetLiveScreens(ctx, params.Symbols)
	}
	return poller.New(LiveScreens, cfg, src, fetch, logger, opts...)
}

// NewIndicators polls technical indicators, one request per symbol with at
// most workers requests in flight. Any symbol failing fails the whole fetch.
func NewIndicators(src Source, cfg poller.Config, workers int, logger *zap.Logger, opts ...poller.Option[marketdata.Indicators]) *poller.Poller[marketdata.Indicators] {
	if workers < 1 {
		workers = 1
	}

	fetch := func(ctx context.Context, params poller.Params) (map[string]marketdata.Indicators, error) {
		period, err := marketdata.ParsePeriod(params.Period)
		if err != nil {
			return nil, err
		}
		interval, err := marketdata.ParseInterval(params.Interval)
		if err != nil {
			return nil, err
		}

		var mu sync.Mutex
		out := make(map[string]marketdata.Indicators, len(params.Symbols))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, symbol := range params.Symbols {
			g.Go(func() error {
				ind, err := src.GetIndicators(gctx, symbol, period, interval)
				if err != nil {
					return fmt.Errorf("indicators %s: %w", symbol, err)
				}
				mu.Lock()
				out[symbol] = ind
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}

	return poller.New(Indicators, cfg, src, fetch, logger, opts...)
}

func quotesFetch(src Source) poller.FetchFunc[marketdata.Quote] {
	return func(ctx context.Context, params poller.Params) (map[string]marketdata.Quote, error) {
		return src.GetQuotes(ctx, params.Symbols)
	}
}
