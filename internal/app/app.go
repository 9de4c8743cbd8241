// Package app wires the market-data client, pollers, stores and dashboard
// together from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"tradedash/config"
	"tradedash/internal/dashboard"
	"tradedash/internal/history"
	"tradedash/internal/poller"
	"tradedash/internal/resources"
	"tradedash/internal/retention"
	"tradedash/internal/store"
	"tradedash/pkg/marketdata"
	"tradedash/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg    *config.Config
	logger *zap.Logger

	client   *marketdata.Client
	postgres *postgres.PostgresClient
	recorder *history.Recorder
	purger   *retention.MidnightScheduler

	Watchlist *store.Watchlist
	Favorites *store.Favorites
	Paper     *store.PaperTrading

	WatchlistPoller   *poller.Poller[marketdata.Quote]
	MarketPulsePoller *poller.Poller[marketdata.Quote]
	IndicatorsPoller  *poller.Poller[marketdata.Indicators]
	LiveScreensPoller *poller.Poller[marketdata.Screen]

	hub          *dashboard.Hub
	server       *dashboard.Server
	storeBackend store.Backend
}

// Option overrides a dependency, mostly for tests.
type Option func(*App)

// WithStoreBackend replaces the backend chosen by store.backend.
func WithStoreBackend(b store.Backend) Option {
	return func(a *App) { a.storeBackend = b }
}

// New builds every component. Nothing is fetched until Run.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	a.client = marketdata.NewClient(cfg.Backend.URL,
		marketdata.WithLogger(logger),
		marketdata.WithHealthTimeout(cfg.Backend.HealthTimeout),
	)

	if cfg.Postgres.Enabled || cfg.Store.Backend == "postgres" {
		pg, err := postgres.InitializeAndMigrate(ctx, cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		a.postgres = pg
		a.recorder = history.NewRecorder(pg, logger)
		if cfg.Postgres.Retention > 0 {
			job := retention.PurgeOlderThan(cfg.Postgres.Retention, pg.DeleteQuotesBefore, logger)
			a.purger = retention.NewMidnightScheduler("quote_history", job, logger)
		}
	}

	if err := a.openStores(ctx); err != nil {
		a.closeDB()
		return nil, err
	}

	a.hub = dashboard.NewHub(logger)
	a.buildPollers()

	a.server = dashboard.NewServer(cfg.Dashboard.Addr, dashboard.Deps{
		Resources: []dashboard.Resource{
			dashboard.FromPoller(a.WatchlistPoller),
			dashboard.FromPoller(a.MarketPulsePoller),
			dashboard.FromPoller(a.IndicatorsPoller),
			dashboard.FromPoller(a.LiveScreensPoller),
		},
		Health:    a.client,
		Watchlist: a.Watchlist,
		Favorites: a.Favorites,
		Paper:     a.Paper,
		Prices:    a.LatestPrice,
		Hub:       a.hub,
	}, logger)

	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	backend := a.storeBackend
	if backend == nil {
		switch a.cfg.Store.Backend {
		case "memory":
			backend = store.NewMemoryBackend()
		case "postgres":
			backend = postgres.NewKVStore(a.postgres)
		default:
			backend = store.NewFileBackend(a.cfg.Store.Dir)
		}
	}

	seed := a.cfg.Resources.Watchlist.Symbols
	if len(seed) == 0 {
		seed = store.DefaultWatchlist
	}

	var err error
	if a.Watchlist, err = store.NewWatchlist(ctx, backend, seed, a.logger); err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	if a.Favorites, err = store.NewFavorites(ctx, backend, a.logger); err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	if a.Paper, err = store.NewPaperTrading(ctx, backend, a.logger); err != nil {
		return fmt.Errorf("load paper account: %w", err)
	}
	return nil
}

func (a *App) buildPollers() {
	rc := a.cfg.Resources
	pc := a.cfg.Poller

	a.WatchlistPoller = resources.NewWatchlist(a.client,
		resources.PollerConfig(pc, rc.Watchlist.PollingInterval), a.logger,
		poller.WithOnChange(a.quotesChanged(resources.Watchlist)))

	a.MarketPulsePoller = resources.NewMarketPulse(a.client,
		resources.PollerConfig(pc, rc.MarketPulse.PollingInterval), a.logger,
		poller.WithOnChange(a.quotesChanged(resources.MarketPulse)))

	a.IndicatorsPoller = resources.NewIndicators(a.client,
		resources.PollerConfig(pc, rc.Indicators.PollingInterval), rc.Indicators.Concurrency, a.logger,
		poller.WithOnChange(publish[marketdata.Indicators](a.hub, resources.Indicators)))

	a.LiveScreensPoller = resources.NewLiveScreens(a.client,
		resources.PollerConfig(pc, rc.LiveScreens.PollingInterval), a.logger,
		poller.WithOnChange(publish[marketdata.Screen](a.hub, resources.LiveScreens)))
}

func publish[T any](hub *dashboard.Hub, name string) func(poller.State[T]) {
	return func(s poller.State[T]) {
		hub.Broadcast(dashboard.NewEvent(dashboard.Topic(name), "update", s))
	}
}

func (a *App) quotesChanged(name string) func(poller.State[marketdata.Quote]) {
	push := publish[marketdata.Quote](a.hub, name)
	if a.recorder == nil {
		return push
	}
	record := a.recorder.Observe(name)
	return func(s poller.State[marketdata.Quote]) {
		push(s)
		record(s)
	}
}

// LatestPrice looks symbol up in the watchlist quotes, then the market pulse quotes.
func (a *App) LatestPrice(symbol string) (decimal.Decimal, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, p := range []*poller.Poller[marketdata.Quote]{a.WatchlistPoller, a.MarketPulsePoller} {
		if q, ok := p.State().Data[symbol]; ok {
			return q.Price, true
		}
	}
	return decimal.Decimal{}, false
}

func (a *App) indicatorParams(symbols []string) poller.Params {
	return poller.Params{
		Symbols:  symbols,
		Period:   a.cfg.Resources.Indicators.Period,
		Interval: a.cfg.Resources.Indicators.Interval,
	}
}

// start seeds parameters and visibility, then follows watchlist edits.
func (a *App) start() {
	rc := a.cfg.Resources

	a.Watchlist.OnChange(func(symbols []string) {
		a.WatchlistPoller.SetParams(poller.Params{Symbols: symbols})
		a.IndicatorsPoller.SetParams(a.indicatorParams(symbols))
	})

	symbols := a.Watchlist.Symbols()
	a.WatchlistPoller.SetParams(poller.Params{Symbols: symbols})
	a.MarketPulsePoller.SetParams(poller.Params{Symbols: resources.NormalizeSymbols(rc.MarketPulse.Symbols)})
	a.IndicatorsPoller.SetParams(a.indicatorParams(symbols))
	a.LiveScreensPoller.SetParams(poller.Params{Symbols: rc.LiveScreens.Symbols})

	a.WatchlistPoller.SetActive(rc.Watchlist.Active)
	a.MarketPulsePoller.SetActive(rc.MarketPulse.Active)
	a.IndicatorsPoller.SetActive(rc.Indicators.Active)
	a.LiveScreensPoller.SetActive(rc.LiveScreens.Active)
}

// Run starts polling and serving, and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		a.shutdown()
		a.closeDB()
		return fmt.Errorf("start dashboard: %w", err)
	}
	a.start()

	g, gctx := errgroup.WithContext(ctx)
	if a.recorder != nil {
		g.Go(func() error { return a.recorder.Run(gctx) })
	}
	if a.purger != nil {
		g.Go(func() error { return a.purger.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})

	err := g.Wait()
	a.closeDB()
	a.logger.Info("shutdown complete")
	return err
}

// shutdown stops serving and closes every poller.
func (a *App) shutdown() {
	if err := a.server.Stop(); err != nil {
		a.logger.Warn("dashboard shutdown", zap.Error(err))
	}

	var wg errgroup.Group
	wg.Go(func() error { a.WatchlistPoller.Close(); return nil })
	wg.Go(func() error { a.MarketPulsePoller.Close(); return nil })
	wg.Go(func() error { a.IndicatorsPoller.Close(); return nil })
	wg.Go(func() error { a.LiveScreensPoller.Close(); return nil })
	wg.Wait()
}

func (a *App) closeDB() {
	if a.postgres == nil {
		return
	}
	if err := a.postgres.Close(); err != nil {
		a.logger.Warn("failed to close DB", zap.Error(err))
	}
}
