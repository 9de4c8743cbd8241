// Package dashboard serves the polled resources and the user's stores over
// HTTP, and pushes resource updates to websocket clients.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"tradedash/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HealthChecker reports whether the market-data backend is up.
type HealthChecker interface {
	Probe(ctx context.Context) bool
}

// PriceLookup returns the latest known price for symbol.
type PriceLookup func(symbol string) (decimal.Decimal, bool)

type Deps struct {
	Resources []Resource
	Health    HealthChecker
	Watchlist *store.Watchlist
	Favorites *store.Favorites
	Paper     *store.PaperTrading
	Prices    PriceLookup
	Hub       *Hub
}

// Server provides the dashboard HTTP API.
type Server struct {
	addr      string
	deps      Deps
	resources map[string]Resource
	logger    *zap.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:3001"
	}
	if deps.Prices == nil {
		deps.Prices = func(string) (decimal.Decimal, bool) { return decimal.Decimal{}, false }
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:      addr,
		deps:      deps,
		resources: make(map[string]Resource, len(deps.Resources)),
		logger:    logger.Named("dashboard"),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	for _, r := range deps.Resources {
		s.resources[r.Name()] = r
	}
	deps.Hub.SetCommandHandler(s.handleCommand)
	deps.Hub.SetSnapshot(s.snapshotEvents)
	return s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/api/health", s.handleHealth)

	r.GET("/api/resources", s.handleListResources)
	r.GET("/api/resources/:name", s.handleGetResource)
	r.PUT("/api/resources/:name/active", s.handleSetActive)
	r.POST("/api/resources/:name/refresh", s.handleRefresh)

	r.GET("/api/watchlist", s.handleGetWatchlist)
	r.POST("/api/watchlist", s.handleAddWatchlist)
	r.DELETE("/api/watchlist/:symbol", s.handleRemoveWatchlist)

	r.GET("/api/favorites", s.handleGetFavorites)
	r.POST("/api/favorites/:id", s.handleToggleFavorite)

	r.GET("/api/paper/account", s.handleGetAccount)
	r.POST("/api/paper/orders", s.handlePlaceOrder)
	r.POST("/api/paper/reset", s.handleResetAccount)

	r.GET("/ws", gin.WrapH(s.deps.Hub))
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	s.logger.Info("dashboard listening", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dashboard server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	s.deps.Hub.Close()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Publish pushes a resource state to websocket clients.
func (s *Server) Publish(resource string, state any) {
	s.deps.Hub.Broadcast(NewEvent(Topic(resource), "update", state))
}

func (s *Server) snapshotEvents() []Event {
	events := make([]Event, 0, len(s.resources)+1)
	for _, name := range s.resourceNames() {
		events = append(events, NewEvent(Topic(name), "snapshot", s.resources[name].Snapshot()))
	}
	if s.deps.Watchlist != nil {
		events = append(events, NewEvent("watchlist", "snapshot", s.deps.Watchlist.Symbols()))
	}
	return events
}

func (s *Server) handleCommand(cmd Command) {
	for _, arg := range cmd.Args {
		r, ok := s.resources[resourceFromTopic(arg)]
		if !ok {
			s.logger.Debug("command for unknown resource", zap.String("arg", arg))
			continue
		}
		switch cmd.Op {
		case "active":
			r.SetActive(cmd.Active)
		case "refresh":
			r.Refresh()
		default:
			s.logger.Debug("unknown command", zap.String("op", cmd.Op))
			return
		}
	}
}

func (s *Server) resourceNames() []string {
	names := make([]string, 0, len(s.resources))
	for name := range s.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
