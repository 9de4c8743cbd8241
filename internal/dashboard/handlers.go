package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradedash/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const healthProbeTimeout = 3 * time.Second

func (s *Server) handleHealth(c *gin.Context) {
	backend := false
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		backend = s.deps.Health.Probe(ctx)
		cancel()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"uptime":            time.Since(s.startTime).String(),
		"backend_ready":     backend,
		"websocket_clients": s.deps.Hub.Clients(),
	})
}

func (s *Server) handleListResources(c *gin.Context) {
	out := make(map[string]any, len(s.resources))
	for name, r := range s.resources {
		out[name] = r.Snapshot()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) resource(c *gin.Context) (Resource, bool) {
	r, ok := s.resources[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown resource"})
	}
	return r, ok
}

func (s *Server) handleGetResource(c *gin.Context) {
	r, ok := s.resource(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

func (s *Server) handleSetActive(c *gin.Context) {
	r, ok := s.resource(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing active field"})
		return
	}
	r.SetActive(*req.Active)
	c.JSON(http.StatusOK, r.Snapshot())
}

func (s *Server) handleRefresh(c *gin.Context) {
	r, ok := s.resource(c)
	if !ok {
		return
	}
	r.Refresh()
	c.JSON(http.StatusAccepted, r.Snapshot())
}

func (s *Server) handleGetWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.deps.Watchlist.Symbols()})
}

func (s *Server) handleAddWatchlist(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing symbol field"})
		return
	}

	added, err := s.deps.Watchlist.Add(c.Request.Context(), req.Symbol)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.watchlistChanged(c, status)
}

func (s *Server) handleRemoveWatchlist(c *gin.Context) {
	removed, err := s.deps.Watchlist.Remove(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not in watchlist"})
		return
	}
	s.watchlistChanged(c, http.StatusOK)
}

func (s *Server) watchlistChanged(c *gin.Context, status int) {
	symbols := s.deps.Watchlist.Symbols()
	s.deps.Hub.Broadcast(NewEvent("watchlist", "update", symbols))
	c.JSON(status, gin.H{"symbols": symbols})
}

func (s *Server) handleGetFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"favorites": s.deps.Favorites.List()})
}

func (s *Server) handleToggleFavorite(c *gin.Context) {
	id := c.Param("id")
	on, err := s.deps.Favorites.Toggle(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "favorite": on})
}

type accountResponse struct {
	store.Account
	Equity decimal.Decimal `json:"equity"`
}

func (s *Server) accountView() accountResponse {
	acct := s.deps.Paper.Account()
	prices := make(map[string]decimal.Decimal, len(acct.Positions))
	for symbol := range acct.Positions {
		if p, ok := s.deps.Prices(symbol); ok {
			prices[symbol] = p
		}
	}
	return accountResponse{Account: acct, Equity: acct.Equity(prices)}
}

func (s *Server) handleGetAccount(c *gin.Context) {
	c.JSON(http.StatusOK, s.accountView())
}

type orderRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Side     store.Side      `json:"side" binding:"required,oneof=buy sell"`
	Quantity int64           `json:"quantity" binding:"required"`
	Price    decimal.Decimal `json:"price"` // zero fills at the latest polled price
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order: " + err.Error()})
		return
	}

	price := req.Price
	if price.IsZero() {
		p, ok := s.deps.Prices(req.Symbol)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no price available for " + req.Symbol})
			return
		}
		price = p
	}

	ctx := c.Request.Context()
	var (
		order store.Order
		err   error
	)
	if req.Side == store.SideBuy {
		order, err = s.deps.Paper.Buy(ctx, req.Symbol, req.Quantity, price)
	} else {
		order, err = s.deps.Paper.Sell(ctx, req.Symbol, req.Quantity, price)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	view := s.accountView()
	s.deps.Hub.Broadcast(NewEvent("paper", "update", view))
	c.JSON(http.StatusCreated, gin.H{"order": order, "account": view})
}

func (s *Server) handleResetAccount(c *gin.Context) {
	if err := s.deps.Paper.Reset(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	view := s.accountView()
	s.deps.Hub.Broadcast(NewEvent("paper", "update", view))
	c.JSON(http.StatusOK, view)
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidSymbol), errors.Is(err, store.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInsufficientFunds), errors.Is(err, store.ErrInsufficientShares):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
