package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const paperKey = "paper_trading"

// StartingCash is the balance of a new or reset paper account.
var StartingCash = decimal.NewFromInt(100_000)

var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Order struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
	FilledAt time.Time       `json:"filled_at"`
}

type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// CostBasis is what was paid for the shares still held.
func (p Position) CostBasis() decimal.Decimal {
	return p.AvgCost.Mul(decimal.NewFromInt(p.Quantity))
}

// Account is a snapshot of a paper trading account.
type Account struct {
	Cash      decimal.Decimal     `json:"cash"`
	Positions map[string]Position `json:"positions"`
	Orders    []Order             `json:"orders"` // oldest first
	CreatedAt time.Time           `json:"created_at"`
}

func newAccount(now time.Time) Account {
	return Account{
		Cash:      StartingCash,
		Positions: map[string]Position{},
		Orders:    []Order{},
		CreatedAt: now,
	}
}

func (a Account) clone() Account {
	a.Positions = maps.Clone(a.Positions)
	a.Orders = slices.Clone(a.Orders)
	return a
}

// Equity is cash plus positions marked at prices. Positions without a price
// are marked at cost.
func (a Account) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	total := a.Cash
	for symbol, pos := range a.Positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.AvgCost
		}
		total = total.Add(price.Mul(decimal.NewFromInt(pos.Quantity)))
	}
	return total
}

// PaperTrading simulates a cash brokerage account filled at caller-supplied prices.
type PaperTrading struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	account Account
}

func NewPaperTrading(ctx context.Context, backend Backend, logger *zap.Logger) (*PaperTrading, error) {
	p := &PaperTrading{
		backend: backend,
		logger:  logger.Named("paper"),
		now:     time.Now,
	}

	found, err := loadJSON(ctx, backend, paperKey, &p.account)
	if err != nil {
		return nil, err
	}
	if !found {
		p.account = newAccount(p.now())
	}
	if p.account.Positions == nil {
		p.account.Positions = map[string]Position{}
	}
	if p.account.Orders == nil {
		p.account.Orders = []Order{}
	}
	return p, nil
}

func (p *PaperTrading) Account() Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.account.clone()
}

func (p *PaperTrading) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	return p.Account().Equity(prices)
}

// Buy fills quantity shares of symbol at price.
func (p *PaperTrading) Buy(ctx context.Context, symbol string, quantity int64, price decimal.Decimal) (Order, error) {
	return p.place(ctx, SideBuy, symbol, quantity, price)
}

// Sell fills quantity shares of symbol at price.
func (p *PaperTrading) Sell(ctx context.Context, symbol string, quantity int64, price decimal.Decimal) (Order, error) {
	return p.place(ctx, SideSell, symbol, quantity, price)
}

func (p *PaperTrading) place(ctx context.Context, side Side, symbol string, quantity int64, price decimal.Decimal) (Order, error) {
	symbol = normalizeSymbol(symbol)
	switch {
	case symbol == "":
		return Order{}, fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	case quantity <= 0:
		return Order{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	case !price.IsPositive():
		return Order{}, fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	qty := decimal.NewFromInt(quantity)
	total := price.Mul(qty)
	next := p.account.clone()
	pos := next.Positions[symbol]
	pos.Symbol = symbol

	switch side {
	case SideBuy:
		if total.GreaterThan(next.Cash) {
			return Order{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, total.StringFixed(2), next.Cash.StringFixed(2))
		}
		held := decimal.NewFromInt(pos.Quantity)
		pos.AvgCost = pos.AvgCost.Mul(held).Add(total).Div(held.Add(qty))
		pos.Quantity += quantity
		next.Cash = next.Cash.Sub(total)
		next.Positions[symbol] = pos
	case SideSell:
		if quantity > pos.Quantity {
			return Order{}, fmt.Errorf("%w: selling %d %s, holding %d", ErrInsufficientShares, quantity, symbol, pos.Quantity)
		}
		pos.Quantity -= quantity
		next.Cash = next.Cash.Add(total)
		if pos.Quantity == 0 {
			delete(next.Positions, symbol)
		} else {
			next.Positions[symbol] = pos
		}
	default:
		return Order{}, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, side)
	}

	order := Order{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
		Total:    total,
		FilledAt: p.now().UTC(),
	}
	next.Orders = append(next.Orders, order)

	if err := saveJSON(ctx, p.backend, paperKey, next); err != nil {
		return Order{}, err
	}
	p.account = next

	p.logger.Info("paper order filled",
		zap.String("id", order.ID),
		zap.String("side", string(side)),
		zap.String("symbol", symbol),
		zap.Int64("quantity", quantity),
		zap.String("price", price.String()),
	)
	return order, nil
}

// Reset restores the starting cash and clears positions and orders.
func (p *PaperTrading) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := newAccount(p.now())
	if err := saveJSON(ctx, p.backend, paperKey, next); err != nil {
		return err
	}
	p.account = next
	p.logger.Info("paper account reset")
	return nil
}
