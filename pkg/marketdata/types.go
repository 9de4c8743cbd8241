package marketdata

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest price snapshot for one ticker, keyed by ticker in the
// bulk market-data response.
type Quote struct {
	Symbol        string               `json:"symbol"`
	Name          string               `json:"name,omitempty"`
	Price         decimal.Decimal      `json:"price"`
	Change        decimal.Decimal      `json:"change"`
	ChangePercent decimal.Decimal      `json:"change_percent"`
	Volume        int64                `json:"volume"`
	Timeframes    map[string]Timeframe `json:"timeframes,omitempty"` // e.g. "1D", "5D", "1M"
}

// Timeframe is the performance of a ticker over one lookback window.
type Timeframe struct {
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Closes        []float64       `json:"closes,omitempty"` // sparkline points, oldest first
}

// Indicators holds technical indicator series for one symbol. All series
// are aligned to the tail of Closes.
type Indicators struct {
	Symbol        string    `json:"symbol"`
	Period        Period    `json:"period"`
	Interval      Interval  `json:"interval"`
	Closes        []float64 `json:"closes"`
	RSI           []float64 `json:"rsi"`
	MACDHistogram []float64 `json:"macd_histogram"`
}

// LatestRSI returns the most recent RSI value, if any.
func (i Indicators) LatestRSI() (float64, bool) {
	if len(i.RSI) == 0 {
		return 0, false
	}
	return i.RSI[len(i.RSI)-1], true
}

// LatestMACDHistogram returns the most recent MACD histogram bar, if any.
func (i Indicators) LatestMACDHistogram() (float64, bool) {
	if len(i.MACDHistogram) == 0 {
		return 0, false
	}
	return i.MACDHistogram[len(i.MACDHistogram)-1], true
}

func (i Indicators) Validate() error {
	if i.Symbol == "" {
		return errors.New("symbol is required")
	}
	if len(i.Closes) == 0 {
		return errors.New("closes is empty")
	}
	if len(i.RSI) > len(i.Closes) {
		return fmt.Errorf("rsi has %d points for %d closes", len(i.RSI), len(i.Closes))
	}
	if len(i.MACDHistogram) > len(i.Closes) {
		return fmt.Errorf("macd_histogram has %d points for %d closes", len(i.MACDHistogram), len(i.Closes))
	}
	return nil
}

// Screen is one curated stock screen, e.g. "day_gainers".
type Screen struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Stocks      []ScreenStock `json:"stocks"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ScreenStock struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name,omitempty"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        float64         `json:"volume"`
}

func (s Screen) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	for i, stock := range s.Stocks {
		if stock.Symbol == "" {
			return fmt.Errorf("stocks[%d]: symbol is required", i)
		}
	}
	return nil
}
