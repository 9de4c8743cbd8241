package marketdata

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// quoteWire mirrors Quote with nullable fields so missing values can be
// told apart from zero.
type quoteWire struct {
	Symbol        string                   `json:"symbol"`
	Name          string                   `json:"name"`
	Price         decimal.NullDecimal      `json:"price"`
	Change        decimal.NullDecimal      `json:"change"`
	ChangePercent decimal.NullDecimal      `json:"change_percent"`
	Volume        *float64                 `json:"volume"`
	Timeframes    map[string]timeframeWire `json:"timeframes"`
}

type timeframeWire struct {
	Change        decimal.NullDecimal `json:"change"`
	ChangePercent decimal.NullDecimal `json:"change_percent"`
	Closes        []float64           `json:"closes"`
}

func (w quoteWire) toQuote(key string) (Quote, error) {
	symbol := strings.ToUpper(strings.TrimSpace(key))
	if symbol == "" {
		return Quote{}, errors.New("empty ticker key")
	}
	if w.Symbol != "" && !strings.EqualFold(w.Symbol, symbol) {
		return Quote{}, fmt.Errorf("symbol %q under key %q", w.Symbol, key)
	}
	if !w.Price.Valid {
		return Quote{}, errors.New("price is required")
	}
	if w.Price.Decimal.IsNegative() {
		return Quote{}, fmt.Errorf("negative price %s", w.Price.Decimal)
	}

	q := Quote{
		Symbol:        symbol,
		Name:          w.Name,
		Price:         w.Price.Decimal,
		Change:        w.Change.Decimal,
		ChangePercent: w.ChangePercent.Decimal,
	}
	if w.Volume != nil {
		v := *w.Volume
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return Quote{}, fmt.Errorf("non-finite volume %v", v)
		case v < 0:
			return Quote{}, fmt.Errorf("negative volume %v", v)
		case v >= math.MaxInt64:
			return Quote{}, fmt.Errorf("volume %v out of range", v)
		}
		q.Volume = int64(v)
	}
	if len(w.Timeframes) > 0 {
		q.Timeframes = make(map[string]Timeframe, len(w.Timeframes))
		for name, tf := range w.Timeframes {
			q.Timeframes[name] = Timeframe{
				Change:        tf.Change.Decimal,
				ChangePercent: tf.ChangePercent.Decimal,
				Closes:        tf.Closes,
			}
		}
	}
	return q, nil
}

// decodeQuotes parses the bulk market-data body: an object keyed by ticker.
func decodeQuotes(body []byte) (map[string]Quote, error) {
	var raw map[string]quoteWire
	if err := sonic.ConfigStd.Unmarshal(body, &raw); err != nil {
		return nil, parseError("quotes", err)
	}
	if raw == nil {
		return nil, parseError("quotes", errors.New("body is not an object"))
	}

	out := make(map[string]Quote, len(raw))
	for key, w := range raw {
		q, err := w.toQuote(key)
		if err != nil {
			return nil, parseError("quote "+key, err)
		}
		out[q.Symbol] = q
	}
	return out, nil
}

func decodeIndicators(body []byte, symbol string) (Indicators, error) {
	var ind Indicators
	if err := sonic.ConfigStd.Unmarshal(body, &ind); err != nil {
		return Indicators{}, parseError("indicators "+symbol, err)
	}
	if ind.Symbol == "" {
		ind.Symbol = symbol
	}
	if !strings.EqualFold(ind.Symbol, symbol) {
		return Indicators{}, parseError("indicators "+symbol, fmt.Errorf("got symbol %q", ind.Symbol))
	}
	ind.Symbol = strings.ToUpper(ind.Symbol)
	if err := ind.Validate(); err != nil {
		return Indicators{}, parseError("indicators "+symbol, err)
	}
	return ind, nil
}

// decodeScreens parses the live-screens body: an object keyed by screen id.
func decodeScreens(body []byte) (map[string]Screen, error) {
	var raw map[string]Screen
	if err := sonic.ConfigStd.Unmarshal(body, &raw); err != nil {
		return nil, parseError("live screens", err)
	}
	if raw == nil {
		return nil, parseError("live screens", errors.New("body is not an object"))
	}

	for id, s := range raw {
		if s.ID == "" {
			s.ID = id
		}
		if err := s.Validate(); err != nil {
			return nil, parseError("screen "+id, err)
		}
		raw[id] = s
	}
	return raw, nil
}
