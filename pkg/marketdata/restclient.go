package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	healthPath      = "/api/market-data/health/"
	quotesPath      = "/api/market-data/"
	indicatorsPath  = "/api/market-data/indicators/%s/"
	liveScreensPath = "/api/market-data/live-screens/"

	defaultHealthTimeout = 3 * time.Second
)

// Client reads from the market-data backend. All endpoints are read-only.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
	logger        *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the backend at baseURL
// (e.g. "http://127.0.0.1:8000"). Per-request deadlines come from the
// caller's context; the http.Client timeout is only an outer ceiling.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
		healthTimeout: defaultHealthTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHealthTimeout overrides the 3s liveness probe timeout.
func WithHealthTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.healthTimeout = d
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Probe reports whether the backend answers its health endpoint with a 2xx
// inside the health timeout. It never returns an error: network failures,
// timeouts and non-2xx statuses all read as false.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("health probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		c.logger.Debug("health probe non-2xx", zap.Int("status", resp.StatusCode))
	}
	return ok
}

// GetQuotes fetches bulk quote and timeframe data for the given tickers.
func (c *Client) GetQuotes(ctx context.Context, tickers []string) (map[string]Quote, error) {
	if len(tickers) == 0 {
		return map[string]Quote{}, nil
	}

	query := url.Values{}
	query.Set("tickers", strings.Join(tickers, ","))

	body, err := c.get(ctx, quotesPath, query)
	if err != nil {
		return nil, err
	}
	return decodeQuotes(body)
}

// GetIndicators fetches RSI, MACD histogram and closes for one symbol.
func (c *Client) GetIndicators(ctx context.Context, symbol string, period Period, interval Interval) (Indicators, error) {
	if !period.IsValid() {
		return Indicators{}, fmt.Errorf("invalid period: %q", period)
	}
	if !interval.IsValid() {
		return Indicators{}, fmt.Errorf("invalid interval: %q", interval)
	}

	query := url.Values{}
	query.Set("period", string(period))
	query.Set("interval", string(interval))
	query.Set("indicator", "ALL")

	body, err := c.get(ctx, fmt.Sprintf(indicatorsPath, url.PathEscape(symbol)), query)
	if err != nil {
		return Indicators{}, err
	}
	return decodeIndicators(body, symbol)
}

// GetLiveScreens fetches curated screen results keyed by screen id.
func (c *Client) GetLiveScreens(ctx context.Context, screens []string) (map[string]Screen, error) {
	if len(screens) == 0 {
		return map[string]Screen{}, nil
	}

	query := url.Values{}
	query.Set("screens", strings.Join(screens, ","))

	body, err := c.get(ctx, liveScreensPath, query)
	if err != nil {
		return nil, err
	}
	return decodeScreens(body)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		// keep commas readable; the backend splits on them
		endpoint += "?" + strings.ReplaceAll(query.Encode(), "%2C", ",")
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("market-data request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, body)
	}
	return body, nil
}
