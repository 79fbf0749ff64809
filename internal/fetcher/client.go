package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// Client talks to the market-data service over HTTP. OHLCV rows come
// back in ccxt array form: [timestamp_ms, open, high, low, close, volume].
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	logger     *logrus.Logger
}

func NewClient(cfg config.ExchangeConfig, logger *logrus.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimSuffix(cfg.ServiceURL, "/"),
		logger:     logger,
	}
}

type ohlcvResponse struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	OHLCV     [][6]float64 `json:"ohlcv"`
}

type tickerResponse struct {
	Symbol     string  `json:"symbol"`
	Last       float64 `json:"last"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	QuoteVol   float64 `json:"quoteVolume"`
	Percentage float64 `json:"percentage"`
	Timestamp  int64   `json:"timestamp"`
}

type marketsResponse struct {
	Symbols []string `json:"symbols"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// FetchBars returns up to limit closed bars for the symbol, oldest
// first.
func (c *Client) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	var resp ohlcvResponse
	if err := c.getJSON(ctx, "/api/ohlcv?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	bars := make([]models.Bar, 0, len(resp.OHLCV))
	for _, row := range resp.OHLCV {
		bars = append(bars, models.Bar{
			Timestamp: time.UnixMilli(int64(row[0])).UTC(),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
			Volume:    row[5],
		})
	}
	return bars, nil
}

// FetchTicker returns the current ticker for the symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var resp tickerResponse
	if err := c.getJSON(ctx, "/api/ticker?"+q.Encode(), &resp); err != nil {
		return models.Ticker{}, err
	}
	return models.Ticker{
		Symbol:     resp.Symbol,
		Last:       resp.Last,
		Bid:        resp.Bid,
		Ask:        resp.Ask,
		Volume:     resp.QuoteVol,
		Percentage: resp.Percentage,
		Timestamp:  time.UnixMilli(resp.Timestamp).UTC(),
	}, nil
}

// FetchMarkets returns the tradeable perpetual symbols.
func (c *Client) FetchMarkets(ctx context.Context) ([]string, error) {
	var resp marketsResponse
	if err := c.getJSON(ctx, "/api/markets", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// HealthCheck verifies the data service responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.getJSON(ctx, "/health", nil)
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("error closing response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("data service error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("data service error (%d): %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
