package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradescan/perpsignal/internal/config"
)

func testClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient(config.ExchangeConfig{ServiceURL: baseURL, Timeout: 5}, logger)
}

func TestFetchBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ohlcv", r.URL.Path)
		assert.Equal(t, "BTC/USDT:USDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "4h", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"symbol": "BTC/USDT:USDT",
			"timeframe": "4h",
			"ohlcv": [
				[1767225600000, 100.0, 101.5, 99.5, 101.0, 1200.0],
				[1767240000000, 101.0, 102.0, 100.8, 101.8, 900.0]
			]
		}`))
	}))
	defer srv.Close()

	bars, err := testClient(srv.URL).FetchBars(context.Background(), "BTC/USDT:USDT", "4h", 200)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 101.5, bars[0].High)
	assert.Equal(t, 99.5, bars[0].Low)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 1200.0, bars[0].Volume)
	assert.Equal(t, 101.8, bars[1].Close)
}

func TestFetchBarsEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"symbol": "NEW/USDT:USDT", "timeframe": "4h", "ohlcv": []}`))
	}))
	defer srv.Close()

	bars, err := testClient(srv.URL).FetchBars(context.Background(), "NEW/USDT:USDT", "4h", 200)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ticker", r.URL.Path)
		w.Write([]byte(`{
			"symbol": "ETH/USDT:USDT",
			"last": 2500.5,
			"bid": 2500.4,
			"ask": 2500.6,
			"quoteVolume": 1500000,
			"percentage": -3.2,
			"timestamp": 1767225600000
		}`))
	}))
	defer srv.Close()

	ticker, err := testClient(srv.URL).FetchTicker(context.Background(), "ETH/USDT:USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT:USDT", ticker.Symbol)
	assert.Equal(t, 2500.5, ticker.Last)
	assert.Equal(t, 1500000.0, ticker.Volume)
	assert.Equal(t, -3.2, ticker.Percentage)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), ticker.Timestamp)
}

func TestFetchMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/markets", r.URL.Path)
		w.Write([]byte(`{"symbols": ["BTC/USDT:USDT", "ETH/USDT:USDT"]}`))
	}))
	defer srv.Close()

	symbols, err := testClient(srv.URL).FetchMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT:USDT", "ETH/USDT:USDT"}, symbols)
}

func TestErrorResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error": "exchange timeout"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchBars(context.Background(), "BTC/USDT:USDT", "4h", 200)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "exchange timeout")
}

func TestErrorResponseRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchMarkets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	assert.NoError(t, testClient(srv.URL).HealthCheck(context.Background()))
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	c := testClient("http://localhost:9000/")
	assert.Equal(t, "http://localhost:9000", c.BaseURL)
}
