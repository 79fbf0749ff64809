package models

import (
	"time"
)

// Bar represents one closed OHLCV candle. Series are ordered by ascending
// UTC timestamp and treated as immutable once fetched.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Bullish reports whether the bar closed at or above its open.
func (b Bar) Bullish() bool {
	return b.Close >= b.Open
}

// Body returns the absolute open-to-close distance.
func (b Bar) Body() float64 {
	body := b.Close - b.Open
	if body < 0 {
		return -body
	}
	return body
}

// Range returns the high-to-low distance.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Mid returns the midpoint of the bar's range.
func (b Bar) Mid() float64 {
	return (b.High + b.Low) / 2
}

// Ticker represents a 24h ticker snapshot for one perpetual pair.
type Ticker struct {
	Symbol     string    `json:"symbol"`
	Last       float64   `json:"last"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Volume     float64   `json:"volume"`
	Percentage float64   `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

// SpreadPct returns the bid/ask spread as a percentage of the last price,
// or 0 when the ticker carries no usable quote.
func (t Ticker) SpreadPct() float64 {
	if t.Last <= 0 {
		return 0
	}
	return 100 * (t.Ask - t.Bid) / t.Last
}
