package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a trade signal.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SetupType identifies which price-structure pattern produced a signal.
type SetupType string

const (
	SetupBreakoutRetest    SetupType = "Breakout Retest"
	SetupLiquiditySweep    SetupType = "Liquidity Sweep"
	SetupTrendContinuation SetupType = "Trend Continuation"
)

// Confidence is the tier assigned from the confluence count.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
)

// EntryZone is the low/high price band for entering a position.
type EntryZone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// MarketContext summarizes the state of the market at signal time,
// carried on the signal for notification formatting.
type MarketContext struct {
	TrendHTF        string  `json:"trend_htf"`
	Structure       string  `json:"structure"`
	VolumeChangePct float64 `json:"volume_change_pct"`
	RSI             float64 `json:"rsi"`
	ADX             float64 `json:"adx"`
}

// KeyLevels carries the reference levels around the signal entry.
type KeyLevels struct {
	PrevHigh   float64 `json:"prev_high"`
	PrevLow    float64 `json:"prev_low"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Signal is an actionable trade recommendation. It is immutable once
// emitted and consumed exactly once by the notification collaborator.
type Signal struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Side       Side          `json:"side"`
	SetupType  SetupType     `json:"setup_type"`
	Confidence Confidence    `json:"confidence"`
	EntryZone  EntryZone     `json:"entry_zone"`
	Stop       float64       `json:"stop"`
	Target1    float64       `json:"target1"`
	Target2    float64       `json:"target2"`
	RRRatio    float64       `json:"rr_ratio"`
	Confluence []string      `json:"confluence"`
	Context    MarketContext `json:"context"`
	Levels     KeyLevels     `json:"levels"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RiskResult holds the position-sizing output for one signal.
type RiskResult struct {
	RiskUSD            decimal.Decimal `json:"risk_usd"`
	PositionSizeUSD    decimal.Decimal `json:"position_size_usd"`
	SuggestedLeverage  int             `json:"suggested_leverage"`
	LiquidationPrice   float64         `json:"liquidation_price"`
	LiquidationWarning bool            `json:"liquidation_warning"`
}

// SweepSignal is the directional read of a liquidity sweep.
type SweepSignal string

const (
	SweepSignalLong  SweepSignal = "LONG"
	SweepSignalShort SweepSignal = "SHORT"
	SweepSignalBoth  SweepSignal = "BOTH"
)

// SweepResult reports whether a symbol's last bar swept a confirmed swing
// level. Timeframe is set when the result came from the deviation-candle
// detector, which scans a specific timeframe window.
type SweepResult struct {
	Symbol         string      `json:"symbol"`
	SweptSwingHigh bool        `json:"swept_swing_high"`
	SweptSwingLow  bool        `json:"swept_swing_low"`
	SwingHigh      float64     `json:"swing_high"`
	SwingLow       float64     `json:"swing_low"`
	Signal         SweepSignal `json:"signal"`
	Timeframe      string      `json:"timeframe,omitempty"`
	DeviationHigh  float64     `json:"deviation_high,omitempty"`
	DeviationLow   float64     `json:"deviation_low,omitempty"`
	LastClose      float64     `json:"last_close"`
}

// Swept reports whether either side was taken out.
func (r SweepResult) Swept() bool {
	return r.SweptSwingHigh || r.SweptSwingLow
}

// SignalStats aggregates emitted signal counts for reporting.
type SignalStats struct {
	Total   int            `json:"total"`
	BySide  map[string]int `json:"by_side"`
	BySetup map[string]int `json:"by_setup"`
}
