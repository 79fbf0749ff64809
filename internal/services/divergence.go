package services

import "math"

// DivergenceDetector compares the last two confirmed price pivots with
// the RSI values at those same bar indices.
type DivergenceDetector struct{}

func NewDivergenceDetector() *DivergenceDetector {
	return &DivergenceDetector{}
}

// Detect reports bullish divergence (price lower low, RSI higher low)
// and bearish divergence (price higher high, RSI lower high). The RSI
// series must be bar-aligned with the series the pivots came from.
func (dd *DivergenceDetector) Detect(highs, lows []Pivot, rsi []float64) (bullish, bearish bool) {
	if len(lows) >= 2 {
		p1, p2 := lows[len(lows)-2], lows[len(lows)-1]
		if r1, r2, ok := rsiAt(rsi, p1.Index, p2.Index); ok {
			bullish = p2.Price < p1.Price && r2 > r1
		}
	}
	if len(highs) >= 2 {
		p1, p2 := highs[len(highs)-2], highs[len(highs)-1]
		if r1, r2, ok := rsiAt(rsi, p1.Index, p2.Index); ok {
			bearish = p2.Price > p1.Price && r2 < r1
		}
	}
	return bullish, bearish
}

func rsiAt(rsi []float64, i, j int) (float64, float64, bool) {
	if i < 0 || j < 0 || i >= len(rsi) || j >= len(rsi) {
		return 0, 0, false
	}
	if math.IsNaN(rsi[i]) || math.IsNaN(rsi[j]) {
		return 0, 0, false
	}
	return rsi[i], rsi[j], true
}
