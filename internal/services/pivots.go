package services

import (
	"github.com/tradescan/perpsignal/internal/models"
)

// Pivot is a confirmed swing point.
type Pivot struct {
	Index int
	Price float64
}

// PivotDetector finds confirmed swing highs and lows. A pivot high at
// index i requires the high at i to be >= every high in the left window
// and >= every high in the right window; lows mirror with <=. The right
// window means the last bars of a series can never be pivots, so every
// reported swing is confirmed.
type PivotDetector struct {
	left      int
	right     int
	maxPivots int
}

// NewPivotDetector creates a detector with asymmetric windows. left and
// right must be positive.
func NewPivotDetector(left, right, maxPivots int) *PivotDetector {
	return &PivotDetector{left: left, right: right, maxPivots: maxPivots}
}

// Detect returns confirmed swing highs and lows in chronological order,
// truncated to the most recent maxPivots of each kind.
func (pd *PivotDetector) Detect(bars []models.Bar) (highs, lows []Pivot) {
	n := len(bars)
	for i := pd.left; i < n-pd.right; i++ {
		if pd.isPivotHigh(bars, i) {
			highs = append(highs, Pivot{Index: i, Price: bars[i].High})
		}
		if pd.isPivotLow(bars, i) {
			lows = append(lows, Pivot{Index: i, Price: bars[i].Low})
		}
	}
	if pd.maxPivots > 0 {
		if len(highs) > pd.maxPivots {
			highs = highs[len(highs)-pd.maxPivots:]
		}
		if len(lows) > pd.maxPivots {
			lows = lows[len(lows)-pd.maxPivots:]
		}
	}
	return highs, lows
}

func (pd *PivotDetector) isPivotHigh(bars []models.Bar, i int) bool {
	h := bars[i].High
	for j := i - pd.left; j < i; j++ {
		if bars[j].High > h {
			return false
		}
	}
	for j := i + 1; j <= i+pd.right; j++ {
		if bars[j].High > h {
			return false
		}
	}
	return true
}

func (pd *PivotDetector) isPivotLow(bars []models.Bar, i int) bool {
	l := bars[i].Low
	for j := i - pd.left; j < i; j++ {
		if bars[j].Low < l {
			return false
		}
	}
	for j := i + 1; j <= i+pd.right; j++ {
		if bars[j].Low < l {
			return false
		}
	}
	return true
}
