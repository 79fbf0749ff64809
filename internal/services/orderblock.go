package services

import (
	"github.com/tradescan/perpsignal/internal/models"
)

const (
	orderBlockLookback = 20
	orderBlockMeanBars = 10
	orderBlockBodyMult = 1.5
)

// OrderBlock is the zone of the last opposite-direction candle before an
// outsized move.
type OrderBlock struct {
	Low     float64
	High    float64
	Index   int
	Bullish bool
}

// Contains reports whether a price sits inside the zone.
func (ob *OrderBlock) Contains(price float64) bool {
	return price >= ob.Low && price <= ob.High
}

// OrderBlockDetector scans backward for displacement candles preceded by
// an opposite-color bar. The displacement body must exceed a multiple of
// the mean body over the preceding bars for the pair to qualify.
type OrderBlockDetector struct{}

func NewOrderBlockDetector() *OrderBlockDetector {
	return &OrderBlockDetector{}
}

// Detect returns the most recent bullish and bearish order blocks within
// the lookback window, either possibly nil.
func (od *OrderBlockDetector) Detect(bars []models.Bar) (bullish, bearish *OrderBlock) {
	n := len(bars)
	start := n - orderBlockLookback
	if start < orderBlockMeanBars+1 {
		start = orderBlockMeanBars + 1
	}
	for i := n - 1; i >= start; i-- {
		prev := bars[i-1]
		cur := bars[i]
		mean := meanBody(bars[i-1-orderBlockMeanBars : i-1])
		if mean <= 0 || cur.Body() < orderBlockBodyMult*mean {
			continue
		}
		if bullish == nil && !prev.Bullish() && cur.Close > prev.High {
			bullish = &OrderBlock{Low: prev.Low, High: prev.High, Index: i - 1, Bullish: true}
		}
		if bearish == nil && prev.Bullish() && cur.Close < prev.Low {
			bearish = &OrderBlock{Low: prev.Low, High: prev.High, Index: i - 1, Bullish: false}
		}
		if bullish != nil && bearish != nil {
			break
		}
	}
	return bullish, bearish
}

func meanBody(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Body()
	}
	return sum / float64(len(bars))
}
