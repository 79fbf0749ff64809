package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func flatRSI(n int, def float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = def
	}
	return out
}

func TestBullishDivergence(t *testing.T) {
	rsi := flatRSI(60, 50)
	rsi[27] = 28
	rsi[41] = 35 // RSI higher low

	lows := []Pivot{{27, 98}, {41, 96}} // price lower low
	highs := []Pivot{{20, 110}, {34, 112}}

	dd := NewDivergenceDetector()
	bullish, bearish := dd.Detect(highs, lows, rsi)
	assert.True(t, bullish)
	assert.False(t, bearish)
}

func TestBearishDivergence(t *testing.T) {
	rsi := flatRSI(60, 50)
	rsi[20] = 75
	rsi[34] = 68 // RSI lower high

	highs := []Pivot{{20, 110}, {34, 115}} // price higher high
	lows := []Pivot{{27, 98}, {41, 100}}

	dd := NewDivergenceDetector()
	bullish, bearish := dd.Detect(highs, lows, rsi)
	assert.False(t, bullish)
	assert.True(t, bearish)
}

func TestNoDivergenceWhenAligned(t *testing.T) {
	rsi := flatRSI(60, 50)
	rsi[27] = 30
	rsi[41] = 25 // RSI confirms the lower low

	lows := []Pivot{{27, 98}, {41, 96}}
	dd := NewDivergenceDetector()
	bullish, _ := dd.Detect(nil, lows, rsi)
	assert.False(t, bullish)
}

func TestDivergenceSkipsUndefinedRSI(t *testing.T) {
	rsi := flatRSI(60, 50)
	rsi[27] = math.NaN()

	lows := []Pivot{{27, 98}, {41, 96}}
	dd := NewDivergenceDetector()
	bullish, _ := dd.Detect(nil, lows, rsi)
	assert.False(t, bullish)
}
