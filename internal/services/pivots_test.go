package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPivots(t *testing.T) {
	bars := risingBars(60, 100, 0.01)
	bars[20].High = 115
	bars[34].High = 118
	bars[27].Low = 96
	bars[41].Low = 98

	pd := NewPivotDetector(7, 3, 10)
	highs, lows := pd.Detect(bars)

	require.Len(t, highs, 2)
	assert.Equal(t, 20, highs[0].Index)
	assert.Equal(t, 115.0, highs[0].Price)
	assert.Equal(t, 34, highs[1].Index)
	assert.Equal(t, 118.0, highs[1].Price)

	require.Len(t, lows, 2)
	assert.Equal(t, 27, lows[0].Index)
	assert.Equal(t, 96.0, lows[0].Price)
	assert.Equal(t, 41, lows[1].Index)
	assert.Equal(t, 98.0, lows[1].Price)
}

func TestDetectPivotsNoneOnTrendingSeries(t *testing.T) {
	pd := NewPivotDetector(7, 3, 10)
	highs, lows := pd.Detect(risingBars(60, 100, 0.01))
	assert.Empty(t, highs)
	assert.Empty(t, lows)
}

// A pivot needs its full right window, so nothing inside the trailing
// right bars can ever be reported.
func TestPivotConfirmationWindow(t *testing.T) {
	bars := risingBars(60, 100, 0.01)
	// A spike inside the trailing window must not confirm.
	bars[58].High = 150
	// A dip inside the trailing window must not confirm either.
	bars[57].Low = 50

	pd := NewPivotDetector(7, 3, 10)
	highs, lows := pd.Detect(bars)
	for _, p := range highs {
		assert.Less(t, p.Index, len(bars)-3)
	}
	for _, p := range lows {
		assert.Less(t, p.Index, len(bars)-3)
	}
}

func TestPivotTruncation(t *testing.T) {
	bars := risingBars(200, 100, 0.001)
	// Carve 15 spikes with ascending heights, spaced beyond the window.
	idx := 10
	for i := 0; i < 15; i++ {
		bars[idx].High = 200 + float64(i)
		idx += 12
	}

	pd := NewPivotDetector(7, 3, 10)
	highs, _ := pd.Detect(bars)
	require.Len(t, highs, 10)
	// The oldest five were truncated, the newest survive.
	assert.Equal(t, 205.0, highs[0].Price)
	assert.Equal(t, 214.0, highs[9].Price)
}

func TestPivotTies(t *testing.T) {
	bars := risingBars(40, 100, 0.001)
	// Equal highs inside one window: both qualify under the >= rule.
	bars[15].High = 110
	bars[17].High = 110

	pd := NewPivotDetector(7, 3, 10)
	highs, _ := pd.Detect(bars)
	require.Len(t, highs, 2)
	assert.Equal(t, 15, highs[0].Index)
	assert.Equal(t, 17, highs[1].Index)
}
