package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradescan/perpsignal/internal/models"
)

// A low that pierces a prior swing low by half a percent and closes back
// above it on a bullish, above-midpoint candle is a confirmed long sweep.
func TestSameBarSweepConfirmed(t *testing.T) {
	bars := risingBars(40, 100, 0.01)
	bars[30].Low = 95 // confirmed swing low

	last := &bars[39]
	last.Open = 96.0
	last.High = 96.5
	last.Low = 94.525 // pierces 95 by 0.5%
	last.Close = 96.2

	sd := NewSweepDetector(testAnalysisConfig(), testLogger())
	pd := NewPivotDetector(7, 3, 10)
	highs, lows := pd.Detect(bars)
	require.NotEmpty(t, lows)

	flags := sd.Detect(bars, highs, lows)
	assert.True(t, flags.SweptLow)
	assert.False(t, flags.SweptHigh)
	assert.Equal(t, 95.0, flags.SupportLevel)

	// Confirmation invariant: the close reclaimed the level on a
	// bullish candle above its own midpoint.
	assert.Greater(t, last.Close, flags.SupportLevel)
	assert.Greater(t, last.Close, last.Mid())
	assert.True(t, last.Bullish())
}

func TestSameBarSweepRejectedOnWeakClose(t *testing.T) {
	bars := risingBars(40, 100, 0.01)
	bars[30].Low = 95

	// Pierces and closes back above the level, but below the midpoint.
	last := &bars[39]
	last.Open = 95.2
	last.High = 97.0
	last.Low = 94.5
	last.Close = 95.3

	sd := NewSweepDetector(testAnalysisConfig(), testLogger())
	highs, lows := NewPivotDetector(7, 3, 10).Detect(bars)
	flags := sd.Detect(bars, highs, lows)
	assert.False(t, flags.SweptLow)
}

func TestCrossBarSweepConfirmed(t *testing.T) {
	bars := risingBars(40, 100, 0.01)
	bars[30].Low = 95

	// Previous bar pierced and closed back above; this bar continues up.
	prev := &bars[38]
	prev.Open = 95.4
	prev.High = 95.6
	prev.Low = 94.6
	prev.Close = 95.1 // back above the level but a bearish close

	last := &bars[39]
	last.Open = 95.1
	last.High = 95.8
	last.Low = 95.0
	last.Close = 95.7

	sd := NewSweepDetector(testAnalysisConfig(), testLogger())
	highs, lows := NewPivotDetector(7, 3, 10).Detect(bars)
	flags := sd.Detect(bars, highs, lows)
	assert.True(t, flags.SweptLow)
}

func TestResistanceSweepShortSide(t *testing.T) {
	bars := risingBars(40, 100, 0.01)
	bars[30].High = 110 // confirmed swing high

	last := &bars[39]
	last.Open = 109.5
	last.High = 110.6
	last.Low = 108.8
	last.Close = 109.0 // pierced above 110, closed back below midpoint

	sd := NewSweepDetector(testAnalysisConfig(), testLogger())
	highs, lows := NewPivotDetector(7, 3, 10).Detect(bars)
	require.NotEmpty(t, highs)
	flags := sd.Detect(bars, highs, lows)
	assert.True(t, flags.SweptHigh)
	assert.False(t, flags.SweptLow)
}

func TestSweepIgnoresStaleLevels(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.SwingLookback = 5 // tighten so the pivot is out of range

	bars := risingBars(40, 100, 0.01)
	bars[30].Low = 95

	last := &bars[39]
	last.Open = 96.0
	last.High = 96.5
	last.Low = 94.5
	last.Close = 96.2

	sd := NewSweepDetector(cfg, testLogger())
	highs, lows := NewPivotDetector(7, 3, 10).Detect(bars)
	flags := sd.Detect(bars, highs, lows)
	assert.False(t, flags.SweptLow)
}

// deviationFixture builds a series that fell back to a prior swing low:
// a confirmed swing low at 95, then the last five bars trading around
// it, with the deviation candle at index 56.
func deviationFixture() []models.Bar {
	bars := risingBars(60, 100, 0.01)
	bars[40].Low = 95 // confirmed swing low

	set := func(i int, o, h, l, c float64) {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = o, h, l, c
	}
	set(55, 96.0, 96.1, 95.8, 95.9)
	// Deviation candle: deep wick under the level, small body closing
	// back above it with a 0.53% rejection.
	set(56, 95.6, 95.9, 93.5, 95.5)
	set(57, 95.5, 95.8, 95.4, 95.6)
	set(58, 95.8, 96.4, 95.7, 96.3) // body breaks the deviation high
	set(59, 96.3, 96.5, 96.2, 96.4)
	return bars
}

// A long rejection wick below the level whose high is later broken by a
// candle body reports the level as swept. The screener's symmetric
// narrow pivot window feeds this detector.
func TestDeviationSweep(t *testing.T) {
	bars := deviationFixture()

	sd := NewSweepDetector(testAnalysisConfig(), testLogger())
	highs, lows := NewPivotDetector(5, 5, 10).Detect(bars)
	require.NotEmpty(t, lows)

	devLow, devHigh := sd.DeviationSweep(bars, highs, lows, nil)
	require.NotNil(t, devLow)
	assert.Nil(t, devHigh)
	assert.Equal(t, 93.5, devLow.Low)
	assert.Equal(t, 95.9, devLow.High)
}

func TestDeviationSweepNeedsBodyBreak(t *testing.T) {
	bars := deviationFixture()
	// Only wicks poke above the deviation high after the rejection.
	set := func(i int, o, h, l, c float64) {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = o, h, l, c
	}
	set(58, 95.6, 96.4, 95.5, 95.7)
	set(59, 95.7, 95.8, 95.5, 95.6)

	sd := NewSweepDetector(testAnalysisConfig(), testLogger())
	highs, lows := NewPivotDetector(5, 5, 10).Detect(bars)
	devLow, _ := sd.DeviationSweep(bars, highs, lows, nil)
	assert.Nil(t, devLow)
}

func TestDeviationSweepRSIFilter(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.DevRSIFilter = true
	bars := deviationFixture()

	sd := NewSweepDetector(cfg, testLogger())
	highs, lows := NewPivotDetector(5, 5, 10).Detect(bars)

	// RSI not in the oversold zone blocks the long deviation.
	neutral := 50.0
	devLow, _ := sd.DeviationSweep(bars, highs, lows, &neutral)
	assert.Nil(t, devLow)

	oversold := 25.0
	devLow, _ = sd.DeviationSweep(bars, highs, lows, &oversold)
	assert.NotNil(t, devLow)
}
