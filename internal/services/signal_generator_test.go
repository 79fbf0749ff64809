package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradescan/perpsignal/internal/models"
)

// htfLongAnalysis satisfies the higher-timeframe gate for longs: price
// above EMA50 and swing lows not making new lows.
func htfLongAnalysis() *Analysis {
	return &Analysis{
		Symbol:     "ETH/USDT:USDT",
		Timeframe:  "1d",
		Trend:      TrendUp,
		SwingLows:  []Pivot{{Index: 20, Price: 90}, {Index: 40, Price: 94}},
		SwingHighs: []Pivot{{Index: 30, Price: 105}, {Index: 50, Price: 110}},
		LastBar:    models.Bar{Open: 99, High: 101, Low: 98.5, Close: 100.5},
		Indicators: &IndicatorSet{EMA50: fptr(95)},
	}
}

// tcLongAnalysis fabricates a working-timeframe snapshot that passes
// the health gates and matches the trend-continuation long pattern.
func tcLongAnalysis() *Analysis {
	return &Analysis{
		Symbol:       "ETH/USDT:USDT",
		Timeframe:    "4h",
		Trend:        TrendUp,
		SwingLows:    []Pivot{{Index: 30, Price: 99.2}},
		SwingHighs:   []Pivot{{Index: 20, Price: 104}},
		VWResistance: []float64{103.5, 106},
		LastBar:      models.Bar{Open: 100.1, High: 100.7, Low: 99.9, Close: 100.5, Volume: 1600},
		Indicators: &IndicatorSet{
			RSI:         fptr(45),
			EMA21:       fptr(100.2),
			EMA21Series: []float64{99.4, 99.8, 100.2},
			ADX:         fptr(26),
			ATRValue:    fptr(1.5),
			ATRPct:      fptr(1.5),
		},
		VolumeRatio: fptr(1.6),
	}
}

func TestTrendContinuationLongCandidate(t *testing.T) {
	sg := NewSignalGenerator(testConfig(), testLogger())

	setup, level := sg.classify(tcLongAnalysis(), models.SideLong)
	assert.Equal(t, models.SetupTrendContinuation, setup)
	assert.InDelta(t, 100.2, level, 1e-9)

	// The same snapshot must never read as a short.
	setup, _ = sg.classify(tcLongAnalysis(), models.SideShort)
	assert.Empty(t, setup)
}

func TestGenerateEmitsTrendContinuationLong(t *testing.T) {
	sg := NewSignalGenerator(testConfig(), testLogger())

	sig := sg.Generate(htfLongAnalysis(), tcLongAnalysis())
	require.NotNil(t, sig)
	assert.Equal(t, models.SideLong, sig.Side)
	assert.Equal(t, models.SetupTrendContinuation, sig.SetupType)
	assert.NotEmpty(t, sig.ID)
	assert.GreaterOrEqual(t, sig.RRRatio, testConfig().Risk.MinRRRatio)
	assert.LessOrEqual(t, sig.EntryZone.Low, sig.EntryZone.High)
	assert.Less(t, sig.Stop, sig.EntryZone.Low)
	assert.Greater(t, sig.Target1, sig.EntryZone.High)
}

func TestGenerateRejectsWithoutHTFAlignment(t *testing.T) {
	sg := NewSignalGenerator(testConfig(), testLogger())

	htf := htfLongAnalysis()
	htf.LastBar.Close = 90 // below the daily EMA50
	assert.Nil(t, sg.Generate(htf, tcLongAnalysis()))

	htf = htfLongAnalysis()
	htf.SwingLows = []Pivot{{Index: 20, Price: 94}, {Index: 40, Price: 90}} // new lows
	assert.Nil(t, sg.Generate(htf, tcLongAnalysis()))
}

func TestGenerateHealthGates(t *testing.T) {
	sg := NewSignalGenerator(testConfig(), testLogger())

	wtf := tcLongAnalysis()
	wtf.VolumeRatio = fptr(0.3) // too illiquid
	assert.Nil(t, sg.Generate(htfLongAnalysis(), wtf))

	wtf = tcLongAnalysis()
	wtf.Indicators.ADX = fptr(15) // no trend strength
	assert.Nil(t, sg.Generate(htfLongAnalysis(), wtf))

	wtf = tcLongAnalysis()
	wtf.Indicators.ATRPct = fptr(12.0) // outside the healthy band
	assert.Nil(t, sg.Generate(htfLongAnalysis(), wtf))
}

func TestClassifyBreakoutRetest(t *testing.T) {
	sg := NewSignalGenerator(testConfig(), testLogger())

	an := &Analysis{
		Symbol:     "ETH/USDT:USDT",
		Resistance: []float64{100},
		// Closed above the level, low retested within tolerance, long
		// lower wick, bullish close.
		LastBar:     models.Bar{Open: 100.4, High: 100.8, Low: 99.9, Close: 100.7, Volume: 2000},
		VolumeRatio: fptr(2.0),
	}
	setup, level := sg.classify(an, models.SideLong)
	assert.Equal(t, models.SetupBreakoutRetest, setup)
	assert.Equal(t, 100.0, level)

	// Without the volume spike the setup disappears.
	an.VolumeRatio = fptr(1.0)
	setup, _ = sg.classify(an, models.SideLong)
	assert.Empty(t, setup)
}

func TestClassifyLiquiditySweep(t *testing.T) {
	sg := NewSignalGenerator(testConfig(), testLogger())

	an := &Analysis{
		Symbol:      "ETH/USDT:USDT",
		Sweep:       SweepFlags{SweptLow: true, SupportLevel: 98},
		LastBar:     models.Bar{Open: 98.5, High: 99.5, Low: 97.5, Close: 99.2, Volume: 2500},
		VolumeRatio: fptr(2.5),
	}
	setup, level := sg.classify(an, models.SideLong)
	assert.Equal(t, models.SetupLiquiditySweep, setup)
	assert.Equal(t, 98.0, level)

	setup, _ = sg.classify(an, models.SideShort)
	assert.Empty(t, setup)
}

// Breakout retest outranks a simultaneous sweep; sweep outranks trend
// continuation.
func TestSetupPriorityOrder(t *testing.T) {
	sg := NewSignalGenerator(testConfig(), testLogger())

	an := &Analysis{
		Symbol:      "ETH/USDT:USDT",
		Resistance:  []float64{100},
		Sweep:       SweepFlags{SweptLow: true, SupportLevel: 99.9},
		LastBar:     models.Bar{Open: 100.4, High: 100.8, Low: 99.9, Close: 100.7, Volume: 2000},
		VolumeRatio: fptr(2.0),
	}
	setup, _ := sg.classify(an, models.SideLong)
	assert.Equal(t, models.SetupBreakoutRetest, setup)
}

// A flat series produces a range classification and no setups no matter
// how the indicators read.
func TestFlatSeriesYieldsNoSetups(t *testing.T) {
	bars := make([]models.Bar, 60)
	for i := range bars {
		bars[i] = models.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000}
	}
	an := NewAnalyzer(testAnalysisConfig(), testLogger()).Analyze("DOGE/USDT:USDT", "4h", bars)
	require.NotNil(t, an)
	assert.Equal(t, TrendRange, an.Trend)

	sg := NewSignalGenerator(testConfig(), testLogger())
	assert.Nil(t, sg.Generate(an, an))

	// Even with the gates bypassed, no setup pattern matches.
	setup, _ := sg.classify(an, models.SideLong)
	assert.Empty(t, setup)
	setup, _ = sg.classify(an, models.SideShort)
	assert.Empty(t, setup)
}

func TestGenerateConfidenceTiering(t *testing.T) {
	cfg := testConfig()
	sg := NewSignalGenerator(cfg, testLogger())

	sig := sg.Generate(htfLongAnalysis(), tcLongAnalysis())
	require.NotNil(t, sig)
	assert.Contains(t, []models.Confidence{models.ConfidenceHigh, models.ConfidenceMedium}, sig.Confidence)

	// Requiring HIGH suppresses a MEDIUM-grade signal universe-wide.
	cfg.Setup.ConfidenceThreshold = "HIGH"
	cfg.Setup.HighConfluence = 99
	sgStrict := NewSignalGenerator(cfg, testLogger())
	assert.Nil(t, sgStrict.Generate(htfLongAnalysis(), tcLongAnalysis()))
}
