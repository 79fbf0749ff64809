package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// risingBars builds a strictly rising series with no confirmed pivots:
// the right window always holds a higher high and the left window a
// lower low. Tests carve explicit spikes and dips into it.
func risingBars(n int, start, step float64) []models.Bar {
	bars := make([]models.Bar, n)
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price := start + step*float64(i)
		bars[i] = models.Bar{
			Timestamp: t.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testAnalysisConfig() *config.AnalysisConfig {
	return &config.AnalysisConfig{
		MinBars:             50,
		TargetBars:          200,
		PivotLeft:           7,
		PivotRight:          3,
		ScreenerPivotLen:    5,
		SwingLookback:       30,
		MaxPivots:           10,
		VolumeMAPeriod:      20,
		VolumeSpikeMult:     1.5,
		MinATRPct:           1.0,
		MaxATRPct:           8.0,
		ADXStrong:           25.0,
		ADXVeryStrong:       35.0,
		LevelProximityPct:   0.005,
		DevLookbackBars:     4,
		DevMinRejectPct:     0.1,
		DevWickBodyRatio:    1.5,
		DevWickRangeRatio:   0.5,
		DevRSIFilter:        false,
		RSIExtremeLow:       30.0,
		RSIExtremeHigh:      70.0,
		EnableDivergence:    true,
		EnableOrderBlocks:   true,
		EnableBBSqueeze:     true,
		DeviationTimeframes: []string{"4h", "1h"},
	}
}

func testSetupConfig() *config.SetupConfig {
	return &config.SetupConfig{
		RetestTolerance:     0.003,
		WickBodyRatio:       0.6,
		TCRSILongMin:        35.0,
		TCRSILongMax:        55.0,
		TCRSIShortMin:       45.0,
		TCRSIShortMax:       65.0,
		EMAProximityPct:     0.01,
		MinConfluence:       2,
		HighConfluence:      4,
		ADXMinSignal:        20.0,
		MinVolumeRatio:      0.5,
		ConfidenceThreshold: "MEDIUM",
		QualityBonusRR:      3.0,
	}
}

func testRiskConfig() *config.RiskConfig {
	return &config.RiskConfig{
		AccountSize:        1000,
		RiskPct:            2.0,
		MaxStopPct:         0.025,
		MinRRRatio:         1.5,
		MaxLeverage:        5,
		LiquidationWarnPct: 0.20,
		ATRStopMult:        1.5,
		ATRTarget1Mult:     1.5,
		ATRTarget2Mult:     3.0,
		HighVolATRPct:      5.0,
	}
}

func testScreenerConfig() *config.ScreenerConfig {
	return &config.ScreenerConfig{
		MinVolume:          300000,
		MinPriceChangePct:  2.0,
		MaxSpreadPct:       0.1,
		WatchlistADXMin:    25.0,
		WatchlistMinScore:  4,
		MaxCoins:           30,
		TopN:               10,
		RSIStrong:          60.0,
		RSIWeak:            40.0,
		Timeframes:         []string{"1d", "4h", "1h"},
		ReferenceTimeframe: "4h",
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Analysis: *testAnalysisConfig(),
		Setup:    *testSetupConfig(),
		Risk:     *testRiskConfig(),
		Screener: *testScreenerConfig(),
		Scan: config.ScanConfig{
			Interval:         "1h",
			WatchlistRefresh: "6h",
			CooldownMinutes:  240,
			MaxSignalsPerDay: 12,
			HigherTimeframe:  "1d",
			WorkingTimeframe: "4h",
		},
	}
}
