package services

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// SweepDetector confirms liquidity sweeps of swing levels. A sweep is a
// wick-pierce of a level that price reclaims; confirmation requires one
// of two patterns checked in order, same-bar first, then cross-bar. The
// deviation-candle variant is a separate forward-looking check used by
// the screeners and runs after both.
type SweepDetector struct {
	cfg    *config.AnalysisConfig
	logger *logrus.Logger
}

// NewSweepDetector creates a detector with the given thresholds.
func NewSweepDetector(cfg *config.AnalysisConfig, logger *logrus.Logger) *SweepDetector {
	return &SweepDetector{cfg: cfg, logger: logger}
}

// SweepFlags reports which side of the book was swept on the last bar.
type SweepFlags struct {
	SweptLow     bool
	SweptHigh    bool
	SupportLevel float64
	ResistLevel  float64
}

// Detect checks the last bar of the series against the nearest confirmed
// swing levels. Levels older than SwingLookback bars are ignored.
func (sd *SweepDetector) Detect(bars []models.Bar, highs, lows []Pivot) SweepFlags {
	var flags SweepFlags
	n := len(bars)
	if n < 2 {
		return flags
	}
	last := bars[n-1]
	prev := bars[n-2]
	lastIdx := n - 1

	if p, ok := nearestPivot(lows, lastIdx, sd.cfg.SwingLookback); ok {
		flags.SupportLevel = p.Price
		if sd.sweptSupport(last, prev, p.Price) {
			flags.SweptLow = true
		}
	}
	if p, ok := nearestPivot(highs, lastIdx, sd.cfg.SwingLookback); ok {
		flags.ResistLevel = p.Price
		if sd.sweptResistance(last, prev, p.Price) {
			flags.SweptHigh = true
		}
	}
	return flags
}

// sweptSupport confirms a long-side sweep of support. Same-bar: the low
// pierced the level and the close reclaimed it above the bar midpoint on
// a bullish close. Cross-bar: the previous bar pierced and reclaimed,
// and this bar closed bullish above the previous close.
func (sd *SweepDetector) sweptSupport(last, prev models.Bar, level float64) bool {
	if last.Low < level && last.Close > level && last.Close > last.Mid() && last.Close > last.Open {
		return true
	}
	if prev.Low < level && prev.Close > level &&
		last.Close > prev.Close && last.Close > last.Open {
		return true
	}
	return false
}

// sweptResistance is the short-side mirror of sweptSupport.
func (sd *SweepDetector) sweptResistance(last, prev models.Bar, level float64) bool {
	if last.High > level && last.Close < level && last.Close < last.Mid() && last.Close < last.Open {
		return true
	}
	if prev.High > level && prev.Close < level &&
		last.Close < prev.Close && last.Close < last.Open {
		return true
	}
	return false
}

// nearestPivot returns the most recent pivot no older than lookback bars
// from refIdx.
func nearestPivot(pivots []Pivot, refIdx, lookback int) (Pivot, bool) {
	for i := len(pivots) - 1; i >= 0; i-- {
		if refIdx-pivots[i].Index <= lookback {
			return pivots[i], true
		}
		// Pivots are chronological, anything earlier is older still.
		return Pivot{}, false
	}
	return Pivot{}, false
}

// DeviationSweep is the forward-looking variant. It scans the last
// DevLookbackBars closed bars for a deviation candle at the nearest
// swing level: a wick-pierce whose body closed back on the safe side of
// the level with sufficient rejection distance and wick dominance. The
// sweep is reported only once a later bar's body breaks through the
// deviation candle's extreme.
func (sd *SweepDetector) DeviationSweep(bars []models.Bar, highs, lows []Pivot, rsi *float64) (devLow, devHigh *models.Bar) {
	n := len(bars)
	if n < sd.cfg.DevLookbackBars+1 {
		return nil, nil
	}
	start := n - 1 - sd.cfg.DevLookbackBars

	if p, ok := nearestPivot(lows, n-1, sd.cfg.SwingLookback); ok {
		if sd.cfg.DevRSIFilter && (rsi == nil || *rsi > sd.cfg.RSIExtremeLow) {
			// Oscillator filter rejects non-oversold long deviations.
		} else {
			for i := start; i < n-1; i++ {
				b := bars[i]
				if !sd.isDeviationLow(b, p.Price) {
					continue
				}
				for j := i + 1; j < n; j++ {
					if bodyHigh(bars[j]) > b.High {
						dev := b
						devLow = &dev
						break
					}
				}
				if devLow != nil {
					break
				}
			}
		}
	}
	if p, ok := nearestPivot(highs, n-1, sd.cfg.SwingLookback); ok {
		if sd.cfg.DevRSIFilter && (rsi == nil || *rsi < sd.cfg.RSIExtremeHigh) {
			// Oscillator filter rejects non-overbought short deviations.
		} else {
			for i := start; i < n-1; i++ {
				b := bars[i]
				if !sd.isDeviationHigh(b, p.Price) {
					continue
				}
				for j := i + 1; j < n; j++ {
					if bodyLow(bars[j]) < b.Low {
						dev := b
						devHigh = &dev
						break
					}
				}
				if devHigh != nil {
					break
				}
			}
		}
	}
	return devLow, devHigh
}

func (sd *SweepDetector) isDeviationLow(b models.Bar, level float64) bool {
	if b.Low >= level {
		return false
	}
	edge := bodyLow(b)
	if edge <= level {
		return false
	}
	if level > 0 && 100*(edge-level)/level < sd.cfg.DevMinRejectPct {
		return false
	}
	wick := edge - b.Low
	body := b.Body()
	if body > 1e-12 {
		return wick >= sd.cfg.DevWickBodyRatio*body
	}
	return wick >= sd.cfg.DevWickRangeRatio*b.Range()
}

func (sd *SweepDetector) isDeviationHigh(b models.Bar, level float64) bool {
	if b.High <= level {
		return false
	}
	edge := bodyHigh(b)
	if edge >= level {
		return false
	}
	if level > 0 && 100*(level-edge)/level < sd.cfg.DevMinRejectPct {
		return false
	}
	wick := b.High - edge
	body := b.Body()
	if body > 1e-12 {
		return wick >= sd.cfg.DevWickBodyRatio*body
	}
	return wick >= sd.cfg.DevWickRangeRatio*b.Range()
}

func bodyHigh(b models.Bar) float64 {
	return math.Max(b.Open, b.Close)
}

func bodyLow(b models.Bar) float64 {
	return math.Min(b.Open, b.Close)
}
