package services

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// ScreenerCandidate is the per-symbol input to the ranking policies,
// assembled by the scan loop from timeframe analyses.
type ScreenerCandidate struct {
	Symbol      string
	Sweeps      map[string]models.SweepResult // keyed by timeframe
	VolumeRatio float64                       // reference timeframe
	RSI         *float64                      // reference timeframe
}

// RankedSymbol is one entry of a ranked list.
type RankedSymbol struct {
	Symbol string
	Score  float64
}

// Screener holds the sweep-count and RSI-extremity ranking policies plus
// the narrow-window sweep scan that feeds them.
type Screener struct {
	cfg    *config.ScreenerConfig
	sweeps *SweepDetector
	pivots *PivotDetector
	logger *logrus.Logger
}

// NewScreener builds a screener using the narrow symmetric pivot window.
func NewScreener(cfg *config.Config, logger *logrus.Logger) *Screener {
	return &Screener{
		cfg:    &cfg.Screener,
		sweeps: NewSweepDetector(&cfg.Analysis, logger),
		pivots: NewPivotDetector(cfg.Analysis.ScreenerPivotLen, cfg.Analysis.ScreenerPivotLen, cfg.Analysis.MaxPivots),
		logger: logger,
	}
}

// ScanSweep runs the sweep detectors over one timeframe's bars and
// packages the outcome. The deviation-candle path runs when the
// timeframe is configured for it, catching sweeps that confirmed a few
// bars ago.
func (s *Screener) ScanSweep(symbol, timeframe string, bars []models.Bar, rsi *float64, deviation bool) models.SweepResult {
	res := models.SweepResult{Symbol: symbol}
	if len(bars) == 0 {
		return res
	}
	res.LastClose = bars[len(bars)-1].Close

	highs, lows := s.pivots.Detect(bars)
	flags := s.sweeps.Detect(bars, highs, lows)
	res.SweptSwingLow = flags.SweptLow
	res.SweptSwingHigh = flags.SweptHigh
	res.SwingLow = flags.SupportLevel
	res.SwingHigh = flags.ResistLevel

	if deviation && !res.Swept() {
		devLow, devHigh := s.sweeps.DeviationSweep(bars, highs, lows, rsi)
		if devLow != nil {
			res.SweptSwingLow = true
			res.DeviationLow = devLow.Low
			res.DeviationHigh = devLow.High
		}
		if devHigh != nil {
			res.SweptSwingHigh = true
			if res.DeviationHigh == 0 {
				res.DeviationHigh = devHigh.High
			}
			if res.DeviationLow == 0 {
				res.DeviationLow = devHigh.Low
			}
		}
		if devLow != nil || devHigh != nil {
			res.Timeframe = timeframe
		}
	}

	switch {
	case res.SweptSwingLow && res.SweptSwingHigh:
		res.Signal = models.SweepSignalBoth
	case res.SweptSwingLow:
		res.Signal = models.SweepSignalLong
	case res.SweptSwingHigh:
		res.Signal = models.SweepSignalShort
	}
	return res
}

// RankBySweepCount keeps candidates with a confirmed sweep on at least
// one timeframe and ranks by number of swept timeframes, breaking ties
// with the reference-timeframe volume ratio.
func (s *Screener) RankBySweepCount(candidates []ScreenerCandidate) []RankedSymbol {
	type scored struct {
		symbol string
		count  int
		volume float64
	}
	var kept []scored
	for _, c := range candidates {
		count := 0
		for _, sw := range c.Sweeps {
			if sw.Swept() {
				count++
			}
		}
		if count > 0 {
			kept = append(kept, scored{symbol: c.Symbol, count: count, volume: c.VolumeRatio})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].count != kept[j].count {
			return kept[i].count > kept[j].count
		}
		return kept[i].volume > kept[j].volume
	})
	out := make([]RankedSymbol, 0, s.cfg.TopN)
	for i := 0; i < len(kept) && i < s.cfg.TopN; i++ {
		out = append(out, RankedSymbol{Symbol: kept[i].symbol, Score: float64(kept[i].count)})
	}
	return out
}

// RankByRSIExtremity keeps candidates with a sweep on the reference
// timeframe and RSI in the strong or weak zone, ranked by distance of
// RSI from 50 with volume ratio as tiebreak.
func (s *Screener) RankByRSIExtremity(candidates []ScreenerCandidate) []RankedSymbol {
	type scored struct {
		symbol    string
		extremity float64
		volume    float64
	}
	var kept []scored
	for _, c := range candidates {
		sw, ok := c.Sweeps[s.cfg.ReferenceTimeframe]
		if !ok || !sw.Swept() || c.RSI == nil {
			continue
		}
		rsi := *c.RSI
		if rsi < s.cfg.RSIStrong && rsi > s.cfg.RSIWeak {
			continue
		}
		kept = append(kept, scored{symbol: c.Symbol, extremity: math.Abs(rsi - 50), volume: c.VolumeRatio})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].extremity != kept[j].extremity {
			return kept[i].extremity > kept[j].extremity
		}
		return kept[i].volume > kept[j].volume
	})
	out := make([]RankedSymbol, 0, s.cfg.TopN)
	for i := 0; i < len(kept) && i < s.cfg.TopN; i++ {
		out = append(out, RankedSymbol{Symbol: kept[i].symbol, Score: kept[i].extremity})
	}
	return out
}
