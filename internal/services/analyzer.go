package services

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

const (
	levelHistory = 5
	vwLevelCount = 3
	fvgLookback  = 10
)

// Analysis is the per-call snapshot of one symbol and timeframe. It is
// recomputed fresh on every call and never mutated afterward.
type Analysis struct {
	Symbol    string
	Timeframe string

	Trend Trend
	MSB   MSB

	SwingHighs []Pivot
	SwingLows  []Pivot

	// Most recent distinct swing levels, newest first.
	Support    []float64
	Resistance []float64

	// Top levels weighted by traded volume at the pivot bars.
	VWSupport    []float64
	VWResistance []float64

	Indicators *IndicatorSet
	Sweep      SweepFlags

	BullishDivergence bool
	BearishDivergence bool
	BullishOB         *OrderBlock
	BearishOB         *OrderBlock

	InBullishFVG bool
	InBearishFVG bool

	AtSupport    bool
	AtResistance bool
	Fib50        *float64

	VolumeRatio *float64
	LastBar     models.Bar
	PrevBar     models.Bar
}

// Analyzer runs the full detector chain over a bar series and packages
// the results into an Analysis snapshot.
type Analyzer struct {
	cfg        *config.AnalysisConfig
	indicators *IndicatorEngine
	pivots     *PivotDetector
	structure  *StructureClassifier
	sweeps     *SweepDetector
	blocks     *OrderBlockDetector
	divergence *DivergenceDetector
	logger     *logrus.Logger
}

// NewAnalyzer wires the detector chain with the structure pivot windows.
func NewAnalyzer(cfg *config.AnalysisConfig, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		indicators: NewIndicatorEngine(cfg, logger),
		pivots:     NewPivotDetector(cfg.PivotLeft, cfg.PivotRight, cfg.MaxPivots),
		structure:  NewStructureClassifier(),
		sweeps:     NewSweepDetector(cfg, logger),
		blocks:     NewOrderBlockDetector(),
		divergence: NewDivergenceDetector(),
		logger:     logger,
	}
}

// Analyze builds a snapshot for the series. Returns nil when fewer than
// the minimum bars exist; that is not an error, the caller skips.
func (a *Analyzer) Analyze(symbol, timeframe string, bars []models.Bar) *Analysis {
	if len(bars) < a.cfg.MinBars {
		a.logger.WithFields(logrus.Fields{
			"symbol":    symbol,
			"timeframe": timeframe,
			"bars":      len(bars),
		}).Debug("insufficient history, skipping analysis")
		return nil
	}

	n := len(bars)
	an := &Analysis{
		Symbol:    symbol,
		Timeframe: timeframe,
		LastBar:   bars[n-1],
		PrevBar:   bars[n-2],
	}

	an.Indicators = a.indicators.Compute(bars)
	an.SwingHighs, an.SwingLows = a.pivots.Detect(bars)
	an.Trend = a.structure.Classify(an.SwingHighs, an.SwingLows)
	an.MSB = a.structure.DetectBreak(an.SwingHighs, an.SwingLows, an.LastBar.Close)

	an.Support = distinctLevels(an.SwingLows, levelHistory)
	an.Resistance = distinctLevels(an.SwingHighs, levelHistory)
	an.VWSupport = volumeWeightedLevels(an.SwingLows, bars, a.cfg.LevelProximityPct)
	an.VWResistance = volumeWeightedLevels(an.SwingHighs, bars, a.cfg.LevelProximityPct)

	an.Sweep = a.sweeps.Detect(bars, an.SwingHighs, an.SwingLows)

	if a.cfg.EnableOrderBlocks {
		an.BullishOB, an.BearishOB = a.blocks.Detect(bars)
	}
	if a.cfg.EnableDivergence && an.Indicators != nil {
		an.BullishDivergence, an.BearishDivergence = a.divergence.Detect(
			an.SwingHighs, an.SwingLows, an.Indicators.RSISeries)
	}

	an.InBullishFVG, an.InBearishFVG = fvgPosition(bars, an.LastBar.Close)

	lastClose := an.LastBar.Close
	an.AtSupport = nearAnyLevel(lastClose, an.Support, a.cfg.LevelProximityPct) ||
		nearAnyLevel(lastClose, an.VWSupport, a.cfg.LevelProximityPct)
	an.AtResistance = nearAnyLevel(lastClose, an.Resistance, a.cfg.LevelProximityPct) ||
		nearAnyLevel(lastClose, an.VWResistance, a.cfg.LevelProximityPct)

	if f, ok := fib50Level(an.SwingHighs, an.SwingLows); ok {
		an.Fib50 = fptr(f)
	}

	if an.Indicators != nil && an.Indicators.VolumeMA != nil && *an.Indicators.VolumeMA > 0 {
		an.VolumeRatio = fptr(an.LastBar.Volume / *an.Indicators.VolumeMA)
	}

	return an
}

// VolumeSpike reports whether the last bar's volume exceeded the moving
// average by the configured multiple.
func (an *Analysis) VolumeSpike(mult float64) bool {
	return an.VolumeRatio != nil && *an.VolumeRatio >= mult
}

// ATRHealthy reports whether ATR as a percentage of price sits inside
// the configured band.
func (an *Analysis) ATRHealthy(minPct, maxPct float64) bool {
	if an.Indicators == nil || an.Indicators.ATRPct == nil {
		return false
	}
	p := *an.Indicators.ATRPct
	return p >= minPct && p <= maxPct
}

// distinctLevels returns up to limit distinct pivot prices, newest first.
func distinctLevels(pivots []Pivot, limit int) []float64 {
	out := make([]float64, 0, limit)
	for i := len(pivots) - 1; i >= 0 && len(out) < limit; i-- {
		p := pivots[i].Price
		dup := false
		for _, v := range out {
			if v == p {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// volumeWeightedLevels clusters pivot prices within a proximity band and
// ranks clusters by the summed volume of their pivot bars. Returns the
// top cluster levels, strongest first.
func volumeWeightedLevels(pivots []Pivot, bars []models.Bar, proximity float64) []float64 {
	type cluster struct {
		level  float64
		weight float64
	}
	var clusters []cluster
	for _, p := range pivots {
		vol := bars[p.Index].Volume
		merged := false
		for i := range clusters {
			if clusters[i].level > 0 &&
				math.Abs(p.Price-clusters[i].level)/clusters[i].level <= proximity {
				total := clusters[i].weight + vol
				clusters[i].level = (clusters[i].level*clusters[i].weight + p.Price*vol) / total
				clusters[i].weight = total
				merged = true
				break
			}
		}
		if !merged {
			clusters = append(clusters, cluster{level: p.Price, weight: vol})
		}
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].weight > clusters[j].weight
	})
	out := make([]float64, 0, vwLevelCount)
	for i := 0; i < len(clusters) && i < vwLevelCount; i++ {
		out = append(out, clusters[i].level)
	}
	return out
}

// fvgPosition scans recent three-bar gaps and reports whether the last
// close currently sits inside a bullish or bearish imbalance.
func fvgPosition(bars []models.Bar, price float64) (inBull, inBear bool) {
	n := len(bars)
	start := n - fvgLookback
	if start < 2 {
		start = 2
	}
	for i := start; i < n; i++ {
		a, c := bars[i-2], bars[i]
		if a.High < c.Low && price >= a.High && price <= c.Low {
			inBull = true
		}
		if a.Low > c.High && price >= c.High && price <= a.Low {
			inBear = true
		}
	}
	return inBull, inBear
}

// fib50Level is the midpoint of the extremes of the last three swing
// points by bar order.
func fib50Level(highs, lows []Pivot) (float64, bool) {
	all := make([]Pivot, 0, len(highs)+len(lows))
	all = append(all, highs...)
	all = append(all, lows...)
	if len(all) < 3 {
		return 0, false
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	last3 := all[len(all)-3:]
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range last3 {
		lo = math.Min(lo, p.Price)
		hi = math.Max(hi, p.Price)
	}
	return (lo + hi) / 2, true
}

// nearAnyLevel reports whether price is within the proximity fraction of
// any level.
func nearAnyLevel(price float64, levels []float64, proximity float64) bool {
	for _, l := range levels {
		if l > 0 && math.Abs(price-l)/l <= proximity {
			return true
		}
	}
	return false
}
