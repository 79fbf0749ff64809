package services

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"
	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// Standard periods. The pivot windows are configurable; the oscillator
// periods are fixed across all revisions of the strategy.
const (
	rsiPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	adxPeriod      = 14
	atrPeriod      = 14
	bbPeriod       = 20
	bbStdDev       = 2.0
	bbWidthWindow  = 50
	stochRSIPeriod = 14
	stochRSISmooth = 3
	obvLookback    = 5
	ema21Period    = 21
	ema50Period    = 50
	ema200Period   = 200
	emaSlopeBars   = 3
)

// IndicatorSet holds the last-bar indicator values for one timeframe.
// Nil pointers mean the indicator could not be computed from the
// available history; callers must treat absence as "no opinion".
type IndicatorSet struct {
	RSI                 *float64
	RSISeries           []float64 // bar-aligned, NaN where undefined
	MACDHist            *float64
	MACDTurningPositive bool
	ADX                 *float64
	EMA21               *float64
	EMA50               *float64
	EMA200              *float64
	EMA21Series         []float64 // bar-aligned
	BBUpper             *float64
	BBLower             *float64
	BBSqueeze           bool
	ATRValue            *float64
	ATRPct              *float64
	OBVRising           *bool
	StochRSIK           *float64
	VolumeMA            *float64
}

// IndicatorEngine derives oscillator and trend indicators from a bar
// series. Library pipelines are preferred; each indicator falls back to a
// closed-form implementation when the pipeline yields no usable value.
type IndicatorEngine struct {
	cfg    *config.AnalysisConfig
	logger *logrus.Logger
}

// NewIndicatorEngine creates an indicator engine with the given thresholds.
func NewIndicatorEngine(cfg *config.AnalysisConfig, logger *logrus.Logger) *IndicatorEngine {
	return &IndicatorEngine{cfg: cfg, logger: logger}
}

// Compute derives all indicators for the series. Returns nil when fewer
// than the configured minimum bars are available.
func (ie *IndicatorEngine) Compute(bars []models.Bar) *IndicatorSet {
	if len(bars) < ie.cfg.MinBars {
		return nil
	}

	n := len(bars)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	lastClose := closes[n-1]

	set := &IndicatorSet{}

	// RSI: bar-aligned Wilder series is kept for divergence detection;
	// the headline value comes from the library stream when it has
	// warmed up, otherwise from the series tail.
	set.RSISeries = wilderRSISeries(closes, rsiPeriod)
	if v, ok := lastStreamValue(helper.ChanToSlice(
		momentum.NewRsiWithPeriod[float64](rsiPeriod).Compute(helper.SliceToChan(closes)))); ok {
		set.RSI = fptr(v)
	} else if v, ok := lastFinite(set.RSISeries); ok {
		set.RSI = fptr(v)
	}

	// MACD histogram from EMA difference; turning positive means the
	// histogram crossed from negative to non-negative on the last bar.
	hist := macdHistSeries(closes)
	if v, ok := lastFinite(hist); ok {
		set.MACDHist = fptr(v)
		if len(hist) >= 2 {
			prev := hist[len(hist)-2]
			set.MACDTurningPositive = !math.IsNaN(prev) && prev < 0 && v >= 0
		}
	}

	// ADX via smoothed directional movement.
	if v, ok := lastFinite(adxSeries(highs, lows, closes, adxPeriod)); ok {
		set.ADX = fptr(v)
	}

	// EMAs. The 21 series is kept bar-aligned for the slope check.
	set.EMA21Series = emaSeries(closes, ema21Period)
	if v, ok := lastFinite(set.EMA21Series); ok {
		set.EMA21 = fptr(v)
	}
	if v, ok := lastStreamValue(helper.ChanToSlice(
		trend.NewEmaWithPeriod[float64](ema50Period).Compute(helper.SliceToChan(closes)))); ok {
		set.EMA50 = fptr(v)
	} else if v, ok := lastFinite(emaSeries(closes, ema50Period)); ok {
		set.EMA50 = fptr(v)
	}
	if n >= ema200Period {
		if v, ok := lastStreamValue(helper.ChanToSlice(
			trend.NewEmaWithPeriod[float64](ema200Period).Compute(helper.SliceToChan(closes)))); ok {
			set.EMA200 = fptr(v)
		} else if v, ok := lastFinite(emaSeries(closes, ema200Period)); ok {
			set.EMA200 = fptr(v)
		}
	}

	// Bollinger Bands and squeeze.
	upper, lower := bollingerSeries(closes, bbPeriod, bbStdDev)
	if u, ok := lastFinite(upper); ok {
		if l, ok2 := lastFinite(lower); ok2 {
			set.BBUpper = fptr(u)
			set.BBLower = fptr(l)
			if ie.cfg.EnableBBSqueeze {
				set.BBSqueeze = bbSqueeze(upper, lower, bbWidthWindow)
			}
		}
	}

	// ATR via the library true-range pipeline, falling back to the
	// exponentially smoothed true range.
	atrOut := helper.ChanToSlice(volatility.NewAtr[float64]().Compute(
		helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes)))
	if v, ok := lastStreamValue(atrOut); ok {
		set.ATRValue = fptr(v)
	} else if v, ok := lastFinite(atrSeries(highs, lows, closes, atrPeriod)); ok {
		set.ATRValue = fptr(v)
	}
	if set.ATRValue != nil && lastClose > 0 {
		set.ATRPct = fptr(100 * *set.ATRValue / lastClose)
	}

	// OBV direction: rising iff the cumulative value exceeds its level
	// five bars back.
	obvOut := helper.ChanToSlice(volume.NewObv[float64]().Compute(
		helper.SliceToChan(closes), helper.SliceToChan(volumes)))
	if len(obvOut) > obvLookback {
		rising := obvOut[len(obvOut)-1] > obvOut[len(obvOut)-1-obvLookback]
		set.OBVRising = &rising
	}

	// StochRSI %K.
	if v, ok := lastFinite(stochRSIKSeries(set.RSISeries, stochRSIPeriod, stochRSISmooth)); ok {
		set.StochRSIK = fptr(v)
	}

	// Volume moving average for spike detection.
	if n >= ie.cfg.VolumeMAPeriod {
		smaOut := helper.ChanToSlice(trend.NewSmaWithPeriod[float64](ie.cfg.VolumeMAPeriod).Compute(
			helper.SliceToChan(volumes)))
		if v, ok := lastStreamValue(smaOut); ok {
			set.VolumeMA = fptr(v)
		}
	}

	return set
}

// EMA21Slope reports whether the EMA21 slope over the last three values
// is positive, negative, or flat/unknown.
func (s *IndicatorSet) EMA21Slope() (rising, falling bool) {
	series := s.EMA21Series
	if len(series) < emaSlopeBars {
		return false, false
	}
	a := series[len(series)-emaSlopeBars]
	b := series[len(series)-1]
	if math.IsNaN(a) || math.IsNaN(b) {
		return false, false
	}
	return b > a, b < a
}

// --- closed-form implementations ---

// emaSeries computes a span-weighted exponential moving average seeded
// with the first value, yielding one output per input bar.
func emaSeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// wilderRSISeries computes RSI with Wilder exponential smoothing of gains
// and losses. Index 0 is NaN; all later indices carry a value.
func wilderRSISeries(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	out[0] = math.NaN()
	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}
		if avgLoss == 0 {
			if avgGain == 0 {
				out[i] = 50
			} else {
				out[i] = 100
			}
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// macdHistSeries returns the MACD histogram (line minus signal).
func macdHistSeries(closes []float64) []float64 {
	if len(closes) == 0 {
		return nil
	}
	fast := emaSeries(closes, macdFast)
	slow := emaSeries(closes, macdSlow)
	line := make([]float64, len(closes))
	for i := range line {
		line[i] = fast[i] - slow[i]
	}
	signal := emaSeries(line, macdSignal)
	hist := make([]float64, len(closes))
	for i := range hist {
		hist[i] = line[i] - signal[i]
	}
	return hist
}

// adxSeries computes a simplified ADX: directional movement smoothed with
// the same exponential span as the true range.
func adxSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	tr[0] = highs[0] - lows[0]

	atr := emaSeries(tr, period)
	smPlus := emaSeries(plusDM, period)
	smMinus := emaSeries(minusDM, period)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if atr[i] == 0 {
			dx[i] = 0
			continue
		}
		plusDI := 100 * smPlus[i] / atr[i]
		minusDI := 100 * smMinus[i] / atr[i]
		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}
	return emaSeries(dx, period)
}

// atrSeries computes the exponentially smoothed true range.
func atrSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	tr := make([]float64, n)
	if n == 0 {
		return tr
	}
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	return emaSeries(tr, period)
}

// bollingerSeries returns the upper and lower bands over a rolling
// window, NaN before the window fills.
func bollingerSeries(closes []float64, period int, stdDev float64) (upper, lower []float64) {
	n := len(closes)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < n; i++ {
		if i < period-1 {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}
		window := closes[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		// Sample variance matches the reference rolling std.
		sd := math.Sqrt(variance / float64(period-1))
		upper[i] = mean + stdDev*sd
		lower[i] = mean - stdDev*sd
	}
	return upper, lower
}

// bbSqueeze reports whether the current band width sits at or below the
// 20th percentile of the trailing window of widths.
func bbSqueeze(upper, lower []float64, window int) bool {
	widths := make([]float64, 0, len(upper))
	for i := range upper {
		if math.IsNaN(upper[i]) || math.IsNaN(lower[i]) {
			continue
		}
		widths = append(widths, upper[i]-lower[i])
	}
	if len(widths) < window {
		return false
	}
	recent := widths[len(widths)-window:]
	current := recent[len(recent)-1]
	return current <= percentile(recent, 0.2)
}

// stochRSIKSeries computes the smoothed %K of the stochastic of RSI.
func stochRSIKSeries(rsi []float64, period, smooth int) []float64 {
	n := len(rsi)
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = math.NaN()
		if i < period-1 {
			continue
		}
		lowest, highest := math.Inf(1), math.Inf(-1)
		valid := 0
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(rsi[j]) {
				continue
			}
			valid++
			lowest = math.Min(lowest, rsi[j])
			highest = math.Max(highest, rsi[j])
		}
		if valid < period || math.IsNaN(rsi[i]) {
			continue
		}
		if highest == lowest {
			raw[i] = 50
			continue
		}
		raw[i] = 100 * (rsi[i] - lowest) / (highest - lowest)
	}
	// %K is a short moving average of the raw stochastic.
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.NaN()
		if i < smooth-1 {
			continue
		}
		sum, valid := 0.0, 0
		for j := i - smooth + 1; j <= i; j++ {
			if math.IsNaN(raw[j]) {
				continue
			}
			sum += raw[j]
			valid++
		}
		if valid == smooth {
			out[i] = sum / float64(smooth)
		}
	}
	return out
}

// percentile returns the linearly interpolated q-quantile of values.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// lastFinite returns the last non-NaN value of a series.
func lastFinite(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i], true
		}
	}
	return 0, false
}

// lastStreamValue returns the final value of a library pipeline output,
// rejecting empty or non-finite results.
func lastStreamValue(out []float64) (float64, bool) {
	if len(out) == 0 {
		return 0, false
	}
	v := out[len(out)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func fptr(v float64) *float64 {
	return &v
}
