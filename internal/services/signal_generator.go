package services

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// SignalGenerator gates on the higher-timeframe trend, classifies the
// working-timeframe setup, and prices it through the risk engine. Setup
// tests run in a fixed priority order and the first match wins.
type SignalGenerator struct {
	analysisCfg *config.AnalysisConfig
	setupCfg    *config.SetupConfig
	scorer      *ConfluenceScorer
	risk        *RiskEngine
	logger      *logrus.Logger
}

func NewSignalGenerator(cfg *config.Config, logger *logrus.Logger) *SignalGenerator {
	return &SignalGenerator{
		analysisCfg: &cfg.Analysis,
		setupCfg:    &cfg.Setup,
		scorer:      NewConfluenceScorer(&cfg.Analysis, &cfg.Setup),
		risk:        NewRiskEngine(&cfg.Risk, logger),
		logger:      logger,
	}
}

// Generate evaluates both sides against the higher-timeframe and
// working-timeframe snapshots. At most one signal is returned; nil means
// no tradeable setup, which is the common case.
func (sg *SignalGenerator) Generate(htf, wtf *Analysis) *models.Signal {
	if htf == nil || wtf == nil {
		return nil
	}
	if !sg.passesHealthGates(wtf) {
		return nil
	}
	for _, side := range []models.Side{models.SideLong, models.SideShort} {
		if !sg.htfAligned(htf, side) {
			continue
		}
		setup, level := sg.classify(wtf, side)
		if setup == "" {
			continue
		}
		if sig := sg.build(htf, wtf, side, setup, level); sig != nil {
			return sig
		}
	}
	return nil
}

// passesHealthGates rejects symbols whose last bar is too illiquid or
// whose volatility regime is outside the tradeable band.
func (sg *SignalGenerator) passesHealthGates(an *Analysis) bool {
	if an.VolumeRatio == nil || *an.VolumeRatio < sg.setupCfg.MinVolumeRatio {
		return false
	}
	if an.Indicators == nil || an.Indicators.ADX == nil ||
		*an.Indicators.ADX < sg.setupCfg.ADXMinSignal {
		return false
	}
	return an.ATRHealthy(sg.analysisCfg.MinATRPct, sg.analysisCfg.MaxATRPct)
}

// htfAligned requires price on the correct side of the higher-timeframe
// EMA50 and the swing sequence not contradicting the direction.
func (sg *SignalGenerator) htfAligned(htf *Analysis, side models.Side) bool {
	if htf.Indicators == nil || htf.Indicators.EMA50 == nil {
		return false
	}
	ema := *htf.Indicators.EMA50
	if side == models.SideLong {
		if htf.LastBar.Close <= ema {
			return false
		}
		// Swing lows making new lows contradict a long bias.
		if n := len(htf.SwingLows); n >= 2 &&
			htf.SwingLows[n-1].Price < htf.SwingLows[n-2].Price {
			return false
		}
		return true
	}
	if htf.LastBar.Close >= ema {
		return false
	}
	if n := len(htf.SwingHighs); n >= 2 &&
		htf.SwingHighs[n-1].Price > htf.SwingHighs[n-2].Price {
		return false
	}
	return true
}

// classify runs the setup tests in priority order. The returned level is
// the structural reference price that anchors the entry zone.
func (sg *SignalGenerator) classify(an *Analysis, side models.Side) (models.SetupType, float64) {
	if ok, level := sg.breakoutRetest(an, side); ok {
		return models.SetupBreakoutRetest, level
	}
	if ok, level := sg.liquiditySweep(an, side); ok {
		return models.SetupLiquiditySweep, level
	}
	if ok, level := sg.trendContinuation(an, side); ok {
		return models.SetupTrendContinuation, level
	}
	return "", 0
}

// breakoutRetest: close beyond the most recent level, the bar's extreme
// back within tolerance of it, a volume spike, a directional close, and
// a rejection wick at least the configured share of the body.
func (sg *SignalGenerator) breakoutRetest(an *Analysis, side models.Side) (bool, float64) {
	if !an.VolumeSpike(sg.analysisCfg.VolumeSpikeMult) {
		return false, 0
	}
	bar := an.LastBar
	body := bar.Body()
	if body <= 0 {
		return false, 0
	}
	if side == models.SideLong {
		if len(an.Resistance) == 0 {
			return false, 0
		}
		level := an.Resistance[0]
		if level <= 0 || bar.Close <= level || !bar.Bullish() {
			return false, 0
		}
		if math.Abs(bar.Low-level)/level > sg.setupCfg.RetestTolerance {
			return false, 0
		}
		lowerWick := math.Min(bar.Open, bar.Close) - bar.Low
		if lowerWick < sg.setupCfg.WickBodyRatio*body {
			return false, 0
		}
		return true, level
	}
	if len(an.Support) == 0 {
		return false, 0
	}
	level := an.Support[0]
	if level <= 0 || bar.Close >= level || bar.Bullish() {
		return false, 0
	}
	if math.Abs(bar.High-level)/level > sg.setupCfg.RetestTolerance {
		return false, 0
	}
	upperWick := bar.High - math.Max(bar.Open, bar.Close)
	if upperWick < sg.setupCfg.WickBodyRatio*body {
		return false, 0
	}
	return true, level
}

// liquiditySweep: a confirmed sweep in the expected direction with a
// volume spike.
func (sg *SignalGenerator) liquiditySweep(an *Analysis, side models.Side) (bool, float64) {
	if !an.VolumeSpike(sg.analysisCfg.VolumeSpikeMult) {
		return false, 0
	}
	if side == models.SideLong && an.Sweep.SweptLow {
		return true, an.Sweep.SupportLevel
	}
	if side == models.SideShort && an.Sweep.SweptHigh {
		return true, an.Sweep.ResistLevel
	}
	return false, 0
}

// trendContinuation: trend matches the side, RSI in the mid band, price
// near EMA21 or the 50% retracement, EMA21 slope agreeing, and the last
// candle closing with the side.
func (sg *SignalGenerator) trendContinuation(an *Analysis, side models.Side) (bool, float64) {
	ind := an.Indicators
	if ind == nil || ind.RSI == nil || ind.EMA21 == nil {
		return false, 0
	}
	rsi := *ind.RSI
	rising, falling := ind.EMA21Slope()
	bar := an.LastBar

	if side == models.SideLong {
		if an.Trend != TrendUp || !rising || !bar.Bullish() {
			return false, 0
		}
		if rsi < sg.setupCfg.TCRSILongMin || rsi > sg.setupCfg.TCRSILongMax {
			return false, 0
		}
	} else {
		if an.Trend != TrendDown || !falling || bar.Bullish() {
			return false, 0
		}
		if rsi < sg.setupCfg.TCRSIShortMin || rsi > sg.setupCfg.TCRSIShortMax {
			return false, 0
		}
	}

	ema := *ind.EMA21
	if ema > 0 && math.Abs(bar.Close-ema)/ema <= sg.setupCfg.EMAProximityPct {
		return true, ema
	}
	if an.Fib50 != nil && *an.Fib50 > 0 &&
		math.Abs(bar.Close-*an.Fib50)/(*an.Fib50) <= sg.setupCfg.EMAProximityPct {
		return true, *an.Fib50
	}
	return false, 0
}

// build scores confluence, prices the setup, tiers confidence and
// assembles the final signal.
func (sg *SignalGenerator) build(htf, wtf *Analysis, side models.Side, setup models.SetupType, level float64) *models.Signal {
	score, factors := sg.scorer.Score(wtf, side)
	if score < sg.setupCfg.MinConfluence {
		return nil
	}

	entry := wtf.LastBar.Close
	plan := sg.risk.Plan(wtf, side, entry)
	if plan == nil {
		return nil
	}

	// An exceptional reward profile counts as one extra factor when
	// tiering confidence.
	effective := score
	if plan.RRRatio >= sg.setupCfg.QualityBonusRR {
		effective++
	}
	var confidence models.Confidence
	switch {
	case effective >= sg.setupCfg.HighConfluence:
		confidence = models.ConfidenceHigh
	case effective >= sg.setupCfg.MinConfluence:
		confidence = models.ConfidenceMedium
	default:
		return nil
	}
	if sg.setupCfg.ConfidenceThreshold == string(models.ConfidenceHigh) &&
		confidence != models.ConfidenceHigh {
		return nil
	}

	zoneLow, zoneHigh := entry, entry
	if level > 0 {
		zoneLow = math.Min(level, entry)
		zoneHigh = math.Max(level, entry)
	}

	ctx := models.MarketContext{
		TrendHTF:  string(htf.Trend),
		Structure: string(wtf.Trend),
	}
	if wtf.VolumeRatio != nil {
		ctx.VolumeChangePct = (*wtf.VolumeRatio - 1) * 100
	}
	if wtf.Indicators != nil {
		if wtf.Indicators.RSI != nil {
			ctx.RSI = *wtf.Indicators.RSI
		}
		if wtf.Indicators.ADX != nil {
			ctx.ADX = *wtf.Indicators.ADX
		}
	}

	levels := models.KeyLevels{}
	if len(wtf.Resistance) > 0 {
		levels.PrevHigh = wtf.Resistance[0]
		levels.Resistance = wtf.Resistance[0]
	}
	if len(wtf.Support) > 0 {
		levels.PrevLow = wtf.Support[0]
		levels.Support = wtf.Support[0]
	}
	if len(wtf.VWResistance) > 0 {
		levels.Resistance = wtf.VWResistance[0]
	}
	if len(wtf.VWSupport) > 0 {
		levels.Support = wtf.VWSupport[0]
	}

	sig := &models.Signal{
		ID:         uuid.New().String(),
		Symbol:     wtf.Symbol,
		Side:       side,
		SetupType:  setup,
		Confidence: confidence,
		EntryZone:  models.EntryZone{Low: zoneLow, High: zoneHigh},
		Stop:       plan.Stop,
		Target1:    plan.Target1,
		Target2:    plan.Target2,
		RRRatio:    plan.RRRatio,
		Confluence: factors,
		Context:    ctx,
		Levels:     levels,
		CreatedAt:  time.Now().UTC(),
	}
	sg.logger.WithFields(logrus.Fields{
		"symbol":     sig.Symbol,
		"side":       sig.Side,
		"setup":      sig.SetupType,
		"confidence": sig.Confidence,
		"rr":         sig.RRRatio,
	}).Info("signal generated")
	return sig
}

// Risk exposes the sizing engine for callers that want position math on
// an emitted signal.
func (sg *SignalGenerator) Risk() *RiskEngine {
	return sg.risk
}
