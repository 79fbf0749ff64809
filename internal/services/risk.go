package services

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// TradePlan is the priced side of a classified setup.
type TradePlan struct {
	Entry   float64
	Stop    float64
	Target1 float64
	Target2 float64
	RRRatio float64
}

// RiskEngine prices stops and targets for a setup and sizes positions.
// Money amounts use decimal arithmetic; price levels stay float64 like
// the rest of the analysis chain.
type RiskEngine struct {
	cfg    *config.RiskConfig
	logger *logrus.Logger
}

func NewRiskEngine(cfg *config.RiskConfig, logger *logrus.Logger) *RiskEngine {
	return &RiskEngine{cfg: cfg, logger: logger}
}

// Plan derives stop and targets for a side from the snapshot and rejects
// the trade when reward to risk falls short of the configured minimum.
// A nil return means no tradeable plan, not an error.
func (re *RiskEngine) Plan(an *Analysis, side models.Side, entry float64) *TradePlan {
	if entry <= 0 {
		return nil
	}
	var atr float64
	if an.Indicators != nil && an.Indicators.ATRValue != nil {
		atr = *an.Indicators.ATRValue
	}

	stop := re.selectStop(an, side, entry, atr)
	if stop <= 0 || stop == entry {
		return nil
	}

	t1, t2 := re.selectTargets(an, side, entry, atr)
	if t1 <= 0 {
		return nil
	}

	risk := math.Abs(entry - stop)
	if risk <= 0 {
		return nil
	}
	rr := math.Abs(t1-entry) / risk
	if rr < re.cfg.MinRRRatio {
		re.logger.WithFields(logrus.Fields{
			"symbol": an.Symbol,
			"side":   side,
			"rr":     rr,
		}).Debug("reward to risk below minimum, rejecting plan")
		return nil
	}

	return &TradePlan{Entry: entry, Stop: stop, Target1: t1, Target2: t2, RRRatio: rr}
}

// selectStop takes the tighter of the structural stop at the nearest
// relevant swing extreme and the ATR stop, then clamps the distance to
// the configured maximum fraction of entry.
func (re *RiskEngine) selectStop(an *Analysis, side models.Side, entry, atr float64) float64 {
	var stop float64
	if side == models.SideLong {
		structural := nearestBelow(swingPrices(an.SwingLows), entry)
		stop = structural
		if atr > 0 {
			atrStop := entry - re.cfg.ATRStopMult*atr
			if stop == 0 || atrStop > stop {
				stop = atrStop
			}
		}
		if stop <= 0 {
			return 0
		}
		floor := entry * (1 - re.cfg.MaxStopPct)
		if stop < floor {
			stop = floor
		}
	} else {
		structural := nearestAbove(swingPrices(an.SwingHighs), entry)
		stop = structural
		if atr > 0 {
			atrStop := entry + re.cfg.ATRStopMult*atr
			if stop == 0 || atrStop < stop {
				stop = atrStop
			}
		}
		if stop <= 0 {
			return 0
		}
		ceil := entry * (1 + re.cfg.MaxStopPct)
		if stop > ceil {
			stop = ceil
		}
	}
	return stop
}

// selectTargets prefers volume-weighted levels beyond entry, then raw
// swing levels, then ATR multiples.
func (re *RiskEngine) selectTargets(an *Analysis, side models.Side, entry, atr float64) (t1, t2 float64) {
	var levels []float64
	if side == models.SideLong {
		levels = levelsAbove(an.VWResistance, entry)
		if len(levels) == 0 {
			levels = levelsAbove(an.Resistance, entry)
		}
	} else {
		levels = levelsBelow(an.VWSupport, entry)
		if len(levels) == 0 {
			levels = levelsBelow(an.Support, entry)
		}
	}
	if len(levels) >= 2 {
		return levels[0], levels[1]
	}
	if len(levels) == 1 {
		t1 = levels[0]
	}
	if atr > 0 {
		if side == models.SideLong {
			if t1 == 0 {
				t1 = entry + re.cfg.ATRTarget1Mult*atr
			}
			t2 = entry + re.cfg.ATRTarget2Mult*atr
		} else {
			if t1 == 0 {
				t1 = entry - re.cfg.ATRTarget1Mult*atr
			}
			t2 = entry - re.cfg.ATRTarget2Mult*atr
		}
	}
	return t1, t2
}

// Calculate sizes a position for the given entry and stop. Risk capital
// is halved for MEDIUM confidence and the position is reduced by a
// quarter when ATR% signals a high-volatility regime.
func (re *RiskEngine) Calculate(entry, stop float64, side models.Side, confidence models.Confidence, atrPct *float64) *models.RiskResult {
	if entry <= 0 || stop <= 0 || entry == stop {
		return nil
	}

	account := decimal.NewFromFloat(re.cfg.AccountSize)
	riskUSD := account.Mul(decimal.NewFromFloat(re.cfg.RiskPct)).Div(decimal.NewFromInt(100))
	if confidence == models.ConfidenceMedium {
		riskUSD = riskUSD.Div(decimal.NewFromInt(2))
	}

	distPct := math.Abs(entry-stop) / entry
	position := riskUSD.Div(decimal.NewFromFloat(distPct))
	if atrPct != nil && *atrPct > re.cfg.HighVolATRPct {
		position = position.Mul(decimal.NewFromFloat(0.75))
	}

	leverage := 1
	if ratio := position.Div(account); ratio.GreaterThan(decimal.NewFromInt(1)) {
		leverage = int(ratio.IntPart())
		if leverage < 1 {
			leverage = 1
		}
	}
	if leverage > re.cfg.MaxLeverage {
		leverage = re.cfg.MaxLeverage
	}

	var liq float64
	if side == models.SideLong {
		liq = entry * (1 - 1/float64(leverage))
	} else {
		liq = entry * (1 + 1/float64(leverage))
	}
	warn := 1/float64(leverage) <= re.cfg.LiquidationWarnPct

	return &models.RiskResult{
		RiskUSD:            riskUSD,
		PositionSizeUSD:    position,
		SuggestedLeverage:  leverage,
		LiquidationPrice:   liq,
		LiquidationWarning: warn,
	}
}

func swingPrices(pivots []Pivot) []float64 {
	out := make([]float64, 0, len(pivots))
	for _, p := range pivots {
		out = append(out, p.Price)
	}
	return out
}

// nearestBelow returns the highest level strictly below ref, 0 if none.
func nearestBelow(levels []float64, ref float64) float64 {
	best := 0.0
	for _, l := range levels {
		if l < ref && l > best {
			best = l
		}
	}
	return best
}

// nearestAbove returns the lowest level strictly above ref, 0 if none.
func nearestAbove(levels []float64, ref float64) float64 {
	best := 0.0
	for _, l := range levels {
		if l > ref && (best == 0 || l < best) {
			best = l
		}
	}
	return best
}

func levelsAbove(levels []float64, ref float64) []float64 {
	var out []float64
	for _, l := range levels {
		if l > ref {
			out = append(out, l)
		}
	}
	sort.Float64s(out)
	return out
}

func levelsBelow(levels []float64, ref float64) []float64 {
	var out []float64
	for _, l := range levels {
		if l < ref {
			out = append(out, l)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}
