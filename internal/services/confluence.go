package services

import (
	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// ConfluenceScorer counts independent supporting conditions per side.
// The factor order is fixed so signal explanations stay comparable
// between runs.
type ConfluenceScorer struct {
	analysisCfg *config.AnalysisConfig
	setupCfg    *config.SetupConfig
}

func NewConfluenceScorer(analysisCfg *config.AnalysisConfig, setupCfg *config.SetupConfig) *ConfluenceScorer {
	return &ConfluenceScorer{analysisCfg: analysisCfg, setupCfg: setupCfg}
}

// Score evaluates every factor for the side and returns the count plus
// the names of the matched factors.
func (cs *ConfluenceScorer) Score(an *Analysis, side models.Side) (int, []string) {
	var matched []string
	add := func(ok bool, name string) {
		if ok {
			matched = append(matched, name)
		}
	}
	ind := an.Indicators
	long := side == models.SideLong

	add(an.VolumeSpike(cs.analysisCfg.VolumeSpikeMult), "volume_spike")

	if ind != nil && ind.RSI != nil {
		if long {
			add(*ind.RSI > 50, "rsi_above_50")
		} else {
			add(*ind.RSI < 50, "rsi_below_50")
		}
	}

	if ind != nil && ind.MACDHist != nil {
		if long {
			add(ind.MACDTurningPositive || *ind.MACDHist > 0, "macd_bullish")
		} else {
			add(*ind.MACDHist < 0, "macd_bearish")
		}
	}

	if long {
		add(an.AtSupport || an.InBullishFVG, "at_support_or_fvg")
	} else {
		add(an.AtResistance || an.InBearishFVG, "at_resistance_or_fvg")
	}

	if ind != nil && ind.OBVRising != nil {
		if long {
			add(*ind.OBVRising, "obv_rising")
		} else {
			add(!*ind.OBVRising, "obv_falling")
		}
	}

	if ind != nil && ind.StochRSIK != nil {
		if long {
			add(*ind.StochRSIK < 50, "stochrsi_low")
		} else {
			add(*ind.StochRSIK > 50, "stochrsi_high")
		}
	}

	if cs.analysisCfg.EnableDivergence {
		if long {
			add(an.BullishDivergence, "bullish_divergence")
		} else {
			add(an.BearishDivergence, "bearish_divergence")
		}
	}

	if cs.analysisCfg.EnableOrderBlocks {
		price := an.LastBar.Close
		if long {
			add(an.BullishOB != nil && an.BullishOB.Contains(price), "in_bullish_ob")
		} else {
			add(an.BearishOB != nil && an.BearishOB.Contains(price), "in_bearish_ob")
		}
	}

	if long {
		add(an.MSB == MSBBullish, "bullish_msb")
	} else {
		add(an.MSB == MSBBearish, "bearish_msb")
	}

	if cs.analysisCfg.EnableBBSqueeze && ind != nil {
		add(ind.BBSqueeze, "bb_squeeze")
	}

	if ind != nil && ind.ADX != nil {
		add(*ind.ADX >= cs.analysisCfg.ADXStrong, "strong_adx")
	}

	add(an.ATRHealthy(cs.analysisCfg.MinATRPct, cs.analysisCfg.MaxATRPct), "healthy_atr")

	return len(matched), matched
}
