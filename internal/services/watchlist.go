package services

import (
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

const watchlistMaxScore = 7

// stablecoins are never watchlisted, a pegged price has no structure to
// trade.
var stablecoins = map[string]bool{
	"USDC": true,
	"DAI":  true,
	"BUSD": true,
	"TUSD": true,
	"USDP": true,
	"USDD": true,
	"FRAX": true,
	"LUSD": true,
}

// baseSymbol extracts the base asset: "BTC/USDT:USDT" -> "BTC".
func baseSymbol(symbol string) string {
	base := symbol
	if i := strings.IndexByte(base, '/'); i >= 0 {
		base = base[:i]
	}
	if i := strings.IndexByte(base, ':'); i >= 0 {
		base = base[:i]
	}
	return strings.ToUpper(base)
}

// WatchlistCandidate is the per-symbol input to the watchlist scorer.
// HTF and WTF are the two timeframe analyses the trend-alignment points
// come from; Ticker supplies volume, change and spread for filtering.
type WatchlistCandidate struct {
	Symbol string
	Ticker models.Ticker
	HTF    *Analysis
	WTF    *Analysis
}

// WatchlistEntry is one scored survivor of the watchlist filter.
type WatchlistEntry struct {
	Symbol string
	Score  int
	Rank   float64
}

// WatchlistScorer filters a candidate universe by liquidity and
// volatility health, scores each survivor 0 to 7 on trend quality, and
// ranks by normalized volume times momentum times score share. The
// trend points are direction-agnostic, a clean downtrend is as
// watchable as a clean uptrend.
type WatchlistScorer struct {
	screenerCfg *config.ScreenerConfig
	analysisCfg *config.AnalysisConfig
	logger      *logrus.Logger
}

func NewWatchlistScorer(cfg *config.Config, logger *logrus.Logger) *WatchlistScorer {
	return &WatchlistScorer{
		screenerCfg: &cfg.Screener,
		analysisCfg: &cfg.Analysis,
		logger:      logger,
	}
}

// Build filters, scores and ranks the universe, returning at most
// MaxCoins entries, strongest first.
func (ws *WatchlistScorer) Build(candidates []WatchlistCandidate) []WatchlistEntry {
	maxVolume := 0.0
	for _, c := range candidates {
		if c.Ticker.Volume > maxVolume {
			maxVolume = c.Ticker.Volume
		}
	}
	if maxVolume <= 0 {
		return nil
	}

	var entries []WatchlistEntry
	for _, c := range candidates {
		if !ws.passesFilters(c) {
			continue
		}
		score := ws.score(c)
		if score < ws.screenerCfg.WatchlistMinScore {
			continue
		}
		volNorm := c.Ticker.Volume / maxVolume
		rank := volNorm * math.Abs(c.Ticker.Percentage) * float64(score) / watchlistMaxScore
		entries = append(entries, WatchlistEntry{Symbol: c.Symbol, Score: score, Rank: rank})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Rank > entries[j].Rank
	})
	if len(entries) > ws.screenerCfg.MaxCoins {
		entries = entries[:ws.screenerCfg.MaxCoins]
	}
	return entries
}

func (ws *WatchlistScorer) passesFilters(c WatchlistCandidate) bool {
	t := c.Ticker
	if t.Volume < ws.screenerCfg.MinVolume {
		return false
	}
	if math.Abs(t.Percentage) < ws.screenerCfg.MinPriceChangePct {
		return false
	}
	if t.SpreadPct() > ws.screenerCfg.MaxSpreadPct {
		return false
	}
	if c.WTF == nil || !c.WTF.ATRHealthy(ws.analysisCfg.MinATRPct, ws.analysisCfg.MaxATRPct) {
		return false
	}
	return true
}

// score awards 2 points per timeframe for price clear of EMA50, 1 for
// ADX strength, 1 for non-range structure, 1 for rising volume.
func (ws *WatchlistScorer) score(c WatchlistCandidate) int {
	score := timeframeTrendScore(c.HTF) + timeframeTrendScore(c.WTF)

	if c.WTF != nil && c.WTF.Indicators != nil && c.WTF.Indicators.ADX != nil &&
		*c.WTF.Indicators.ADX >= ws.screenerCfg.WatchlistADXMin {
		score++
	}
	if c.WTF != nil && c.WTF.Trend != TrendRange {
		score++
	}
	if c.WTF != nil && c.WTF.VolumeRatio != nil && *c.WTF.VolumeRatio > 1 {
		score++
	}
	return score
}

// timeframeTrendScore awards 2 when price trades clear of EMA50 on
// either side. Trending down counts the same as trending up.
func timeframeTrendScore(an *Analysis) int {
	if an == nil || an.Indicators == nil || an.Indicators.EMA50 == nil {
		return 0
	}
	price := an.LastBar.Close
	ema50 := *an.Indicators.EMA50
	if price > ema50 || price < ema50 {
		return 2
	}
	return 0
}
