package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// BarProvider supplies market data for a symbol.
type BarProvider interface {
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error)
	FetchTicker(ctx context.Context, symbol string) (models.Ticker, error)
}

// SignalSink delivers an emitted signal to the outside world.
type SignalSink interface {
	NotifySignal(ctx context.Context, sig *models.Signal, risk *models.RiskResult) error
	NotifyRankedList(ctx context.Context, name string, symbols []string) error
}

// SignalStore persists emitted signals.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig *models.Signal) error
}

// RankStore persists ranked symbol lists and reports whether the list
// changed since the previous save.
type RankStore interface {
	SaveList(ctx context.Context, name string, symbols []string) (bool, error)
}

// ScanState is the process-wide state that survives between scans:
// per-symbol cooldowns, the daily signal counter and the active
// watchlist. The scan loop is the only writer; the HTTP surface reads
// stats, hence the mutex.
type ScanState struct {
	mu           sync.Mutex
	lastSignalAt map[string]time.Time
	lastSetup    map[string]models.SetupType
	dailyCount   int
	dailyDate    string
	watchlist    []string
	shutdown     bool
}

func NewScanState() *ScanState {
	return &ScanState{
		lastSignalAt: make(map[string]time.Time),
		lastSetup:    make(map[string]models.SetupType),
	}
}

// CanSignal reports whether a new signal for the symbol is allowed under
// the cooldown and the daily cap. The daily counter resets at the UTC
// day boundary.
func (st *ScanState) CanSignal(symbol string, cooldown time.Duration, maxPerDay int, now time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rollDayLocked(now)
	if st.dailyCount >= maxPerDay {
		return false
	}
	if last, ok := st.lastSignalAt[symbol]; ok && now.Sub(last) < cooldown {
		return false
	}
	return true
}

// Record notes an emitted signal for cooldown and daily accounting.
func (st *ScanState) Record(symbol string, setup models.SetupType, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rollDayLocked(now)
	st.lastSignalAt[symbol] = now
	st.lastSetup[symbol] = setup
	st.dailyCount++
}

func (st *ScanState) rollDayLocked(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day != st.dailyDate {
		st.dailyDate = day
		st.dailyCount = 0
	}
}

// RequestShutdown asks the scan loop to stop after the symbol currently
// being evaluated.
func (st *ScanState) RequestShutdown() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.shutdown = true
}

func (st *ScanState) ShuttingDown() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.shutdown
}

// SetWatchlist replaces the active watchlist.
func (st *ScanState) SetWatchlist(symbols []string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.watchlist = append([]string(nil), symbols...)
}

func (st *ScanState) Watchlist() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string(nil), st.watchlist...)
}

// DailyCount returns today's emitted-signal count.
func (st *ScanState) DailyCount(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.rollDayLocked(now)
	return st.dailyCount
}

// LastSetup returns the setup type last emitted for a symbol.
func (st *ScanState) LastSetup(symbol string) (models.SetupType, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.lastSetup[symbol]
	return s, ok
}

// Scanner drives one full scan cycle: fetch bars per watchlist symbol,
// analyze both timeframes, generate and deliver signals, then run the
// screeners over the same universe. A symbol failure is logged and
// skipped, never aborting the batch.
type Scanner struct {
	cfg       *config.Config
	analyzer  *Analyzer
	generator *SignalGenerator
	screener  *Screener
	watchlist *WatchlistScorer
	provider  BarProvider
	sink      SignalSink
	signals   SignalStore
	ranks     RankStore
	state     *ScanState
	logger    *logrus.Logger
}

func NewScanner(cfg *config.Config, provider BarProvider, sink SignalSink, signals SignalStore, ranks RankStore, logger *logrus.Logger) *Scanner {
	return &Scanner{
		cfg:       cfg,
		analyzer:  NewAnalyzer(&cfg.Analysis, logger),
		generator: NewSignalGenerator(cfg, logger),
		screener:  NewScreener(cfg, logger),
		watchlist: NewWatchlistScorer(cfg, logger),
		provider:  provider,
		sink:      sink,
		signals:   signals,
		ranks:     ranks,
		state:     NewScanState(),
		logger:    logger,
	}
}

// State exposes the persistent scan state for the HTTP surface and for
// shutdown wiring.
func (s *Scanner) State() *ScanState {
	return s.state
}

// Scan evaluates every watchlist symbol once. The shutdown flag is
// checked between symbols so the current evaluation always completes.
func (s *Scanner) Scan(ctx context.Context) {
	symbols := s.state.Watchlist()
	s.logger.WithField("symbols", len(symbols)).Info("starting scan cycle")

	for _, symbol := range symbols {
		if s.state.ShuttingDown() {
			s.logger.Info("shutdown requested, stopping scan")
			return
		}
		if err := s.scanSymbol(ctx, symbol); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("symbol scan failed, skipping")
		}
	}
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) error {
	now := time.Now().UTC()
	if !s.state.CanSignal(symbol, time.Duration(s.cfg.Scan.CooldownMinutes)*time.Minute,
		s.cfg.Scan.MaxSignalsPerDay, now) {
		return nil
	}

	htfBars, err := s.provider.FetchBars(ctx, symbol, s.cfg.Scan.HigherTimeframe, s.cfg.Analysis.TargetBars)
	if err != nil {
		return err
	}
	wtfBars, err := s.provider.FetchBars(ctx, symbol, s.cfg.Scan.WorkingTimeframe, s.cfg.Analysis.TargetBars)
	if err != nil {
		return err
	}

	htf := s.analyzer.Analyze(symbol, s.cfg.Scan.HigherTimeframe, htfBars)
	wtf := s.analyzer.Analyze(symbol, s.cfg.Scan.WorkingTimeframe, wtfBars)
	if htf == nil || wtf == nil {
		return nil
	}

	sig := s.generator.Generate(htf, wtf)
	if sig == nil {
		return nil
	}

	var atrPct *float64
	if wtf.Indicators != nil {
		atrPct = wtf.Indicators.ATRPct
	}
	risk := s.generator.Risk().Calculate(wtf.LastBar.Close, sig.Stop, sig.Side, sig.Confidence, atrPct)

	if s.signals != nil {
		if err := s.signals.SaveSignal(ctx, sig); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("failed to persist signal")
		}
	}
	if s.sink != nil {
		if err := s.sink.NotifySignal(ctx, sig, risk); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("failed to deliver signal")
		}
	}
	s.state.Record(symbol, sig.SetupType, now)
	return nil
}

// RunScreeners evaluates the sweep screeners over the universe and
// persists both ranked lists, notifying when a list changed.
func (s *Scanner) RunScreeners(ctx context.Context, symbols []string) {
	var candidates []ScreenerCandidate
	for _, symbol := range symbols {
		if s.state.ShuttingDown() {
			return
		}
		c, err := s.screenCandidate(ctx, symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Debug("screener fetch failed, skipping")
			continue
		}
		candidates = append(candidates, c)
	}

	s.persistRanking(ctx, "sweeps", s.screener.RankBySweepCount(candidates))
	s.persistRanking(ctx, "rsi_extremes", s.screener.RankByRSIExtremity(candidates))
}

func (s *Scanner) screenCandidate(ctx context.Context, symbol string) (ScreenerCandidate, error) {
	c := ScreenerCandidate{Symbol: symbol, Sweeps: make(map[string]models.SweepResult)}
	for _, tf := range s.cfg.Screener.Timeframes {
		bars, err := s.provider.FetchBars(ctx, symbol, tf, s.cfg.Analysis.TargetBars)
		if err != nil {
			return c, err
		}
		if len(bars) < s.cfg.Analysis.MinBars {
			continue
		}
		an := s.analyzer.Analyze(symbol, tf, bars)
		var rsi *float64
		if an != nil && an.Indicators != nil {
			rsi = an.Indicators.RSI
		}
		deviation := contains(s.cfg.Analysis.DeviationTimeframes, tf)
		c.Sweeps[tf] = s.screener.ScanSweep(symbol, tf, bars, rsi, deviation)

		if tf == s.cfg.Screener.ReferenceTimeframe && an != nil {
			if an.VolumeRatio != nil {
				c.VolumeRatio = *an.VolumeRatio
			}
			if an.Indicators != nil {
				c.RSI = an.Indicators.RSI
			}
		}
	}
	return c, nil
}

func (s *Scanner) persistRanking(ctx context.Context, name string, ranked []RankedSymbol) {
	symbols := make([]string, 0, len(ranked))
	for _, r := range ranked {
		symbols = append(symbols, r.Symbol)
	}
	if s.ranks == nil {
		return
	}
	changed, err := s.ranks.SaveList(ctx, name, symbols)
	if err != nil {
		s.logger.WithError(err).WithField("list", name).Warn("failed to persist ranked list")
		return
	}
	if changed && s.sink != nil && len(symbols) > 0 {
		if err := s.sink.NotifyRankedList(ctx, name, symbols); err != nil {
			s.logger.WithError(err).WithField("list", name).Warn("failed to announce ranked list")
		}
	}
}

// RefreshWatchlist rebuilds the watchlist from a symbol universe using
// the trend-quality scorer. Stablecoins and blacklisted symbols are
// skipped before any fetching happens.
func (s *Scanner) RefreshWatchlist(ctx context.Context, universe []string) {
	var candidates []WatchlistCandidate
	for _, symbol := range universe {
		if s.state.ShuttingDown() {
			return
		}
		base := baseSymbol(symbol)
		if stablecoins[base] || contains(s.cfg.Screener.Blacklist, symbol) || contains(s.cfg.Screener.Blacklist, base) {
			continue
		}
		ticker, err := s.provider.FetchTicker(ctx, symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Debug("ticker fetch failed, skipping")
			continue
		}
		htfBars, err := s.provider.FetchBars(ctx, symbol, s.cfg.Scan.HigherTimeframe, s.cfg.Analysis.TargetBars)
		if err != nil {
			continue
		}
		wtfBars, err := s.provider.FetchBars(ctx, symbol, s.cfg.Scan.WorkingTimeframe, s.cfg.Analysis.TargetBars)
		if err != nil {
			continue
		}
		candidates = append(candidates, WatchlistCandidate{
			Symbol: symbol,
			Ticker: ticker,
			HTF:    s.analyzer.Analyze(symbol, s.cfg.Scan.HigherTimeframe, htfBars),
			WTF:    s.analyzer.Analyze(symbol, s.cfg.Scan.WorkingTimeframe, wtfBars),
		})
	}

	entries := s.watchlist.Build(candidates)
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		symbols = append(symbols, e.Symbol)
	}
	s.state.SetWatchlist(symbols)
	if s.ranks != nil {
		if _, err := s.ranks.SaveList(ctx, "watchlist", symbols); err != nil {
			s.logger.WithError(err).Warn("failed to persist watchlist")
		}
	}
	s.logger.WithField("size", len(symbols)).Info("watchlist refreshed")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
