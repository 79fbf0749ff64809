package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tradescan/perpsignal/internal/utils"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Exchange    ExchangeConfig `mapstructure:"exchange"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
	Setup       SetupConfig    `mapstructure:"setup"`
	Risk        RiskConfig     `mapstructure:"risk"`
	Screener    ScreenerConfig `mapstructure:"screener"`
	Scan        ScanConfig     `mapstructure:"scan"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ExchangeConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	Timeout    int    `mapstructure:"timeout"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// AnalysisConfig holds the market-structure detection thresholds. Two pivot
// parameterizations are carried: the asymmetric wide-left window used for
// structure and liquidity work, and the narrow symmetric window used by the
// fast screeners.
type AnalysisConfig struct {
	MinBars             int      `mapstructure:"min_bars"`
	TargetBars          int      `mapstructure:"target_bars"`
	PivotLeft           int      `mapstructure:"pivot_left"`
	PivotRight          int      `mapstructure:"pivot_right"`
	ScreenerPivotLen    int      `mapstructure:"screener_pivot_len"`
	SwingLookback       int      `mapstructure:"swing_lookback"`
	MaxPivots           int      `mapstructure:"max_pivots"`
	VolumeMAPeriod      int      `mapstructure:"volume_ma_period"`
	VolumeSpikeMult     float64  `mapstructure:"volume_spike_mult"`
	MinATRPct           float64  `mapstructure:"min_atr_pct"`
	MaxATRPct           float64  `mapstructure:"max_atr_pct"`
	ADXStrong           float64  `mapstructure:"adx_strong"`
	ADXVeryStrong       float64  `mapstructure:"adx_very_strong"`
	LevelProximityPct   float64  `mapstructure:"level_proximity_pct"`
	DevLookbackBars     int      `mapstructure:"dev_lookback_bars"`
	DevMinRejectPct     float64  `mapstructure:"dev_min_reject_pct"`
	DevWickBodyRatio    float64  `mapstructure:"dev_wick_body_ratio"`
	DevWickRangeRatio   float64  `mapstructure:"dev_wick_range_ratio"`
	DevRSIFilter        bool     `mapstructure:"dev_rsi_filter"`
	RSIExtremeLow       float64  `mapstructure:"rsi_extreme_low"`
	RSIExtremeHigh      float64  `mapstructure:"rsi_extreme_high"`
	EnableDivergence    bool     `mapstructure:"enable_divergence"`
	EnableOrderBlocks   bool     `mapstructure:"enable_order_blocks"`
	EnableBBSqueeze     bool     `mapstructure:"enable_bb_squeeze"`
	DeviationTimeframes []string `mapstructure:"deviation_timeframes"`
}

// SetupConfig holds the setup-classification thresholds.
type SetupConfig struct {
	RetestTolerance     float64 `mapstructure:"retest_tolerance"`
	WickBodyRatio       float64 `mapstructure:"wick_body_ratio"`
	TCRSILongMin        float64 `mapstructure:"tc_rsi_long_min"`
	TCRSILongMax        float64 `mapstructure:"tc_rsi_long_max"`
	TCRSIShortMin       float64 `mapstructure:"tc_rsi_short_min"`
	TCRSIShortMax       float64 `mapstructure:"tc_rsi_short_max"`
	EMAProximityPct     float64 `mapstructure:"ema_proximity_pct"`
	MinConfluence       int     `mapstructure:"min_confluence"`
	HighConfluence      int     `mapstructure:"high_confluence"`
	ADXMinSignal        float64 `mapstructure:"adx_min_signal"`
	MinVolumeRatio      float64 `mapstructure:"min_volume_ratio"`
	ConfidenceThreshold string  `mapstructure:"confidence_threshold"`
	QualityBonusRR      float64 `mapstructure:"quality_bonus_rr"`
}

// RiskConfig holds position sizing and stop/target parameters.
type RiskConfig struct {
	AccountSize        float64 `mapstructure:"account_size"`
	RiskPct            float64 `mapstructure:"risk_pct"`
	MaxStopPct         float64 `mapstructure:"max_stop_pct"`
	MinRRRatio         float64 `mapstructure:"min_rr_ratio"`
	MaxLeverage        int     `mapstructure:"max_leverage"`
	LiquidationWarnPct float64 `mapstructure:"liquidation_warn_pct"`
	ATRStopMult        float64 `mapstructure:"atr_stop_mult"`
	ATRTarget1Mult     float64 `mapstructure:"atr_target1_mult"`
	ATRTarget2Mult     float64 `mapstructure:"atr_target2_mult"`
	HighVolATRPct      float64 `mapstructure:"high_vol_atr_pct"`
}

// ScreenerConfig holds the ranking-policy thresholds.
type ScreenerConfig struct {
	MinVolume          float64  `mapstructure:"min_volume"`
	MinPriceChangePct  float64  `mapstructure:"min_price_change_pct"`
	MaxSpreadPct       float64  `mapstructure:"max_spread_pct"`
	WatchlistADXMin    float64  `mapstructure:"watchlist_adx_min"`
	WatchlistMinScore  int      `mapstructure:"watchlist_min_score"`
	MaxCoins           int      `mapstructure:"max_coins"`
	TopN               int      `mapstructure:"top_n"`
	RSIStrong          float64  `mapstructure:"rsi_strong"`
	RSIWeak            float64  `mapstructure:"rsi_weak"`
	Timeframes         []string `mapstructure:"timeframes"`
	ReferenceTimeframe string   `mapstructure:"reference_timeframe"`
	Blacklist          []string `mapstructure:"blacklist"`
}

// ScanConfig holds orchestration settings for the periodic scan loop.
type ScanConfig struct {
	Interval         string `mapstructure:"interval"`
	WatchlistRefresh string `mapstructure:"watchlist_refresh"`
	CooldownMinutes  int    `mapstructure:"cooldown_minutes"`
	MaxSignalsPerDay int    `mapstructure:"max_signals_per_day"`
	HigherTimeframe  string `mapstructure:"higher_timeframe"`
	WorkingTimeframe string `mapstructure:"working_timeframe"`
}

// ScanInterval parses the scan interval, falling back to hourly.
func (c ScanConfig) ScanInterval() time.Duration {
	if d, err := time.ParseDuration(c.Interval); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

// RefreshInterval parses the watchlist refresh cadence, falling back to
// six hours.
func (c ScanConfig) RefreshInterval() time.Duration {
	if d, err := time.ParseDuration(c.WatchlistRefresh); err == nil && d > 0 {
		return d
	}
	return 6 * time.Hour
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN: %w", err)
	}
	if err := viper.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_CHAT_ID: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks cross-field consistency of the loaded thresholds.
func (c *Config) Validate() error {
	if c.Analysis.MinBars < c.Analysis.PivotLeft+c.Analysis.PivotRight+1 {
		return utils.NewValidationErrorf("analysis.min_bars", "%d too small for pivot window %d/%d",
			c.Analysis.MinBars, c.Analysis.PivotLeft, c.Analysis.PivotRight)
	}
	if c.Analysis.MinATRPct >= c.Analysis.MaxATRPct {
		return utils.NewValidationErrorf("analysis.min_atr_pct", "must be below max_atr_pct, got %.2f/%.2f",
			c.Analysis.MinATRPct, c.Analysis.MaxATRPct)
	}
	if c.Risk.MaxLeverage < 1 {
		return utils.NewValidationErrorf("risk.max_leverage", "must be at least 1, got %d", c.Risk.MaxLeverage)
	}
	if c.Risk.MinRRRatio <= 0 {
		return utils.NewValidationErrorf("risk.min_rr_ratio", "must be positive, got %.2f", c.Risk.MinRRRatio)
	}
	switch c.Setup.ConfidenceThreshold {
	case "HIGH", "MEDIUM":
	default:
		return utils.NewValidationErrorf("setup.confidence_threshold", "must be HIGH or MEDIUM, got %q", c.Setup.ConfidenceThreshold)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "perpsignal")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Exchange gateway
	viper.SetDefault("exchange.service_url", "http://localhost:3001")
	viper.SetDefault("exchange.timeout", 30)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Analysis
	viper.SetDefault("analysis.min_bars", 50)
	viper.SetDefault("analysis.target_bars", 200)
	viper.SetDefault("analysis.pivot_left", 7)
	viper.SetDefault("analysis.pivot_right", 3)
	viper.SetDefault("analysis.screener_pivot_len", 5)
	viper.SetDefault("analysis.swing_lookback", 30)
	viper.SetDefault("analysis.max_pivots", 10)
	viper.SetDefault("analysis.volume_ma_period", 20)
	viper.SetDefault("analysis.volume_spike_mult", 1.5)
	viper.SetDefault("analysis.min_atr_pct", 1.0)
	viper.SetDefault("analysis.max_atr_pct", 8.0)
	viper.SetDefault("analysis.adx_strong", 25.0)
	viper.SetDefault("analysis.adx_very_strong", 35.0)
	viper.SetDefault("analysis.level_proximity_pct", 0.005)
	viper.SetDefault("analysis.dev_lookback_bars", 4)
	viper.SetDefault("analysis.dev_min_reject_pct", 0.1)
	viper.SetDefault("analysis.dev_wick_body_ratio", 1.5)
	viper.SetDefault("analysis.dev_wick_range_ratio", 0.5)
	viper.SetDefault("analysis.dev_rsi_filter", false)
	viper.SetDefault("analysis.rsi_extreme_low", 30.0)
	viper.SetDefault("analysis.rsi_extreme_high", 70.0)
	viper.SetDefault("analysis.enable_divergence", true)
	viper.SetDefault("analysis.enable_order_blocks", true)
	viper.SetDefault("analysis.enable_bb_squeeze", true)
	viper.SetDefault("analysis.deviation_timeframes", []string{"4h", "1h"})

	// Setup classification
	viper.SetDefault("setup.retest_tolerance", 0.003)
	viper.SetDefault("setup.wick_body_ratio", 0.6)
	viper.SetDefault("setup.tc_rsi_long_min", 35.0)
	viper.SetDefault("setup.tc_rsi_long_max", 55.0)
	viper.SetDefault("setup.tc_rsi_short_min", 45.0)
	viper.SetDefault("setup.tc_rsi_short_max", 65.0)
	viper.SetDefault("setup.ema_proximity_pct", 0.01)
	viper.SetDefault("setup.min_confluence", 2)
	viper.SetDefault("setup.high_confluence", 4)
	viper.SetDefault("setup.adx_min_signal", 20.0)
	viper.SetDefault("setup.min_volume_ratio", 0.5)
	viper.SetDefault("setup.confidence_threshold", "MEDIUM")
	viper.SetDefault("setup.quality_bonus_rr", 3.0)

	// Risk
	viper.SetDefault("risk.account_size", 1000.0)
	viper.SetDefault("risk.risk_pct", 2.0)
	viper.SetDefault("risk.max_stop_pct", 0.025)
	viper.SetDefault("risk.min_rr_ratio", 1.5)
	viper.SetDefault("risk.max_leverage", 5)
	viper.SetDefault("risk.liquidation_warn_pct", 0.20)
	viper.SetDefault("risk.atr_stop_mult", 1.5)
	viper.SetDefault("risk.atr_target1_mult", 1.5)
	viper.SetDefault("risk.atr_target2_mult", 3.0)
	viper.SetDefault("risk.high_vol_atr_pct", 5.0)

	// Screener
	viper.SetDefault("screener.min_volume", 300000.0)
	viper.SetDefault("screener.min_price_change_pct", 2.0)
	viper.SetDefault("screener.max_spread_pct", 0.1)
	viper.SetDefault("screener.watchlist_adx_min", 25.0)
	viper.SetDefault("screener.watchlist_min_score", 4)
	viper.SetDefault("screener.max_coins", 30)
	viper.SetDefault("screener.top_n", 10)
	viper.SetDefault("screener.rsi_strong", 60.0)
	viper.SetDefault("screener.rsi_weak", 40.0)
	viper.SetDefault("screener.timeframes", []string{"1d", "4h", "1h"})
	viper.SetDefault("screener.reference_timeframe", "4h")
	viper.SetDefault("screener.blacklist", []string{})

	// Scan loop
	viper.SetDefault("scan.interval", "1h")
	viper.SetDefault("scan.watchlist_refresh", "6h")
	viper.SetDefault("scan.cooldown_minutes", 240)
	viper.SetDefault("scan.max_signals_per_day", 12)
	viper.SetDefault("scan.higher_timeframe", "1d")
	viper.SetDefault("scan.working_timeframe", "4h")
}
