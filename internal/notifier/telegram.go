package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
	"github.com/tradescan/perpsignal/internal/models"
)

// TelegramNotifier formats signals and ranked lists into alerts and
// delivers them to a single chat. A notifier with no configured token
// is valid and silently drops messages, which keeps local runs simple.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	logger *logrus.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *logrus.Logger) (*TelegramNotifier, error) {
	tn := &TelegramNotifier{logger: logger}
	if cfg.BotToken == "" {
		logger.Warn("telegram bot token not configured, notifications disabled")
		return tn, nil
	}
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat ID: %w", err)
	}
	b, err := bot.New(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	tn.bot = b
	tn.chatID = chatID
	return tn, nil
}

// NotifySignal sends a formatted trade alert.
func (tn *TelegramNotifier) NotifySignal(ctx context.Context, sig *models.Signal, risk *models.RiskResult) error {
	if tn.bot == nil {
		return nil
	}
	return tn.send(ctx, FormatSignal(sig, risk))
}

// NotifyRankedList announces an updated ranked list.
func (tn *TelegramNotifier) NotifyRankedList(ctx context.Context, name string, symbols []string) error {
	if tn.bot == nil {
		return nil
	}
	return tn.send(ctx, FormatRankedList(name, symbols))
}

func (tn *TelegramNotifier) send(ctx context.Context, text string) error {
	_, err := tn.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    tn.chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// FormatSignal renders a trade alert in Markdown.
func FormatSignal(sig *models.Signal, risk *models.RiskResult) string {
	var b strings.Builder
	direction := "LONG"
	if sig.Side == models.SideShort {
		direction = "SHORT"
	}
	fmt.Fprintf(&b, "*%s %s* | %s | %s\n\n", direction, sig.Symbol, sig.SetupType, sig.Confidence)
	fmt.Fprintf(&b, "Entry: %s - %s\n", formatPrice(sig.EntryZone.Low), formatPrice(sig.EntryZone.High))
	fmt.Fprintf(&b, "Stop: %s\n", formatPrice(sig.Stop))
	fmt.Fprintf(&b, "Target 1: %s\n", formatPrice(sig.Target1))
	if sig.Target2 > 0 {
		fmt.Fprintf(&b, "Target 2: %s\n", formatPrice(sig.Target2))
	}
	fmt.Fprintf(&b, "R:R: %.2f\n", sig.RRRatio)

	if risk != nil {
		fmt.Fprintf(&b, "\nRisk: $%s | Position: $%s | Leverage: %dx\n",
			risk.RiskUSD.Round(2), risk.PositionSizeUSD.Round(2), risk.SuggestedLeverage)
		if risk.LiquidationWarning {
			fmt.Fprintf(&b, "⚠️ Liquidation near entry: %s\n", formatPrice(risk.LiquidationPrice))
		}
	}

	fmt.Fprintf(&b, "\nHTF trend: %s | Structure: %s | RSI: %.1f | ADX: %.1f\n",
		sig.Context.TrendHTF, sig.Context.Structure, sig.Context.RSI, sig.Context.ADX)
	if len(sig.Confluence) > 0 {
		fmt.Fprintf(&b, "Confluence (%d): %s\n", len(sig.Confluence), strings.Join(sig.Confluence, ", "))
	}
	return b.String()
}

// FormatRankedList renders a ranked list announcement.
func FormatRankedList(name string, symbols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s updated*\n\n", strings.ReplaceAll(name, "_", " "))
	for i, s := range symbols {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

func formatPrice(v float64) string {
	d := decimal.NewFromFloat(v)
	switch {
	case v >= 100:
		return d.Round(2).String()
	case v >= 1:
		return d.Round(4).String()
	default:
		return d.Round(6).String()
	}
}
