package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"abc-inventory-alerts/internal/diff"
)

// Notifier delivers one notification event to one subscriber.
type Notifier interface {
	Send(ctx context.Context, subscriberID int64, event *diff.Event) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram dispatcher.
func NewTelegramNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Send calls the sendMessage API with a MarkdownV2 rendering of the event.
func (n *TelegramNotifier) Send(ctx context.Context, subscriberID int64, event *diff.Event) error {
	payload := map[string]string{
		"chat_id":    fmt.Sprintf("%d", subscriberID),
		"text":       renderMessage(event),
		"parse_mode": "MarkdownV2",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Int64("subscriber", subscriberID).
		Str("product", event.ProductKey).
		Str("kind", string(event.Kind)).
		Msg("notification sent")
	return nil
}

func renderMessage(event *diff.Event) string {
	builder := strings.Builder{}
	builder.WriteString(header(event.Kind))
	builder.WriteString("\n\n")

	builder.WriteString(fmt.Sprintf("🍾 *%s*", EscapeMarkdown(event.ProductName)))
	if event.ProductSize != "" {
		builder.WriteString(fmt.Sprintf(" • 📏 %s", EscapeMarkdown(event.ProductSize)))
	}
	builder.WriteString("\n")

	if event.NewPrice.IsPositive() {
		builder.WriteString(fmt.Sprintf("💰 %s\n", EscapeMarkdown("$"+event.NewPrice.StringFixed(2))))
	}
	builder.WriteString(fmt.Sprintf("📌 %s\n", EscapeMarkdown(event.Detail())))

	if stores := storeLines(event); stores != "" {
		builder.WriteString(stores)
	}

	if event.Keyword != "" {
		builder.WriteString(fmt.Sprintf("\n_matched your watch for '%s'_", EscapeMarkdown(event.Keyword)))
	}

	return builder.String()
}

func header(kind diff.Kind) string {
	switch kind {
	case diff.KindBecameAvailable:
		return "🔔 *Item Available\\!*"
	case diff.KindNewStore:
		return "🔔 *New Store Has Stock\\!*"
	case diff.KindPriceDrop:
		return "🔔 *Price Drop\\!*"
	case diff.KindLowStock:
		return "⚠️ *Low Stock\\!*"
	case diff.KindOutOfStock:
		return "❌ *Out of Stock*"
	default:
		return "🔔 *Item Update\\!*"
	}
}

const maxStoreLines = 3

func storeLines(event *diff.Event) string {
	stores := event.NewStores
	if event.Kind == diff.KindNewStore && len(event.AddedStores) > 0 {
		stores = event.AddedStores
	}
	if len(stores) == 0 {
		return ""
	}

	builder := strings.Builder{}
	for i, store := range stores {
		if i == maxStoreLines {
			builder.WriteString(fmt.Sprintf("  _\\.\\.\\. and %d more_\n", len(stores)-maxStoreLines))
			break
		}
		builder.WriteString(fmt.Sprintf("📍 %s\n", EscapeMarkdown(store)))
	}
	return builder.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// EscapeMarkdown escapes the characters MarkdownV2 treats as markup.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

var _ Notifier = (*TelegramNotifier)(nil)
