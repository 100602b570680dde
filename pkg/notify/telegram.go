// Package notify delivers best-effort operator notifications via the
// Telegram bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Telegram sends messages to a single chat. Delivery is fire-and-forget:
// failures are logged, never retried.
type Telegram struct {
	apiURL     string
	token      string
	chatID     string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewTelegram creates a Telegram notifier. Empty credentials are allowed;
// Send then logs and skips delivery.
func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	return &Telegram{
		apiURL:     "https://api.telegram.org",
		token:      token,
		chatID:     chatID,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewTelegramWithURL creates a notifier against a custom API base URL.
func NewTelegramWithURL(apiURL, token, chatID string, logger *slog.Logger) *Telegram {
	t := NewTelegram(token, chatID, logger)
	t.apiURL = strings.TrimSuffix(apiURL, "/")
	return t
}

// Send delivers a MarkdownV2 message to the configured chat.
func (t *Telegram) Send(ctx context.Context, message string) error {
	if t.token == "" || t.chatID == "" {
		t.logger.Warn("telegram credentials not configured, skipping notification")
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API error: %s: %s", resp.Status, body)
	}

	return nil
}

// markdownEscapes are the characters MarkdownV2 requires escaping for.
const markdownEscapes = `_*[]()~` + "`" + `>#+-=|{}.!`

// EscapeMarkdown escapes a string for inclusion in a MarkdownV2 message.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownEscapes, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
