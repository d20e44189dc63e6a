// Package notifications delivers operational messages to Discord and
// Telegram. Delivery is best effort: a notification failure is logged and
// never propagated into the dispatch path.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const telegramAPIBase = "https://api.telegram.org"

// Notifier sends messages to the configured channels. Channels with empty
// configuration are skipped silently.
type Notifier struct {
	client *http.Client
	log    zerolog.Logger

	discordWebhookURL string
	telegramToken     string
	telegramChatID    string
	telegramBase      string
}

// NewNotifier creates a notifier. Any of the channel settings may be empty.
func NewNotifier(discordWebhookURL, telegramToken, telegramChatID string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		client:            &http.Client{Timeout: 10 * time.Second},
		log:               logger.With().Str("component", "notify").Logger(),
		discordWebhookURL: discordWebhookURL,
		telegramToken:     telegramToken,
		telegramChatID:    telegramChatID,
		telegramBase:      telegramAPIBase,
	}
}

// Enabled reports whether at least one channel is configured.
func (n *Notifier) Enabled() bool {
	return n.discordWebhookURL != "" || (n.telegramToken != "" && n.telegramChatID != "")
}

// Notify sends the message to every configured channel. Errors are logged
// per channel and never returned.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if message == "" {
		return
	}

	if n.discordWebhookURL != "" {
		if err := n.withRetry(ctx, func() error { return n.sendDiscord(ctx, message) }); err != nil {
			n.log.Warn().Err(err).Msg("discord notification failed")
		}
	}

	if n.telegramToken != "" && n.telegramChatID != "" {
		if err := n.withRetry(ctx, func() error { return n.sendTelegram(ctx, message) }); err != nil {
			n.log.Warn().Err(err).Msg("telegram notification failed")
		}
	}
}

// withRetry retries transient failures twice with exponential backoff.
func (n *Notifier) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(op, policy)
}

func (n *Notifier) sendDiscord(ctx context.Context, message string) error {
	body, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.discordWebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) sendTelegram(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.telegramBase, n.telegramToken)
	form := url.Values{
		"chat_id": {n.telegramChatID},
		"text":    {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
