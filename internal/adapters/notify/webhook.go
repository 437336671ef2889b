// Package notify posts plain-text operation notices to a chat webhook.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/example/faultline/internal/ports/secondary"
)

// message is the webhook payload.
type message struct {
	Text string `json:"text"`
}

// Webhook sends notices to a webhook URL. A Webhook with an empty URL
// drops every notice.
type Webhook struct {
	url    string
	client *resty.Client
	logger *zap.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, timeout time.Duration, logger *zap.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json")
	return &Webhook{url: url, client: client, logger: logger}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool { return w != nil && w.url != "" }

// Notify posts text to the webhook.
func (w *Webhook) Notify(ctx context.Context, text string) error {
	if !w.Enabled() {
		return nil
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(message{Text: text}).
		Post(w.url)
	if err != nil {
		w.logger.Warn("webhook call failed", zap.Error(err))
		return fmt.Errorf("failed to post notification: %w", err)
	}
	if resp.IsError() {
		w.logger.Warn("webhook returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	w.logger.Debug("notification sent", zap.Int("status_code", resp.StatusCode()))
	return nil
}

// Ensure Webhook implements the interface
var _ secondary.Notifier = (*Webhook)(nil)
