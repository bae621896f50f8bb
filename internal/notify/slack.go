package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// SlackNotifier 通过 incoming webhook 推送消息。
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewSlackNotifier constructs the Slack channel.
func NewSlackNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "notify_slack").Logger(),
	}
}

// Name identifies the channel in logs.
func (n *SlackNotifier) Name() string { return "slack" }

// Send posts the prefixed message to the webhook.
func (n *SlackNotifier) Send(ctx context.Context, severity Severity, message string) error {
	payload, err := json.Marshal(map[string]string{
		"text": severity.Prefix() + " " + message,
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}

	n.logger.Debug().Str("severity", string(severity)).Msg("slack message delivered")
	return nil
}

var _ Notifier = (*SlackNotifier)(nil)
