package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Severity selects the message prefix and lets channels treat dry-run and
// error traffic differently from routine notices.
type Severity string

const (
	SeverityInfo   Severity = "INFO"
	SeverityWarn   Severity = "WARN"
	SeverityError  Severity = "ERROR"
	SeverityBuy    Severity = "BUY"
	SeverityDryRun Severity = "DRY-RUN"
)

// Prefix returns the bracketed tag prepended to outgoing messages.
func (s Severity) Prefix() string {
	switch s {
	case SeverityWarn, SeverityError, SeverityBuy, SeverityDryRun:
		return "[" + string(s) + "]"
	default:
		return "[INFO]"
	}
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Send(ctx context.Context, severity Severity, message string) error
	Name() string
}

// Broadcaster fans a message out to every configured channel. Each channel's
// failure is logged and swallowed so that one broken channel never silences
// the others and never reaches decision logic.
type Broadcaster struct {
	channels []Notifier
	logger   zerolog.Logger
}

// NewBroadcaster builds a best-effort fan-out over the given channels.
func NewBroadcaster(logger zerolog.Logger, channels ...Notifier) *Broadcaster {
	active := make([]Notifier, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			active = append(active, ch)
		}
	}
	return &Broadcaster{
		channels: active,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// Send delivers to all channels, best effort.
func (b *Broadcaster) Send(ctx context.Context, severity Severity, message string) {
	for _, ch := range b.channels {
		if err := ch.Send(ctx, severity, message); err != nil {
			b.logger.Warn().Err(err).
				Str("channel", ch.Name()).
				Str("severity", string(severity)).
				Msg("notification delivery failed")
		}
	}
}
