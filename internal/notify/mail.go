package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"crypto-dca-bot/internal/config"
)

const mailSubject = "dcabot notification"

// MailNotifier delivers messages over SMTP with STARTTLS, the way the
// accumulation reports were always mailed out.
type MailNotifier struct {
	cfg    config.MailConfig
	logger zerolog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailNotifier constructs the mail channel.
func NewMailNotifier(cfg config.MailConfig, logger zerolog.Logger) *MailNotifier {
	return &MailNotifier{
		cfg:    cfg,
		logger: logger.With().Str("component", "notify_mail").Logger(),
		send:   smtp.SendMail,
	}
}

// Name identifies the channel in logs.
func (n *MailNotifier) Name() string { return "mail" }

// Send mails the prefixed message. The context is accepted for interface
// symmetry; net/smtp does not support cancellation mid-session.
func (n *MailNotifier) Send(ctx context.Context, severity Severity, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := mailSubject + " " + severity.Prefix()
	body := severity.Prefix() + " " + message

	var builder strings.Builder
	fmt.Fprintf(&builder, "From: %s\r\n", n.cfg.Username)
	fmt.Fprintf(&builder, "To: %s\r\n", n.cfg.To)
	fmt.Fprintf(&builder, "Subject: %s\r\n", subject)
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	builder.WriteString("\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)

	if err := n.send(addr, auth, n.cfg.Username, []string{n.cfg.To}, []byte(builder.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	n.logger.Debug().Str("severity", string(severity)).Msg("mail delivered")
	return nil
}

var _ Notifier = (*MailNotifier)(nil)
