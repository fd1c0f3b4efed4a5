package smtp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
	"github.com/wneessen/go-mail"
)

// Mailer sends transactional email over SMTP.
type Mailer struct {
	from     string
	fromName string
	client   *mail.Client
}

func NewMailer(cfg *config.Config) (*Mailer, error) {
	opts := []mail.Option{mail.WithPort(cfg.SMTPPort)}
	if cfg.ProviderTimeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.ProviderTimeout))
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	if cfg.SMTPTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Mailer{from: cfg.SenderEmail, fromName: cfg.SenderName, client: client}, nil
}

func (m *Mailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	mm, err := buildMessage(m.from, m.fromName, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("smtp send: %w: %w", domain.ErrProviderCallFailed, err)
	}
	slog.Info("smtp send success", "to", msg.To)
	return nil
}

func buildMessage(from, fromName string, msg domain.EmailMessage) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.FromFormat(fromName, from); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := mm.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("set to address: %w: %w", domain.ErrValidationFailed, err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	return mm, nil
}
