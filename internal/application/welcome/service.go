package welcome

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"time"

	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
	"github.com/verify-emails/internal/pkg/token"
	"github.com/verify-emails/internal/pkg/validate"
)

type Service interface {
	SendWelcome(ctx context.Context, req domain.SendWelcomeRequest) (*domain.WelcomeResult, error)
}

// Mailer delivers one email. Both the Brevo client and the SMTP mailer satisfy it.
type Mailer interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

var bodyTmpl = template.Must(template.New("welcome").Parse(`<h2>Hi {{.Name}},</h2>
<p>Welcome to <b>{{.Product}}</b>!</p>
<p>Please confirm your email address to finish setting up your account:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>This link expires in {{.Hours}} hours.</p>
`))

type service struct {
	cfg    *config.Config
	mailer Mailer
	now    func() time.Time
}

// NewService builds the welcome service. A nil mailer means no email transport is
// configured; SendWelcome then returns the verification link instead of sending it.
func NewService(cfg *config.Config, mailer Mailer) Service {
	return &service{cfg: cfg, mailer: mailer, now: time.Now}
}

func (s *service) SendWelcome(ctx context.Context, req domain.SendWelcomeRequest) (*domain.WelcomeResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if s.cfg.TokenSecret == "" {
		return nil, fmt.Errorf("token secret not set: %w", domain.ErrServerMisconfigured)
	}

	tok := token.Encode(req.AccountID, s.cfg.TokenTTL, s.cfg.TokenSecret, s.now())
	link := VerifyLink(s.cfg.VerifyBase, tok)

	if s.mailer == nil {
		slog.Info("no email transport configured, returning verification link", "account_id", req.AccountID)
		return &domain.WelcomeResult{Sent: false, Link: link}, nil
	}

	msg, err := s.buildMessage(req, link)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnexpected, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Error("welcome email failed", "account_id", req.AccountID, "err", err, "details", domain.ProviderDetails(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrEmailSendFailed, err)
	}
	slog.Info("welcome email sent", "account_id", req.AccountID)
	return &domain.WelcomeResult{Sent: true}, nil
}

func (s *service) buildMessage(req domain.SendWelcomeRequest, link string) (domain.EmailMessage, error) {
	name := req.Name
	if name == "" {
		name = "there"
	}
	var buf bytes.Buffer
	err := bodyTmpl.Execute(&buf, struct {
		Name, Product string
		Link          template.URL
		Hours         int
	}{
		Name:    name,
		Product: s.cfg.SenderName,
		Link:    template.URL(link),
		Hours:   int(s.cfg.TokenTTL.Hours()),
	})
	if err != nil {
		return domain.EmailMessage{}, err
	}
	return domain.EmailMessage{
		To:       req.Email,
		ToName:   req.Name,
		Subject:  "Welcome to " + s.cfg.SenderName,
		HTMLBody: buf.String(),
	}, nil
}

// VerifyLink is the link a user clicks to verify their email.
func VerifyLink(verifyBase, tok string) string {
	return verifyBase + "/verify?token=" + url.QueryEscape(tok)
}
