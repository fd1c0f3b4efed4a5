package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
	"github.com/verify-emails/internal/pkg/validate"
)

// EmailService asks the identity provider to send its own verification email.
type EmailService interface {
	RequestEmail(ctx context.Context, req domain.SendVerificationRequest) (json.RawMessage, error)
}

type emailRequester interface {
	RequestVerificationEmail(ctx context.Context, email, redirectURL string) (json.RawMessage, error)
}

type emailService struct {
	cfg      *config.Config
	provider emailRequester
}

func NewEmailService(cfg *config.Config, provider emailRequester) EmailService {
	return &emailService{cfg: cfg, provider: provider}
}

func (s *emailService) RequestEmail(ctx context.Context, req domain.SendVerificationRequest) (json.RawMessage, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if !s.cfg.ProviderConfigured() {
		return nil, fmt.Errorf("identity provider not configured: %w", domain.ErrServerMisconfigured)
	}
	res, err := s.provider.RequestVerificationEmail(ctx, req.Email, req.RedirectURL)
	if err != nil {
		slog.Error("request verification email failed", "err", err, "details", domain.ProviderDetails(err))
		return nil, err
	}
	slog.Info("verification email requested")
	return res, nil
}
