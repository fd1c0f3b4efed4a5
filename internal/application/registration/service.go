package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/verify-emails/internal/application/dispatch"
	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
	"github.com/verify-emails/internal/infrastructure/appwrite"
	"github.com/verify-emails/internal/pkg/id"
	"github.com/verify-emails/internal/pkg/validate"
)

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error)
}

type accountProvider interface {
	CreateAccount(ctx context.Context, in appwrite.CreateAccountInput) (string, error)
	IssueCredential(ctx context.Context, accountID string, expireSeconds int) (*domain.LoginCredential, error)
}

type service struct {
	cfg        *config.Config
	provider   accountProvider
	dispatcher dispatch.Dispatcher
	newID      func() string
}

func NewService(cfg *config.Config, provider accountProvider, dispatcher dispatch.Dispatcher) Service {
	return &service{
		cfg:        cfg,
		provider:   provider,
		dispatcher: dispatcher,
		newID:      id.NewAccountID,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if !s.cfg.ProviderConfigured() {
		return nil, fmt.Errorf("identity provider not configured: %w", domain.ErrServerMisconfigured)
	}

	accountID, err := s.createAccount(ctx, req)
	if err != nil {
		return nil, err
	}

	cred, err := s.provider.IssueCredential(ctx, accountID, s.cfg.CredentialTTLSeconds)
	if err != nil {
		slog.Error("issue credential failed", "account_id", accountID, "err", err, "details", domain.ProviderDetails(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialIssueFailed, err)
	}

	s.dispatcher.Dispatch(ctx, domain.WelcomeJob{
		JobID:     id.New(),
		Email:     req.Email,
		Name:      req.Name,
		AccountID: accountID,
	})

	return &domain.RegisterResult{
		AccountID:               accountID,
		CredentialSecret:        cred.Secret,
		CredentialExpirySeconds: cred.ExpireSeconds,
	}, nil
}

// createAccount requests a client-chosen id first. Some provider versions reject
// client ids, so a 400 or 409 is retried once letting the provider pick the id.
func (s *service) createAccount(ctx context.Context, req domain.RegisterRequest) (string, error) {
	in := appwrite.CreateAccountInput{
		ID:       s.newID(),
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}
	accountID, err := s.provider.CreateAccount(ctx, in)
	if err != nil && rejectedRequestedID(err) {
		slog.Warn("create account rejected requested id, retrying without it", "err", err)
		in.ID = ""
		accountID, err = s.provider.CreateAccount(ctx, in)
	}
	if err != nil {
		slog.Error("create account failed", "err", err, "details", domain.ProviderDetails(err))
		return "", fmt.Errorf("%w: %w", domain.ErrAccountCreateFailed, err)
	}
	return accountID, nil
}

func rejectedRequestedID(err error) bool {
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Status == http.StatusBadRequest || pe.Status == http.StatusConflict
}
