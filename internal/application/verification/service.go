package verification

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
	"github.com/verify-emails/internal/pkg/device"
	"github.com/verify-emails/internal/pkg/token"
)

// Request is one visit to the verification link.
type Request struct {
	Token     string
	UserAgent string
}

// Result is where the visitor gets redirected. Reason is empty on full success.
// LoginFailed reports that no login credential could be issued.
type Result struct {
	Location    string
	AccountID   string
	State       domain.VerifiedState
	Reason      domain.Reason
	Mobile      bool
	LoginFailed bool
}

// Service redeems verification tokens. Verify never fails: every outcome,
// including internal errors, is expressed as a redirect location.
type Service interface {
	Verify(ctx context.Context, req Request) Result
}

type accountProvider interface {
	MarkVerified(ctx context.Context, accountID string) error
	IssueCredential(ctx context.Context, accountID string, expireSeconds int) (*domain.LoginCredential, error)
}

// tokenLedger records redeemed tokens. Consume returns domain.ErrTokenConsumed on replay.
type tokenLedger interface {
	Consume(ctx context.Context, rawToken, accountID string, expiresAt time.Time) error
}

type service struct {
	cfg      *config.Config
	provider accountProvider
	ledger   tokenLedger
	now      func() time.Time
}

// NewService builds the verification service. ledger may be nil, in which case
// tokens can be redeemed any number of times until they expire.
func NewService(cfg *config.Config, provider accountProvider, ledger tokenLedger) Service {
	return &service{cfg: cfg, provider: provider, ledger: ledger, now: time.Now}
}

func (s *service) Verify(ctx context.Context, req Request) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("verify: unexpected panic", "panic", p)
			res = s.failure(domain.ReasonServerError)
		}
	}()

	if req.Token == "" {
		return s.failure(domain.ReasonMissingToken)
	}

	decoded, err := token.Decode(req.Token)
	if err != nil {
		slog.Warn("verify: bad token", "err", err)
		return s.failure(domain.ReasonBadToken)
	}
	accountID, err := token.Verify(decoded, s.cfg.TokenSecret, s.now())
	if err != nil {
		reason := tokenReason(err)
		slog.Warn("verify: token rejected", "reason", reason, "err", err)
		return s.failure(reason)
	}

	if !s.cfg.ProviderConfigured() {
		slog.Error("verify: identity provider not configured")
		return s.failure(domain.ReasonServerConfig)
	}

	if s.ledger != nil {
		err := s.ledger.Consume(ctx, req.Token, accountID, time.UnixMilli(decoded.ExpiresAtMillis))
		if errors.Is(err, domain.ErrTokenConsumed) {
			slog.Warn("verify: token replayed", "account_id", accountID)
			return s.failure(domain.ReasonAlreadyUsed)
		}
		if err != nil {
			// The ledger is optional hardening; an unavailable ledger must not lock users out.
			slog.Error("verify: consumed-token ledger unavailable", "account_id", accountID, "err", err)
		}
	}

	res = Result{AccountID: accountID, State: domain.StateVerified}
	if err := s.provider.MarkVerified(ctx, accountID); err != nil {
		res.State = domain.StatePartial
		res.Reason = providerReason(err)
		slog.Error("verify: mark verified failed", "account_id", accountID, "err", err, "details", domain.ProviderDetails(err))
	}

	cred, err := s.provider.IssueCredential(ctx, accountID, s.cfg.CredentialTTLSeconds)
	if err != nil {
		slog.Error("verify: issue credential failed", "account_id", accountID, "err", err, "details", domain.ProviderDetails(err))
		res.LoginFailed = true
		res.Location = s.webLocation(res)
		return res
	}

	if device.IsMobile(req.UserAgent) {
		res.Mobile = true
		res.Location = s.deepLink(accountID, cred.Secret, res.State)
		return res
	}
	res.Location = s.webLocation(res)
	return res
}

// failure builds the terminal redirect for a request that never reached the provider.
func (s *service) failure(reason domain.Reason) Result {
	return Result{
		Location: FailureLocation(s.cfg.VerifyBase, reason),
		State:    domain.StateNotVerified,
		Reason:   reason,
	}
}

// webLocation never carries the credential secret. login=failed separates a
// missing credential from a desktop visit that simply doesn't auto-login.
func (s *service) webLocation(res Result) string {
	loc := landingPage(s.cfg.VerifyBase) +
		"?verified=" + res.State.WebParam() +
		"&accountId=" + url.QueryEscape(res.AccountID) +
		"&autologin=0"
	if res.LoginFailed {
		loc += "&login=failed"
	}
	if res.Reason != "" {
		loc += "&reason=" + string(res.Reason)
	}
	return loc
}

func (s *service) deepLink(accountID, secret string, state domain.VerifiedState) string {
	return s.cfg.MobileScheme +
		"?accountId=" + url.QueryEscape(accountID) +
		"&secret=" + url.QueryEscape(secret) +
		"&verified=" + state.DeepLinkParam()
}

// FailureLocation is the web landing page for a rejected verification.
func FailureLocation(verifyBase string, reason domain.Reason) string {
	return landingPage(verifyBase) + "?verified=0&reason=" + string(reason)
}

func landingPage(verifyBase string) string {
	return verifyBase + "/"
}

func tokenReason(err error) domain.Reason {
	switch {
	case errors.Is(err, domain.ErrServerMisconfigured):
		return domain.ReasonServerConfig
	case errors.Is(err, domain.ErrInvalidSignature):
		return domain.ReasonInvalidSignature
	case errors.Is(err, domain.ErrExpired):
		return domain.ReasonExpired
	default:
		return domain.ReasonBadToken
	}
}

// providerReason tells an upstream rejection apart from not reaching the upstream at all.
func providerReason(err error) domain.Reason {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return domain.ReasonProviderFailed
	}
	return domain.ReasonProviderError
}
