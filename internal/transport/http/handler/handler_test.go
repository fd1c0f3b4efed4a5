package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/verify-emails/internal/application/verification"
	"github.com/verify-emails/internal/domain"
)

// --- mocks ---

type mockRegistrationSvc struct{ mock.Mock }

func (m *mockRegistrationSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.RegisterResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.RegisterResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockWelcomeSvc struct{ mock.Mock }

func (m *mockWelcomeSvc) SendWelcome(ctx context.Context, req domain.SendWelcomeRequest) (*domain.WelcomeResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.WelcomeResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockVerificationSvc struct{ mock.Mock }

func (m *mockVerificationSvc) Verify(ctx context.Context, req verification.Request) verification.Result {
	return m.Called(ctx, req).Get(0).(verification.Result)
}

type panicVerificationSvc struct{}

func (panicVerificationSvc) Verify(context.Context, verification.Request) verification.Result {
	panic("boom")
}

type mockEmailSvc struct{ mock.Mock }

func (m *mockEmailSvc) RequestEmail(ctx context.Context, req domain.SendVerificationRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(json.RawMessage); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func postJSON(t *testing.T, h http.HandlerFunc, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

// --- register ---

func TestRegister_Success(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("Register", mock.Anything, domain.RegisterRequest{Email: "a@b.com", Password: "x"}).
		Return(&domain.RegisterResult{AccountID: "u1", CredentialSecret: "sec", CredentialExpirySeconds: 120}, nil)

	rec, body := postJSON(t, NewRegisterHandler(svc).Register, `{"email":"a@b.com","password":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "u1", body["accountId"])
	assert.Equal(t, "sec", body["credentialSecret"])
	assert.EqualValues(t, 120, body["credentialExpirySeconds"])
}

func TestRegister_BadJSON(t *testing.T) {
	svc := &mockRegistrationSvc{}
	rec, body := postJSON(t, NewRegisterHandler(svc).Register, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
		details string
	}{
		{"validation", fmt.Errorf("email is required: %w", domain.ErrValidationFailed), 400, "email is required", ""},
		{"misconfigured", fmt.Errorf("x: %w", domain.ErrServerMisconfigured), 500, "server not configured", ""},
		{"create failed", fmt.Errorf("%w: %w", domain.ErrAccountCreateFailed, &domain.ProviderError{Status: 409, Body: "exists"}), 500, "account creation failed", "exists"},
		{"credential failed", fmt.Errorf("%w: %w", domain.ErrCredentialIssueFailed, domain.ErrUnexpected), 500, "credential creation failed", ""},
		{"unknown", errors.New("boom"), 500, "server error", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockRegistrationSvc{}
			svc.On("Register", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec, body := postJSON(t, NewRegisterHandler(svc).Register, `{"email":"a@b.com","password":"x"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tc.message, body["message"])
			if tc.details != "" {
				assert.Equal(t, tc.details, body["details"])
			} else {
				assert.NotContains(t, body, "details")
			}
		})
	}
}

// --- send-welcome ---

func TestSendWelcome_Sent(t *testing.T) {
	svc := &mockWelcomeSvc{}
	svc.On("SendWelcome", mock.Anything, domain.SendWelcomeRequest{Email: "a@b.com", AccountID: "u1"}).
		Return(&domain.WelcomeResult{Sent: true}, nil)

	rec, body := postJSON(t, NewWelcomeHandler(svc).Send, `{"email":"a@b.com","accountId":"u1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["sent"])
	assert.NotContains(t, body, "link")
}

func TestSendWelcome_LinkWhenUnconfigured(t *testing.T) {
	svc := &mockWelcomeSvc{}
	svc.On("SendWelcome", mock.Anything, mock.Anything).
		Return(&domain.WelcomeResult{Link: "https://v.example.com/verify?token=a.b.c"}, nil)

	rec, body := postJSON(t, NewWelcomeHandler(svc).Send, `{"email":"a@b.com","accountId":"u1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["sent"])
	assert.Equal(t, "https://v.example.com/verify?token=a.b.c", body["link"])
}

func TestSendWelcome_SendFailure(t *testing.T) {
	svc := &mockWelcomeSvc{}
	svc.On("SendWelcome", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: %w", domain.ErrEmailSendFailed, &domain.ProviderError{Status: 401, Body: "bad key"}))

	rec, body := postJSON(t, NewWelcomeHandler(svc).Send, `{"email":"a@b.com","accountId":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "email send failed", body["message"])
}

// --- verify ---

func TestVerify_Redirects(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("Verify", mock.Anything, verification.Request{Token: "a.b.c", UserAgent: "curl/8"}).
		Return(verification.Result{Location: "https://v.example.com/?verified=1&accountId=u1&autologin=0"})

	req := httptest.NewRequest(http.MethodGet, "/verify?token=a.b.c", nil)
	req.Header.Set("User-Agent", "curl/8")
	rec := httptest.NewRecorder()
	NewVerifyHandler(svc, "https://v.example.com").Verify(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://v.example.com/?verified=1&accountId=u1&autologin=0", rec.Header().Get("Location"))
}

func TestVerify_DeepLinkKeepsScheme(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("Verify", mock.Anything, mock.Anything).
		Return(verification.Result{Location: "petranker://auth/verified?accountId=u1&secret=s&verified=1"})

	rec := httptest.NewRecorder()
	NewVerifyHandler(svc, "").Verify(rec, httptest.NewRequest(http.MethodGet, "/verify?token=a.b.c", nil))
	assert.Equal(t, "petranker://auth/verified?accountId=u1&secret=s&verified=1", rec.Header().Get("Location"))
}

func TestVerify_PanicRedirectsToServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		NewVerifyHandler(panicVerificationSvc{}, "https://v.example.com").
			Verify(rec, httptest.NewRequest(http.MethodGet, "/verify?token=x", nil))
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://v.example.com/?verified=0&reason=server_error", rec.Header().Get("Location"))
}

// --- send-verification ---

func TestSendVerification(t *testing.T) {
	svc := &mockEmailSvc{}
	svc.On("RequestEmail", mock.Anything, domain.SendVerificationRequest{Email: "a@b.com"}).
		Return(json.RawMessage(`{"$id":"v1"}`), nil)

	rec, body := postJSON(t, NewVerificationEmailHandler(svc).Send, `{"email":"a@b.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"$id": "v1"}, body["result"])
}

func TestSendVerification_ProviderError(t *testing.T) {
	svc := &mockEmailSvc{}
	svc.On("RequestEmail", mock.Anything, mock.Anything).
		Return(nil, &domain.ProviderError{Status: 400, Body: `{"message":"bad url"}`})

	rec, body := postJSON(t, NewVerificationEmailHandler(svc).Send, `{"email":"a@b.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, `{"message":"bad url"}`, body["details"])
}

// --- health ---

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/health-check/{action}", NewHealthHandler().Ping)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-check/other", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
