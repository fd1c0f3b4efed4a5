package registration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
	"github.com/verify-emails/internal/infrastructure/appwrite"
)

// --- mocks ---

type mockProvider struct{ mock.Mock }

func (m *mockProvider) CreateAccount(ctx context.Context, in appwrite.CreateAccountInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) IssueCredential(ctx context.Context, accountID string, expireSeconds int) (*domain.LoginCredential, error) {
	args := m.Called(ctx, accountID, expireSeconds)
	if c, _ := args.Get(0).(*domain.LoginCredential); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, job domain.WelcomeJob) {
	m.Called(ctx, job)
}

func (m *mockDispatcher) Wait() {}

// --- helpers ---

func testConfig() *config.Config {
	return &config.Config{
		ProviderEndpoint:     "http://provider",
		ProviderProject:      "proj",
		ProviderAPIKey:       "key",
		CredentialTTLSeconds: 120,
	}
}

func newTestService(cfg *config.Config, p *mockProvider, d *mockDispatcher) *service {
	return &service{cfg: cfg, provider: p, dispatcher: d, newID: func() string { return "req-id" }}
}

var validReq = domain.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "pw"}

func withID(id string) interface{} {
	return mock.MatchedBy(func(in appwrite.CreateAccountInput) bool {
		return in.ID == id && in.Email == "ann@example.com" && in.Password == "pw" && in.Name == "Ann"
	})
}

// --- tests ---

func TestRegister_Success(t *testing.T) {
	p, d := &mockProvider{}, &mockDispatcher{}
	p.On("CreateAccount", mock.Anything, withID("req-id")).Return("req-id", nil)
	p.On("IssueCredential", mock.Anything, "req-id", 120).
		Return(&domain.LoginCredential{AccountID: "req-id", Secret: "sec", ExpireSeconds: 120}, nil)
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(j domain.WelcomeJob) bool {
		return j.AccountID == "req-id" && j.Email == "ann@example.com" && j.Name == "Ann" && j.JobID != ""
	})).Return()

	res, err := newTestService(testConfig(), p, d).Register(context.Background(), validReq)
	require.NoError(t, err)
	assert.Equal(t, &domain.RegisterResult{AccountID: "req-id", CredentialSecret: "sec", CredentialExpirySeconds: 120}, res)
	p.AssertExpectations(t)
	d.AssertExpectations(t)
}

func TestRegister_ValidationBeforeNetwork(t *testing.T) {
	cases := map[string]domain.RegisterRequest{
		"missing email":    {Password: "pw"},
		"email without @":  {Email: "ann.example.com", Password: "pw"},
		"missing password": {Email: "ann@example.com"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			p, d := &mockProvider{}, &mockDispatcher{}
			_, err := newTestService(testConfig(), p, d).Register(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrValidationFailed)
			p.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_ProviderNotConfigured(t *testing.T) {
	p, d := &mockProvider{}, &mockDispatcher{}
	cfg := testConfig()
	cfg.ProviderAPIKey = ""
	_, err := newTestService(cfg, p, d).Register(context.Background(), validReq)
	assert.ErrorIs(t, err, domain.ErrServerMisconfigured)
	p.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestRegister_RetriesOnceWithoutIDOnRejection(t *testing.T) {
	for _, status := range []int{400, 409} {
		p, d := &mockProvider{}, &mockDispatcher{}
		p.On("CreateAccount", mock.Anything, withID("req-id")).
			Return("", &domain.ProviderError{Op: "create account", Status: status, Body: "bad id"}).Once()
		p.On("CreateAccount", mock.Anything, withID("")).Return("assigned", nil).Once()
		p.On("IssueCredential", mock.Anything, "assigned", 120).
			Return(&domain.LoginCredential{AccountID: "assigned", Secret: "sec", ExpireSeconds: 120}, nil)
		d.On("Dispatch", mock.Anything, mock.Anything).Return()

		res, err := newTestService(testConfig(), p, d).Register(context.Background(), validReq)
		require.NoError(t, err, "status %d", status)
		assert.Equal(t, "assigned", res.AccountID)
		p.AssertNumberOfCalls(t, "CreateAccount", 2)
	}
}

func TestRegister_RetryAlsoFails(t *testing.T) {
	p, d := &mockProvider{}, &mockDispatcher{}
	p.On("CreateAccount", mock.Anything, mock.Anything).
		Return("", &domain.ProviderError{Op: "create account", Status: 409, Body: "user exists"})

	_, err := newTestService(testConfig(), p, d).Register(context.Background(), validReq)
	assert.ErrorIs(t, err, domain.ErrAccountCreateFailed)
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "user exists", pe.Body)
	p.AssertNumberOfCalls(t, "CreateAccount", 2)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRegister_NoRetryOnServerError(t *testing.T) {
	p, d := &mockProvider{}, &mockDispatcher{}
	p.On("CreateAccount", mock.Anything, mock.Anything).
		Return("", &domain.ProviderError{Op: "create account", Status: 500})

	_, err := newTestService(testConfig(), p, d).Register(context.Background(), validReq)
	assert.ErrorIs(t, err, domain.ErrAccountCreateFailed)
	p.AssertNumberOfCalls(t, "CreateAccount", 1)
}

func TestRegister_NoRetryOnTransportError(t *testing.T) {
	p, d := &mockProvider{}, &mockDispatcher{}
	p.On("CreateAccount", mock.Anything, mock.Anything).
		Return("", errors.Join(domain.ErrProviderCallFailed, errors.New("connection refused")))

	_, err := newTestService(testConfig(), p, d).Register(context.Background(), validReq)
	assert.ErrorIs(t, err, domain.ErrAccountCreateFailed)
	assert.ErrorIs(t, err, domain.ErrProviderCallFailed)
	p.AssertNumberOfCalls(t, "CreateAccount", 1)
}

func TestRegister_MissingAccountID(t *testing.T) {
	p, d := &mockProvider{}, &mockDispatcher{}
	p.On("CreateAccount", mock.Anything, mock.Anything).Return("", domain.ErrUnexpected)

	_, err := newTestService(testConfig(), p, d).Register(context.Background(), validReq)
	assert.ErrorIs(t, err, domain.ErrAccountCreateFailed)
}

func TestRegister_CredentialFailure(t *testing.T) {
	p, d := &mockProvider{}, &mockDispatcher{}
	p.On("CreateAccount", mock.Anything, mock.Anything).Return("req-id", nil)
	p.On("IssueCredential", mock.Anything, "req-id", 120).
		Return(nil, &domain.ProviderError{Op: "issue credential", Status: 500})

	_, err := newTestService(testConfig(), p, d).Register(context.Background(), validReq)
	assert.ErrorIs(t, err, domain.ErrCredentialIssueFailed)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestNewService_UsesUUIDs(t *testing.T) {
	svc := NewService(testConfig(), &mockProvider{}, &mockDispatcher{}).(*service)
	a, b := svc.newID(), svc.newID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
