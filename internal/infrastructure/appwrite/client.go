package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
)

// maxBody caps how much of an upstream response is kept for diagnostics.
const maxBody = 64 << 10

// Client calls the identity provider's admin REST API.
type Client struct {
	endpoint string
	project  string
	apiKey   string
	http     *http.Client
	now      func() time.Time
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint: config.NormalizeEndpoint(cfg.ProviderEndpoint),
		project:  cfg.ProviderProject,
		apiKey:   cfg.ProviderAPIKey,
		http:     &http.Client{Timeout: cfg.ProviderTimeout},
		now:      time.Now,
	}
}

// CreateAccountInput is the create-account request. An empty ID asks the
// provider to assign one.
type CreateAccountInput struct {
	ID       string
	Email    string
	Password string
	Name     string
}

// CreateAccount creates an account and returns the id the provider assigned.
// A successful response that isn't JSON is taken to be the bare id.
func (c *Client) CreateAccount(ctx context.Context, in CreateAccountInput) (string, error) {
	body := map[string]string{
		"email":    in.Email,
		"password": in.Password,
		"name":     in.Name,
	}
	if in.ID != "" {
		body["userId"] = in.ID
	}
	raw, err := c.do(ctx, "create account", http.MethodPost, "/v1/users", body)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(raw))
	if text != "" && !json.Valid([]byte(text)) {
		return text, nil
	}
	var created map[string]any
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode create account response: %w", domain.ErrUnexpected)
	}
	for _, k := range []string{"$id", "$uid", "id", "userId"} {
		if v, ok := created[k].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("provider did not return an account id: %w", domain.ErrUnexpected)
}

// IssueCredential asks the provider for a short-lived login secret for accountID.
func (c *Client) IssueCredential(ctx context.Context, accountID string, expireSeconds int) (*domain.LoginCredential, error) {
	raw, err := c.do(ctx, "issue credential", http.MethodPost,
		"/v1/users/"+url.PathEscape(accountID)+"/tokens",
		map[string]int{"expire": expireSeconds})
	if err != nil {
		return nil, err
	}
	var out struct {
		Secret string          `json:"secret"`
		Expire json.RawMessage `json:"expire"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Secret == "" {
		return nil, fmt.Errorf("credential secret missing from response: %w", domain.ErrUnexpected)
	}
	return &domain.LoginCredential{
		AccountID:     accountID,
		Secret:        out.Secret,
		ExpireSeconds: c.grantedSeconds(out.Expire, expireSeconds),
	}, nil
}

// grantedSeconds reads the lifetime the provider actually granted. expire is
// either a number of seconds or an expiry timestamp depending on the provider
// version; anything unusable falls back to what was requested.
func (c *Client) grantedSeconds(expire json.RawMessage, requested int) int {
	var secs int
	if err := json.Unmarshal(expire, &secs); err == nil && secs > 0 {
		return secs
	}
	var stamp string
	if err := json.Unmarshal(expire, &stamp); err == nil {
		if at, err := time.Parse(time.RFC3339, stamp); err == nil {
			if left := at.Sub(c.now()); left > 0 {
				return int((left + time.Second - 1) / time.Second)
			}
		}
	}
	return requested
}

type attempt struct {
	method string
	path   string
}

// MarkVerified sets the account's email verification flag. Provider versions
// differ in which route accepts the flag, so the routes are tried in order and
// the first success wins. The last failure is returned when all of them fail.
func (c *Client) MarkVerified(ctx context.Context, accountID string) error {
	base := "/v1/users/" + url.PathEscape(accountID)
	attempts := []attempt{
		{http.MethodPatch, base + "/verification"},
		{http.MethodPatch, base},
		{http.MethodPut, base},
	}
	body := map[string]bool{"emailVerification": true}

	var lastErr error
	for _, a := range attempts {
		_, err := c.do(ctx, "mark verified", a.method, a.path, body)
		if err == nil {
			return nil
		}
		slog.Warn("mark verified attempt failed", "account_id", accountID, "method", a.method, "path", a.path, "err", err)
		lastErr = err
	}
	return lastErr
}

// RequestVerificationEmail asks the provider to send its own verification email.
func (c *Client) RequestVerificationEmail(ctx context.Context, email, redirectURL string) (json.RawMessage, error) {
	body := map[string]string{"email": email}
	if redirectURL != "" {
		body["url"] = redirectURL
	}
	raw, err := c.do(ctx, "request verification email", http.MethodPost, "/v1/account/verification", body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		return quoted, nil
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", c.project)
	req.Header.Set("X-Appwrite-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrProviderCallFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ProviderError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
