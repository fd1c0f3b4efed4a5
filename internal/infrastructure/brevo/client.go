package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
)

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	Sender      address   `json:"sender"`
	To          []address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

// Client sends transactional email through the Brevo HTTP API.
type Client struct {
	endpoint string
	apiKey   string
	sender   address
	http     *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint: cfg.BrevoEndpoint,
		apiKey:   cfg.BrevoAPIKey,
		sender:   address{Email: cfg.SenderEmail, Name: cfg.SenderName},
		http:     &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

func (c *Client) Send(ctx context.Context, msg domain.EmailMessage) error {
	payload, err := json.Marshal(sendRequest{
		Sender:      c.sender,
		To:          []address{{Email: msg.To, Name: msg.ToName}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("brevo send: %w: %w", domain.ErrProviderCallFailed, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ProviderError{Op: "brevo send", Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	slog.Info("brevo send success", "status", resp.StatusCode, "response", strings.TrimSpace(string(raw)))
	return nil
}
