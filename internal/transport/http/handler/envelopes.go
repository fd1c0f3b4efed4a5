package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/verify-emails/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// RegisterEnvelope wraps a successful registration.
type RegisterEnvelope struct {
	OK                      bool   `json:"ok"`
	AccountID               string `json:"accountId"`
	CredentialSecret        string `json:"credentialSecret"`
	CredentialExpirySeconds int    `json:"credentialExpirySeconds"`
}

// WelcomeEnvelope wraps send-welcome responses. Link is only present when no
// email transport is configured.
type WelcomeEnvelope struct {
	OK   bool   `json:"ok"`
	Sent bool   `json:"sent"`
	Link string `json:"link,omitempty"`
}

// VerificationEmailEnvelope wraps the identity provider's answer to a verification email request.
type VerificationEmailEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps a service error onto a status code and envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		msg := strings.TrimSuffix(err.Error(), ": "+domain.ErrValidationFailed.Error())
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, domain.ErrServerMisconfigured):
		writeError(w, http.StatusInternalServerError, "server not configured")
	case errors.Is(err, domain.ErrAccountCreateFailed):
		writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Message: "account creation failed", Details: domain.ProviderDetails(err)})
	case errors.Is(err, domain.ErrCredentialIssueFailed):
		writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Message: "credential creation failed", Details: domain.ProviderDetails(err)})
	case errors.Is(err, domain.ErrEmailSendFailed):
		writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Message: "email send failed", Details: domain.ProviderDetails(err)})
	case errors.Is(err, domain.ErrProviderCallFailed):
		writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Message: "identity provider call failed", Details: domain.ProviderDetails(err)})
	default:
		slog.Error("unhandled service error", "err", err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
