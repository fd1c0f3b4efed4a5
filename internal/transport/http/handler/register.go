package handler

import (
	"net/http"

	"github.com/verify-emails/internal/application/registration"
	"github.com/verify-emails/internal/domain"
)

// RegisterHandler creates accounts with an immediate login credential.
type RegisterHandler struct {
	svc registration.Service
}

func NewRegisterHandler(svc registration.Service) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterEnvelope{
		OK:                      true,
		AccountID:               res.AccountID,
		CredentialSecret:        res.CredentialSecret,
		CredentialExpirySeconds: res.CredentialExpirySeconds,
	})
}
