package handler

import (
	"net/http"

	"github.com/verify-emails/internal/application/verification"
	"github.com/verify-emails/internal/domain"
)

// VerificationEmailHandler triggers the identity provider's own verification email.
type VerificationEmailHandler struct {
	svc verification.EmailService
}

func NewVerificationEmailHandler(svc verification.EmailService) *VerificationEmailHandler {
	return &VerificationEmailHandler{svc: svc}
}

func (h *VerificationEmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RequestEmail(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerificationEmailEnvelope{OK: true, Result: res})
}
