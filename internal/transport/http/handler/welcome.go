package handler

import (
	"net/http"

	"github.com/verify-emails/internal/application/welcome"
	"github.com/verify-emails/internal/domain"
)

type WelcomeHandler struct {
	svc welcome.Service
}

func NewWelcomeHandler(svc welcome.Service) *WelcomeHandler {
	return &WelcomeHandler{svc: svc}
}

func (h *WelcomeHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendWelcomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SendWelcome(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WelcomeEnvelope{OK: true, Sent: res.Sent, Link: res.Link})
}
