package handler

import (
	"log/slog"
	"net/http"

	"github.com/verify-emails/internal/application/verification"
	"github.com/verify-emails/internal/domain"
)

// VerifyHandler redeems verification links. It only ever answers with a redirect.
type VerifyHandler struct {
	svc        verification.Service
	verifyBase string
}

func NewVerifyHandler(svc verification.Service, verifyBase string) *VerifyHandler {
	return &VerifyHandler{svc: svc, verifyBase: verifyBase}
}

func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("verify handler panicked", "panic", p)
			http.Redirect(w, r, verification.FailureLocation(h.verifyBase, domain.ReasonServerError), http.StatusFound)
		}
	}()

	res := h.svc.Verify(r.Context(), verification.Request{
		Token:     r.URL.Query().Get("token"),
		UserAgent: r.UserAgent(),
	})
	slog.Info("verify redirect", "account_id", res.AccountID, "state", res.State.WebParam(), "reason", res.Reason, "mobile", res.Mobile)
	http.Redirect(w, r, res.Location, http.StatusFound)
}
