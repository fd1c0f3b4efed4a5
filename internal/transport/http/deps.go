package http

import (
	"github.com/verify-emails/internal/application/registration"
	"github.com/verify-emails/internal/application/verification"
	"github.com/verify-emails/internal/application/welcome"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Registration      registration.Service
	Welcome           welcome.Service
	Verification      verification.Service
	VerificationEmail verification.EmailService
}
