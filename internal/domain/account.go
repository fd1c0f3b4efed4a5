package domain

// LoginCredential is a short-lived login secret issued by the identity provider.
// It is handed to the client immediately and never stored.
type LoginCredential struct {
	AccountID     string `json:"accountId"`
	Secret        string `json:"-"`
	ExpireSeconds int    `json:"expire"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,contains=@"`
	Password string `json:"password" validate:"required"`
}

type RegisterResult struct {
	AccountID               string `json:"accountId"`
	CredentialSecret        string `json:"credentialSecret"`
	CredentialExpirySeconds int    `json:"credentialExpirySeconds"`
}

type SendWelcomeRequest struct {
	Email     string `json:"email" validate:"required,contains=@"`
	Name      string `json:"name"`
	AccountID string `json:"accountId" validate:"required"`
}

type SendVerificationRequest struct {
	Email       string `json:"email" validate:"required,contains=@"`
	RedirectURL string `json:"redirectUrl" validate:"omitempty,url"`
}

// EmailMessage is a single transactional email.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
}

// WelcomeResult reports whether the welcome email went out. Link is only set
// when no email transport is configured.
type WelcomeResult struct {
	Sent bool   `json:"sent"`
	Link string `json:"link,omitempty"`
}
