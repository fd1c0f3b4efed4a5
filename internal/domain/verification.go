package domain

// Reason is the machine-readable code carried by a failed or partial
// verification redirect.
type Reason string

const (
	ReasonMissingToken     Reason = "missing_token"
	ReasonBadToken         Reason = "bad_token"
	ReasonServerConfig     Reason = "server_config"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonExpired          Reason = "expired"
	ReasonAlreadyUsed      Reason = "already_used"
	ReasonProviderFailed   Reason = "provider_failed"
	ReasonProviderError    Reason = "provider_error"
	ReasonServerError      Reason = "server_error"
)

// VerifiedState is the tri-state outcome of the "mark verified" provider call.
// A failed call is never promoted to StateVerified.
type VerifiedState int

const (
	StateNotVerified VerifiedState = iota
	StateVerified
	StatePartial // flag mutation failed, flow continued
)

// WebParam is the value of the verified= query parameter on the web landing page.
func (s VerifiedState) WebParam() string {
	switch s {
	case StateVerified:
		return "1"
	case StatePartial:
		return "partial"
	default:
		return "0"
	}
}

// DeepLinkParam is the value of the verified= query parameter on the mobile deep link.
func (s VerifiedState) DeepLinkParam() string {
	if s == StateVerified {
		return "1"
	}
	return "0"
}

// WelcomeJob is the payload of the detached welcome task.
type WelcomeJob struct {
	JobID     string `json:"jobId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AccountID string `json:"accountId"`
}

// ConsumedToken is a ledger entry for a verification token that was already redeemed.
// PK: token_hash. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type ConsumedToken struct {
	TokenHash  string `dynamodbav:"token_hash"`
	AccountID  string `dynamodbav:"account_id"`
	ConsumedAt int64  `dynamodbav:"consumed_at"`
	ExpiresAt  int64  `dynamodbav:"expires_at"`
}
