package dynamo

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenHash is the ledger key for a raw token. Raw tokens are never stored.
func TokenHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
