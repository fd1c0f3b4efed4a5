package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time, which keeps detached job ids ordered in the logs.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewAccountID generates a random v4 UUID to request as an identity-provider account id.
func NewAccountID() string {
	return uuid.NewString()
}
