// Package token implements the signed verification token:
//
//	base64url(subjectID) "." expiresAtMillis "." hex(HMAC-SHA256(secret, first two segments))
//
// Validity is a pure function of the token, the secret and the current time.
// There is no revocation list; rotating the secret invalidates every token.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/verify-emails/internal/domain"
)

const sep = "."

// Decoded is the structural form of a token string. SubjectSegment is still
// base64url encoded; the subject id is only recovered by Verify.
type Decoded struct {
	SubjectSegment  string
	ExpiresAtMillis int64
	Signature       string

	payload string // first two segments exactly as received
}

// Payload is the signed portion of the token, byte for byte as it appeared in the raw string.
func (d Decoded) Payload() string {
	if d.payload != "" {
		return d.payload
	}
	return d.SubjectSegment + sep + strconv.FormatInt(d.ExpiresAtMillis, 10)
}

// Encode mints a token for subjectID that expires ttl after now.
func Encode(subjectID string, ttl time.Duration, secret string, now time.Time) string {
	exp := now.Add(ttl).UnixMilli()
	payload := EncodeSegment(subjectID) + sep + strconv.FormatInt(exp, 10)
	return payload + sep + sign(secret, payload)
}

// Decode splits a token string into its segments. It never verifies anything.
func Decode(raw string) (Decoded, error) {
	parts := strings.Split(raw, sep)
	if len(parts) != 3 {
		return Decoded{}, fmt.Errorf("expected 3 segments, got %d: %w", len(parts), domain.ErrMalformed)
	}
	for _, p := range parts {
		if p == "" {
			return Decoded{}, fmt.Errorf("empty segment: %w", domain.ErrMalformed)
		}
	}
	if !isCanonicalDigits(parts[1]) {
		return Decoded{}, fmt.Errorf("expiry is not canonical digits: %w", domain.ErrMalformed)
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Decoded{}, fmt.Errorf("expiry is not an integer: %w", domain.ErrMalformed)
	}
	if !isLowerHex(parts[2]) {
		return Decoded{}, fmt.Errorf("signature is not lowercase hex: %w", domain.ErrMalformed)
	}
	return Decoded{
		SubjectSegment:  parts[0],
		ExpiresAtMillis: exp,
		Signature:       parts[2],
		payload:         parts[0] + sep + parts[1],
	}, nil
}

// Verify checks the signature, then the expiry, and returns the subject id
// recovered from the token itself. The signature is always checked before
// the expiry so a forged token learns nothing about expiry handling.
func Verify(d Decoded, secret string, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("token secret not set: %w", domain.ErrServerMisconfigured)
	}
	expected, _ := hex.DecodeString(sign(secret, d.Payload()))
	got, err := hex.DecodeString(d.Signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", domain.ErrMalformed)
	}
	if !Equal(expected, got) {
		return "", domain.ErrInvalidSignature
	}
	if now.UnixMilli() > d.ExpiresAtMillis {
		return "", domain.ErrExpired
	}
	subject, err := DecodeSegment(d.SubjectSegment)
	if err != nil {
		return "", fmt.Errorf("decode subject: %w", domain.ErrMalformed)
	}
	if subject == "" {
		return "", fmt.Errorf("empty subject: %w", domain.ErrMalformed)
	}
	return subject, nil
}

// Parse decodes and verifies raw in one step.
func Parse(raw, secret string, now time.Time) (string, error) {
	d, err := Decode(raw)
	if err != nil {
		return "", err
	}
	return Verify(d, secret, now)
}

// Equal compares two byte slices in constant time. Slices of different
// length are unequal; only the length, never the content, is observable.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EncodeSegment is base64url without padding.
func EncodeSegment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// DecodeSegment accepts base64url with or without '=' padding.
func DecodeSegment(s string) (string, error) {
	s = strings.TrimRight(s, "=")
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func isLowerHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// isCanonicalDigits accepts only the form strconv.FormatInt produces for a
// non-negative value: no sign, no leading zeros.
func isCanonicalDigits(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
