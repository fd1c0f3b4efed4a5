package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/verify-emails/internal/domain"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// Struct validates the given struct using its validate tags. Field failures
// are reported as one human-readable message wrapping domain.ErrValidationFailed.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, message(fe))
		}
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrValidationFailed)
	}
	return nil
}

func message(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "contains", "email", "url":
		return "invalid " + field
	default:
		return fmt.Sprintf("field '%s' failed '%s'", field, fe.Tag())
	}
}
