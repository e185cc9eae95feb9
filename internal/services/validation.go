package services

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// check runs struct tag validation and reports any failure as message.
func check(input any, message string) error {
	if err := validate.Struct(input); err != nil {
		return &Error{Kind: KindValidation, Message: message, Err: err}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
