// Package validator provides custom validation functions.
package validator

import (
	"net/url"

	"github.com/go-playground/validator/v10"
)

// NewValidator creates a new validator with custom validation functions.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("absoluteuri", validateAbsoluteURI)

	return v
}

// validateAbsoluteURI validates that a field is an absolute URI, the
// form SAML requires for issuer entity IDs, audiences, and attribute
// name formats.
func validateAbsoluteURI(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return false
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.IsAbs()
}
