// Package form holds field-level validation shared by the login and
// certificate forms. Validation failures never reach the store; callers
// surface them next to the offending field.
package form

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// FieldError describes one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Errors collects every failing field of a form, in field order.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the message for the named field, or "" when it is valid.
func (e Errors) Field(name string) string {
	for _, fe := range e {
		if fe.Field == name {
			return fe.Message
		}
	}
	return ""
}

// Validator accumulates field errors.
type Validator struct {
	errs Errors
}

// Required fails when value is blank.
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf("%s is required", field)})
		return false
	}
	return true
}

// MinLength fails when value has fewer than n runes.
func (v *Validator) MinLength(field, value string, n int) bool {
	if utf8.RuneCountInString(value) < n {
		v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be at least %d characters long", field, n)})
		return false
	}
	return true
}

// Positive fails when value is not greater than zero.
func (v *Validator) Positive(field string, value int) bool {
	if value <= 0 {
		v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be a positive number", field)})
		return false
	}
	return true
}

// NonNegative fails when value is below zero.
func (v *Validator) NonNegative(field string, value decimal.Decimal) bool {
	if value.IsNegative() {
		v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf("%s must not be negative", field)})
		return false
	}
	return true
}

// Err returns the collected errors, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}
