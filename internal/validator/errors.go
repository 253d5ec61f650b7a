package validator

import (
	stderrors "errors"

	"github.com/scio-practice/session-service/internal/errors"
)

// Use shared validation errors from errors package
type ValidationError = errors.ValidationError
type ValidationErrors = errors.ValidationErrors

// ToValidationErrors converts validator.ValidationErrors to our custom type
func ToValidationErrors(err error) ValidationErrors {
	return errors.ToValidationErrors(err)
}

// IsValidationError reports whether err carries a single or aggregated
// validation failure, from struct tags or the question-set checks.
func IsValidationError(err error) bool {
	var single *ValidationError
	var many ValidationErrors
	return stderrors.As(err, &single) || stderrors.As(err, &many)
}
