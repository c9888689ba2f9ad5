package database

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateEmail  = errors.New("user already exists")
	ErrCreatorNotFound = errors.New("creator does not exist")
)

// ValidationError lists the document fields that failed validation.
type ValidationError struct {
	Fields []string
	Reason string // overrides the default "is required" wording
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if len(e.Fields) == 1 {
		return e.Fields[0] + " is required"
	}
	return strings.Join(e.Fields, ", ") + " are required"
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
