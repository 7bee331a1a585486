package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes carried on the wire. Handlers never invent their own
// codes, everything funnels through these constructors.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeValidation:   http.StatusBadRequest,
	CodeNotFound:     http.StatusNotFound,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeConflict:     http.StatusConflict,
	CodeInternal:     http.StatusInternalServerError,
}

// DomainError is the single error currency between services, handlers
// and the error middleware.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError for a known code. Unknown
// codes map to 500.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	if status == 0 {
		status = codeStatus[code]
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, 0, details)
}

func NewNotFound(resource string, details map[string]any) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), 0, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, 0, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, 0, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, 0, details)
}

func NewInternalError(err error) error {
	de := NewDomainError(CodeInternal, "internal server error", 0, nil)
	de.Err = err
	return de
}

// ToDomainError normalizes any error into a DomainError. pgx's
// row-miss sentinel becomes NOT_FOUND so repositories can return it
// raw; everything unrecognized is a masked 500 with the cause kept for
// logging.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewDomainError(CodeNotFound, "resource not found", 0, nil)
	}
	de := NewDomainError(CodeInternal, "internal server error", 0, nil)
	de.Err = err
	return de
}

// MapError is the service-layer spelling of ToDomainError.
func MapError(err error) error {
	return ToDomainError(err)
}

// IsConflict reports whether err carries the CONFLICT code, the
// signal the workflow uses for lost state races.
func IsConflict(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == CodeConflict
}
