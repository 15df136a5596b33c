package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindBadRequest    Kind = "bad_request"
	KindAccessDenied  Kind = "access_denied"
	KindIntegration   Kind = "integration"
)

// Codes carried in MatchingError.Code. Configuration codes need an administrator to fix the mapping.
const (
	CodeMissingBaseMatch  = "MISSING_BASE_MATCH"
	CodeMultipleBaseField = "MULTIPLE_BASE_FIELDS"
	CodeUnsupportedEntity = "UNSUPPORTED_ENTITY"
	CodeMissingMatch      = "MISSING_MATCH"
	CodeMissingFilter     = "MISSING_FILTER"
	CodeDuplicateCallID   = "DUPLICATE_CALL_ID"
	CodeNotFound          = "NOT_FOUND"
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeIntegration       = "INTEGRATION_FAILED"
)

type MatchingError struct {
	Kind    Kind
	Code    string
	Entity  string
	Field   string
	Message string
	Cause   error
}

func newError(kind Kind, code, msg string) *MatchingError {
	return &MatchingError{Kind: kind, Code: code, Message: msg}
}

func NewConfigurationError(code, format string, args ...any) *MatchingError {
	return newError(KindConfiguration, code, fmt.Sprintf(format, args...))
}

func NewNotFoundError(format string, args ...any) *MatchingError {
	return newError(KindNotFound, CodeNotFound, fmt.Sprintf(format, args...))
}

func NewBadRequestError(code, format string, args ...any) *MatchingError {
	return newError(KindBadRequest, code, fmt.Sprintf(format, args...))
}

func NewAccessDeniedError(cause error) *MatchingError {
	return newError(KindAccessDenied, CodeAccessDenied, "upstream rejected credentials").WithCause(cause)
}

// WrapIntegrationError wraps a transport failure. Errors that are already MatchingErrors pass through.
func WrapIntegrationError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var me *MatchingError
	if errors.As(err, &me) {
		return err
	}
	return newError(KindIntegration, CodeIntegration, msg).WithCause(err)
}

func (e *MatchingError) Error() string {
	path := []string{}
	if e.Entity != "" {
		path = append(path, fmt.Sprintf("entity '%s'", e.Entity))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}

	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	if len(path) == 0 {
		return msg
	}
	return strings.Join(path, " -> ") + ": " + msg
}

func (e *MatchingError) Unwrap() error {
	return e.Cause
}

func (e *MatchingError) WithEntity(entity string) *MatchingError {
	e.Entity = entity
	return e
}

func (e *MatchingError) WithField(field string) *MatchingError {
	e.Field = field
	return e
}

func (e *MatchingError) WithCause(err error) *MatchingError {
	e.Cause = err
	return e
}

func (e *MatchingError) StatusCode() int {
	switch e.Kind {
	case KindConfiguration, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (e *MatchingError) ToHTTPError() *httperror.HTTPError {
	msg := e.Message
	if e.Kind == KindIntegration {
		// causes may carry upstream payloads, keep them in the logs only
		msg = "integration request failed"
	}
	return httperror.NewHTTPError(e.StatusCode(), msg).
		AddMetaValue("code", e.Code).
		AddMetaValue("entity", e.Entity).
		AddMetaValue("field", e.Field)
}

func IsKind(err error, kind Kind) bool {
	var me *MatchingError
	return errors.As(err, &me) && me.Kind == kind
}

// ToHTTPError converts any error into an httperror, keeping existing httperrors intact.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var me *MatchingError
	if errors.As(err, &me) {
		return me.ToHTTPError()
	}
	if httperror.IsHTTPError(err) {
		return err
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// CodeOf returns the machine code carried by err, INTEGRATION_FAILED for foreign errors.
func CodeOf(err error) string {
	var me *MatchingError
	if errors.As(err, &me) {
		return me.Code
	}
	return CodeIntegration
}
