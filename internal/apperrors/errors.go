// Package apperrors defines the error taxonomy shared by the API, the
// payment services and the access gate, and renders it as JSON responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindAuthInfra
	KindGateway
	KindPersistence
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindAuthInfra:
		return "auth_infra"
	case KindGateway:
		return "gateway"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind onto the status code returned to API callers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may succeed by repeating the request.
func (k Kind) Retryable() bool {
	return k == KindAuthInfra || k == KindGateway || k == KindPersistence || k == KindInternal
}

// Stable machine readable codes.
const (
	CodeValidation               = "VALIDATION_ERROR"
	CodeNotFound                 = "NOT_FOUND"
	CodeInvalidAmount            = "INVALID_AMOUNT"
	CodeRecipientNotFound        = "RECIPIENT_NOT_FOUND"
	CodeRecipientNotPaymentReady = "RECIPIENT_NOT_PAYMENT_READY"
	CodeAmountTooSmallAfterFee   = "AMOUNT_TOO_SMALL_AFTER_FEE"
	CodeGateway                  = "GATEWAY_ERROR"
	CodeInvalidSignature         = "INVALID_SIGNATURE"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeAuthInfra                = "AUTH_INFRA_ERROR"
	CodeProfileSetupRequired     = "PROFILE_SETUP_REQUIRED"
	CodeProfileNotFound          = "PROFILE_NOT_FOUND"
	CodeHandleTaken              = "HANDLE_TAKEN"
	CodePersistence              = "PERSISTENCE_ERROR"
	CodeInternal                 = "INTERNAL_ERROR"
)

// Error is an application error with a kind, a stable code and a message
// that is safe to show to the caller.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, CodeNotFound, message)
}

func Persistence(message string, err error) *Error {
	return Wrap(KindPersistence, CodePersistence, message, err)
}
