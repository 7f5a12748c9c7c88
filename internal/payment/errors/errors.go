package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError reports malformed local input. It is raised before any network call.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Error() string {
	errorMessages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		errorMessages[i] = err.Error()
	}
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(errorMessages, "; "))
}

func (ve *ValidationErrors) Add(err error) {
	if err != nil {
		ve.Errors = append(ve.Errors, err)
	}
}

// ErrOrNil returns nil when nothing was collected, the single error when one was, and the aggregate otherwise.
func (ve *ValidationErrors) ErrOrNil() error {
	switch len(ve.Errors) {
	case 0:
		return nil
	case 1:
		return ve.Errors[0]
	default:
		return ve
	}
}

// Unwrap lets errors.As find the individual ValidationError values.
func (ve *ValidationErrors) Unwrap() []error {
	return ve.Errors
}

// GatewayError means the backend explicitly rejected the operation or reported the payment failed.
type GatewayError struct {
	Op         string
	Msg        string
	StatusCode int
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: gateway rejected request (%d): %s", e.Op, e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("%s: gateway rejected request: %s", e.Op, e.Msg)
}

func NewGatewayError(op, msg string, statusCode int) error {
	return &GatewayError{Op: op, Msg: msg, StatusCode: statusCode}
}

func IsGatewayError(err error) bool {
	var gatewayError *GatewayError
	return errors.As(err, &gatewayError)
}

// TransientError wraps a network or decode failure that is recovered by retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func NewTransientError(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsTransientError(err error) bool {
	var transientError *TransientError
	return errors.As(err, &transientError)
}

// TimeoutError is returned when the verification budget ran out before a terminal answer.
type TimeoutError struct {
	TxRef  string
	Budget time.Duration
	Reason string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("payment %s not confirmed within %v: %s", e.TxRef, e.Budget, e.Reason)
}

func NewTimeoutError(txRef string, budget time.Duration, reason string) error {
	return &TimeoutError{TxRef: txRef, Budget: budget, Reason: reason}
}

func IsTimeoutError(err error) bool {
	var timeoutError *TimeoutError
	return errors.As(err, &timeoutError)
}
