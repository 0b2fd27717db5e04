// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrInvalidSymbol       = errors.New("invalid symbol")
	ErrTransient           = errors.New("transient failure")
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrRateLimited         = errors.New("rate limited")
	ErrTimeout             = errors.New("operation timed out")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrDataNotFound        = errors.New("data not found")
	ErrDatabaseError       = errors.New("database error")
	ErrNoNarrative         = errors.New("no narrative in response")
	ErrEmptyCompletion     = errors.New("empty completion")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
	ErrNoProviders         = errors.New("no providers configured")
)

// DataError represents a market data error. Callers distinguish the
// cause with errors.Is against ErrSymbolNotFound or ErrTransient.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// IsDataUnavailable reports whether err means the analysis cannot run
// because market data is missing.
func IsDataUnavailable(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// FailureClass tells the provider chain what to do after a failed attempt.
type FailureClass string

const (
	// FailureRetryable covers timeouts, network faults and 5xx responses.
	FailureRetryable FailureClass = "retryable"
	// FailureExhausted covers quota, auth and other permanent refusals.
	FailureExhausted FailureClass = "exhausted"
	// FailureInvalidRequest means the provider rejected the request shape.
	FailureInvalidRequest FailureClass = "invalid_request"
)

// ProviderError is a failed completion attempt.
type ProviderError struct {
	Provider   string
	Model      string
	Class      FailureClass
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error [%s/%s] %s (status %d): %v", e.Provider, e.Model, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider error [%s/%s] %s: %v", e.Provider, e.Model, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same entry may be tried again.
func (e *ProviderError) Retryable() bool {
	return e.Class == FailureRetryable
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, model string, class FailureClass, status int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Model:      model,
		Class:      class,
		StatusCode: status,
		Err:        err,
	}
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Operation string
	Key       string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s] %s: %v", e.Operation, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, key string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Key:       key,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single import.
func New(text string) error {
	return errors.New(text)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
