package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeProviderUnavailable ErrorType = "provider_unavailable"
	ErrorTypeRecognitionFailed   ErrorType = "recognition_failed"
	ErrorTypeExhaustedRetries    ErrorType = "exhausted_retries"
	ErrorTypeConversionFailed    ErrorType = "conversion_failed"
	ErrorTypePageTimeout         ErrorType = "page_timeout"
	ErrorTypeAllEnginesFailed    ErrorType = "all_engines_failed"
	ErrorTypeNoEngineAvailable   ErrorType = "no_engine_available"
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeConfig              ErrorType = "config"
	ErrorTypeStorage             ErrorType = "storage"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err is (or wraps) a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == errType
	}
	return false
}

// ProviderUnavailableError marks a provider whose required configuration is
// absent at construction time; the engine excludes it from selection.
func ProviderUnavailableError(provider, reason string) *DomainError {
	return NewError(ErrorTypeProviderUnavailable, fmt.Sprintf("provider %s unavailable: %s", provider, reason), nil)
}

// RecognitionFailedError wraps a single provider call's failure.
func RecognitionFailedError(message string, err error) *DomainError {
	return NewError(ErrorTypeRecognitionFailed, message, err)
}

// ExhaustedRetriesError is returned after the retry budget is spent; the last
// cause is preserved for failover diagnostics.
func ExhaustedRetriesError(attempts int, lastCause error) *DomainError {
	return NewError(ErrorTypeExhaustedRetries, fmt.Sprintf("request failed after %d attempts", attempts), lastCause)
}

// ConversionFailedError marks a PDF rasterization failure; fatal for the
// whole document.
func ConversionFailedError(message string, err error) *DomainError {
	return NewError(ErrorTypeConversionFailed, message, err)
}

// PageTimeoutError marks a single page that exceeded its processing deadline.
func PageTimeoutError(page int) *DomainError {
	return NewError(ErrorTypePageTimeout, fmt.Sprintf("page %d exceeded its deadline", page), nil)
}

// AllEnginesFailedError aggregates every engine's failure for one request.
func AllEnginesFailedError(causes []string, errs ...error) *DomainError {
	return NewError(
		ErrorTypeAllEnginesFailed,
		fmt.Sprintf("all OCR engines failed. Errors: %s", strings.Join(causes, " | ")),
		errors.Join(errs...),
	)
}

// NoEngineAvailableError is the terminal fail-fast error for an engine with
// no constructible providers.
func NoEngineAvailableError() *DomainError {
	return NewError(ErrorTypeNoEngineAvailable, "no OCR engine available: set a cloud API key or ensure the local model server is running", nil)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func StorageError(message string, err error) *DomainError {
	return NewError(ErrorTypeStorage, message, err)
}
