package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport-level failures and timeouts
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents malformed or unrecognised response bodies
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents HTTP 429 responses
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeNotResolvable represents a profile that could not be mapped to an account id
	ErrorTypeNotResolvable ErrorType = "not_resolvable"
	// ErrorTypeInaccessible represents a private, missing or login-walled list
	ErrorTypeInaccessible ErrorType = "inaccessible"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStorage represents weekly-top store errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError is the error carried through the Steam discount pipeline
type PipelineError struct {
	Type       ErrorType
	Source     string
	Message    string
	Err        error
	RetryAfter time.Duration
	Time       time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Source == "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s - %v", e.Type, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// New creates a new PipelineError
func New(errType ErrorType, source, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *PipelineError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, retryAfter time.Duration) *PipelineError {
	e := New(ErrorTypeRateLimit, source, fmt.Sprintf("rate limited for %v", retryAfter), nil)
	e.RetryAfter = retryAfter
	return e
}

// NewNotResolvable creates an error for an identifier that maps to no account
func NewNotResolvable(input, message string, err error) *PipelineError {
	return New(ErrorTypeNotResolvable, input, message, err)
}

// NewInaccessible creates an error for a list that cannot be read
func NewInaccessible(source, message string) *PipelineError {
	return New(ErrorTypeInaccessible, source, message, nil)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *PipelineError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewStorage creates a new storage error
func NewStorage(source, message string, err error) *PipelineError {
	return New(ErrorTypeStorage, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *PipelineError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// RetryAfter returns the wait a rate-limit error in err's chain asked for
func RetryAfter(err error) time.Duration {
	var pe *PipelineError
	if stderrors.As(err, &pe) && pe.Type == ErrorTypeRateLimit {
		return pe.RetryAfter
	}
	return 0
}

// IsType reports whether any PipelineError in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type == errType
	}
	return false
}
