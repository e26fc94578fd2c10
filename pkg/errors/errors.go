package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies a pipeline failure
type ErrorType string

const (
	// ErrorTypeConfiguration represents invalid or missing configuration (filters, selectors)
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeValidation represents rejected input (caps, malformed fields)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeFetch represents network, timeout or render failures
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents the remote site throttling us
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeExtraction represents markup that no longer matches the selectors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeStorage represents persistence failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeTransport represents notification delivery failures
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeCredentials represents rejected notification credentials
	ErrorTypeCredentials ErrorType = "credentials"
	// ErrorTypePublisher represents event stream publish failures
	ErrorTypePublisher ErrorType = "publisher"
)

// PipelineError is a typed error attributed to one component and,
// when inside a user pipeline, one user.
type PipelineError struct {
	Type      ErrorType
	Component string
	UserID    string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	scope := e.Component
	if e.UserID != "" {
		scope = fmt.Sprintf("%s/%s", e.Component, e.UserID)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, scope, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, scope, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is expected to clear on the
// next natural cycle. Retryable failures are never retried within a cycle.
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeFetch, ErrorTypeRateLimit, ErrorTypeTransport, ErrorTypePublisher:
		return true
	default:
		return false
	}
}

// WithUser attributes the error to a user pipeline
func (e *PipelineError) WithUser(userID string) *PipelineError {
	e.UserID = userID
	return e
}

// New creates a new PipelineError
func New(errType ErrorType, component, message string, err error) *PipelineError {
	return &PipelineError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewConfiguration creates a new configuration error
func NewConfiguration(component, message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, component, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *PipelineError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewFetch creates a new fetch error
func NewFetch(component, message string, err error) *PipelineError {
	return New(ErrorTypeFetch, component, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(component string, duration time.Duration) *PipelineError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, component, message, nil)
}

// NewExtraction creates a new extraction shape error
func NewExtraction(component, message string, err error) *PipelineError {
	return New(ErrorTypeExtraction, component, message, err)
}

// NewStorage creates a new storage error
func NewStorage(component, message string, err error) *PipelineError {
	return New(ErrorTypeStorage, component, message, err)
}

// NewTransport creates a new transport error
func NewTransport(component, message string, err error) *PipelineError {
	return New(ErrorTypeTransport, component, message, err)
}

// NewCredentials creates a new credentials error
func NewCredentials(component, message string) *PipelineError {
	return New(ErrorTypeCredentials, component, message, nil)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, component, message, err)
}

// GetType returns the ErrorType of err if it is (or wraps) a
// PipelineError, and "" otherwise.
func GetType(err error) ErrorType {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ""
}

// IsType reports whether err is a PipelineError of the given type.
func IsType(err error, t ErrorType) bool {
	return GetType(err) == t
}
