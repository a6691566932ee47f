// Package vision adds error normalization and resilience around any
// VisionPort implementation.
package vision

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the model took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the request or response was malformed
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the model endpoint is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorRateLimited indicates quota exhaustion
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorCanceled indicates the caller gave up
	ErrorCanceled ErrorCategory = "canceled"

	// ErrorInternal indicates an unexpected error
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps capability failures with normalized categorization
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("vision %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("vision %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a normalized error. Timeouts, outages and rate
// limits are retryable.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// ErrCircuitOpen is the underlying error when calls are short-circuited.
var ErrCircuitOpen = errors.New("circuit open")

// Classify normalizes an arbitrary capability error. ProviderErrors pass
// through unchanged; context and gRPC status errors are mapped by kind.
func Classify(providerID, operation string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	msg := operation + " failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ErrorTimeout, providerID, msg, err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ErrorCanceled, providerID, msg, err)
	}

	if st, ok := status.FromError(err); ok {
		return NewProviderError(categoryForCode(st.Code()), providerID, msg, err)
	}
	return NewProviderError(ErrorInternal, providerID, msg, err)
}

func categoryForCode(code codes.Code) ErrorCategory {
	switch code {
	case codes.DeadlineExceeded:
		return ErrorTimeout
	case codes.Unavailable, codes.Aborted:
		return ErrorProviderOutage
	case codes.ResourceExhausted:
		return ErrorRateLimited
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrorAuthentication
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return ErrorBadData
	case codes.Canceled:
		return ErrorCanceled
	default:
		return ErrorInternal
	}
}
