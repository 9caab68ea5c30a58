package resolver

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for identity resolution.
type ErrorCategory string

const (
	// ErrorTimeout indicates the wallet took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the wallet returned malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorWalletUnavailable indicates no local identity wallet is reachable
	ErrorWalletUnavailable ErrorCategory = "wallet_unavailable"

	// ErrorAuthentication indicates the wallet refused the request
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the wallet or its lookup service is failing
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorContractMismatch indicates the wallet rejected the request shape
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorNotFound indicates nothing matched
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorCanceled indicates the caller gave up
	ErrorCanceled ErrorCategory = "canceled"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ErrNoIdentityWallet is the distinguished condition a caller may surface as
// a "install or start your identity wallet" prompt. Match it with errors.Is.
var ErrNoIdentityWallet = errors.New("no identity wallet available")

// ResolutionError wraps resolution failures with a normalized category.
type ResolutionError struct {
	Category   ErrorCategory
	Op         string
	Message    string
	Underlying error
}

func (e *ResolutionError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("identity %s [%s]: %s: %v", e.Op, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("identity %s [%s]: %s", e.Op, e.Category, e.Message)
}

func (e *ResolutionError) Unwrap() error {
	return e.Underlying
}

// Is makes every wallet-unavailable error match ErrNoIdentityWallet.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrNoIdentityWallet && e.Category == ErrorWalletUnavailable
}

// NewResolutionError creates a new normalized resolution error.
func NewResolutionError(category ErrorCategory, op, message string, underlying error) *ResolutionError {
	return &ResolutionError{
		Category:   category,
		Op:         op,
		Message:    message,
		Underlying: underlying,
	}
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Category
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorInternal
}

// IsDependencyFailure reports whether err says the wallet itself is unhealthy,
// as opposed to the query having no answer or the caller giving up.
func IsDependencyFailure(err error) bool {
	switch GetCategory(err) {
	case ErrorTimeout, ErrorWalletUnavailable, ErrorProviderOutage, ErrorRateLimited, ErrorInternal:
		return true
	default:
		return false
	}
}
