// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrPaused             = errors.New("trading is paused")
	ErrDailyLimitReached  = errors.New("daily trade limit reached")
	ErrCooldownActive     = errors.New("loss cooldown active")
	ErrPositionOpen       = errors.New("position already open")
	ErrNoPosition         = errors.New("no open position")
	ErrInsufficientVotes  = errors.New("not enough voters responded")
	ErrLowConfidence      = errors.New("consensus confidence below threshold")
	ErrTimeout            = errors.New("operation timed out")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrTradingSuspended   = errors.New("trading suspended pending operator resume")
)

// ExchangeError represents an error from the exchange API.
// Fatal errors (authentication, malformed request) suspend trading;
// everything else is treated as transient and retried.
type ExchangeError struct {
	Op      string
	Symbol  string
	Code    int
	Message string
	Fatal   bool
	Err     error
}

func (e *ExchangeError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("exchange %s %s: %s (code %d)", e.Op, e.Symbol, e.Message, e.Code)
	}
	return fmt.Sprintf("exchange %s: %s (code %d)", e.Op, e.Message, e.Code)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// NewExchangeError creates a new ExchangeError.
func NewExchangeError(op, symbol string, code int, message string, err error) *ExchangeError {
	return &ExchangeError{
		Op:      op,
		Symbol:  symbol,
		Code:    code,
		Message: message,
		Fatal:   isFatalCode(code),
		Err:     err,
	}
}

// isFatalCode reports whether an HTTP-level status means the error will
// not resolve by retrying.
func isFatalCode(code int) bool {
	switch code {
	case 400, 401, 403:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err is an exchange error that must suspend
// trading rather than be retried.
func IsFatal(err error) bool {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Fatal
	}
	return errors.Is(err, ErrInvalidCredentials)
}

// IsTransient reports whether err should be retried on the next tick.
// All exchange errors are transient unless explicitly classified fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !IsFatal(err)
}

// VoterError represents a failure of a single voter. Always isolated:
// the voter abstains and the tick continues.
type VoterError struct {
	VoterID string
	Err     error
}

func (e *VoterError) Error() string {
	return fmt.Sprintf("voter %s: %v", e.VoterID, e.Err)
}

func (e *VoterError) Unwrap() error {
	return e.Err
}

// NewVoterError creates a new VoterError.
func NewVoterError(voterID string, err error) *VoterError {
	return &VoterError{VoterID: voterID, Err: err}
}
