package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "write")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrInsufficientDepth is returned by the book aggregator when the book
	// cannot cover the requested size. Callers treat it as "no signal this
	// cycle", never as a price.
	ErrInsufficientDepth = errors.New("insufficient depth")

	// ErrDCALimit is returned when an ADD would exceed the configured maximum
	// number of DCA fills. Rejected, not clamped.
	ErrDCALimit = errors.New("dca limit reached")

	// ErrStakeLimit is returned when an action would push total stake past
	// the per-event cap.
	ErrStakeLimit = errors.New("stake limit exceeded")

	// ErrWindowClosed is returned when an action targets a window whose state
	// is already CLOSED.
	ErrWindowClosed = errors.New("window closed")

	// ErrInvalidTransition is returned when an action is not legal for the
	// current position status.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStateNotFound is returned when no persisted state exists for the
	// requested market window.
	ErrStateNotFound = errors.New("state not found")

	// ErrConnectionFailed is returned when a websocket connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNoActiveMarket is returned when the metadata service has no window
	// matching the configured slug prefixes right now.
	ErrNoActiveMarket = errors.New("no active market")

	// ErrOrderFailed is returned when the execution sink rejects or fails an
	// order. No ledger mutation follows.
	ErrOrderFailed = errors.New("order failed")
)
