package errmsg

import (
	"context"
	"errors"
	"net"
)

// Kind classifies an error by how the program reacts to it.
type Kind int

const (
	// Unknown errors are reported as-is.
	Unknown Kind = iota

	// Transient errors (network, timeouts) are retried with backoff.
	Transient

	// PartialFailure means some items succeeded and the rest were recorded.
	PartialFailure

	// Corruption means an on-disk record was unreadable and was discarded.
	Corruption

	// FatalConfig errors stop the program: missing credentials, no usable
	// Python interpreter.
	FatalConfig
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case PartialFailure:
		return "partial failure"
	case Corruption:
		return "corruption"
	case FatalConfig:
		return "fatal config"
	default:
		return "unknown"
	}
}

// Error attaches a Kind to an error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Sentinel returns a comparable error of the given kind, for use with
// errors.Is and fmt.Errorf("%w").
func Sentinel(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of err. Errors without an explicit kind are
// classified as Transient when they look like network failures or
// timeouts.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var partial interface{ PartialFailure() bool }
	if errors.As(err, &partial) && partial.PartialFailure() {
		return PartialFailure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	if isNetworkError(err.Error()) {
		return Transient
	}
	return Unknown
}

// IsFatal reports whether err should terminate the program.
func IsFatal(err error) bool {
	return KindOf(err) == FatalConfig
}

// Severity returns the label printed in front of a message of this kind.
func (k Kind) Severity() string {
	switch k {
	case FatalConfig:
		return "Fatal"
	case PartialFailure, Corruption, Transient:
		return "Warning"
	default:
		return "Error"
	}
}
