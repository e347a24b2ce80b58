// Package failure defines the classified error type shared by every part of
// the pipeline.
//
// Errors are split into three kinds. Soft errors are caused by the user (bad
// input, nothing to test) and are reported without a stack of internal
// detail. Infrastructure errors are caused by the environment (a guest could
// not be provisioned, a remote service is down). Configuration errors are
// caused by the pipeline definition itself (missing options, invalid rules).
//
// Any error in a chain can carry a kind by implementing FailureKind; KindOf
// finds it with errors.As, so wrapping with fmt.Errorf("...: %w") keeps the
// classification intact.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindInfra marks failures of the environment the pipeline runs in.
	KindInfra
	// KindSoft marks failures the user is expected to fix.
	KindSoft
	// KindConfig marks invalid pipeline or module configuration.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindInfra:
		return "infra"
	case KindSoft:
		return "soft"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a classified error with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	// URL optionally points the user to more information about the failure.
	URL string
	// Retry requests a whole-pipeline retry when the runner has attempts left.
	Retry bool
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s (see %s)", msg, e.URL)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// FailureKind reports the classification of the error.
func (e *Error) FailureKind() Kind { return e.Kind }

// IsRetryable reports whether the error asks for a pipeline retry.
func (e *Error) IsRetryable() bool { return e.Retry }

// Soft returns a soft error with a formatted message.
func Soft(format string, args ...any) *Error {
	return &Error{Kind: KindSoft, Message: fmt.Sprintf(format, args...)}
}

// Infra returns an infrastructure error with a formatted message.
func Infra(format string, args ...any) *Error {
	return &Error{Kind: KindInfra, Message: fmt.Sprintf(format, args...)}
}

// Config returns a configuration error with a formatted message.
func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err with the given kind. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the classification of the first classified error in err's
// chain, or KindUnknown.
func KindOf(err error) Kind {
	var classified interface{ FailureKind() Kind }
	if errors.As(err, &classified) {
		return classified.FailureKind()
	}
	return KindUnknown
}

// IsSoft reports whether err is classified as soft.
func IsSoft(err error) bool {
	return KindOf(err) == KindSoft
}

type retryable struct {
	err error
}

func (r *retryable) Error() string     { return r.err.Error() }
func (r *retryable) Unwrap() error     { return r.err }
func (r *retryable) IsRetryable() bool { return true }

// Retryable marks err as one that should trigger a whole-pipeline retry.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryable{err: err}
}

// IsRetryable reports whether any error in err's chain asks for a retry.
func IsRetryable(err error) bool {
	for err != nil {
		if r, ok := err.(interface{ IsRetryable() bool }); ok && r.IsRetryable() {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if IsRetryable(inner) {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return false
}

// Failure describes why a pipeline attempt ended. It is handed to every
// module's destroy hook; a nil *Failure means the pipeline succeeded.
type Failure struct {
	// Module is the name of the module that failed, empty if the failure did
	// not come from a module (e.g. an interrupt between modules).
	Module string
	Err    error
}

// Soft reports whether the failure was caused by a soft error.
func (f *Failure) Soft() bool {
	return f != nil && IsSoft(f.Err)
}

func (f *Failure) Error() string {
	if f.Module == "" {
		return f.Err.Error()
	}
	return fmt.Sprintf("module '%s' failed: %v", f.Module, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
