package genclient

import (
	"errors"
	"fmt"
)

// Kind classifies generation failures so the pipeline can decide between
// rejecting, retrying, and repairing.
type Kind int

const (
	// KindInvalidArgument marks caller errors (bad mark value, empty topic).
	// Never retried.
	KindInvalidArgument Kind = iota
	// KindUnavailable marks transient transport/quota failures. Retried with
	// backoff up to the attempt budget.
	KindUnavailable
	// KindMalformed marks unusable model output. Drives the repair sub-loop.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified generation error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind of an error, defaulting unclassified errors to
// KindUnavailable since unknown transport failures are the retryable case.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnavailable
}

func IsInvalidArgument(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindInvalidArgument
}

func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == KindUnavailable
}

func IsMalformed(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindMalformed
}
