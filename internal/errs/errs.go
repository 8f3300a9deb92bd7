// Package errs defines the error-kind taxonomy shared by every component of
// the indexer. Kinds are not Go types but sentinel values matched with
// github.com/pkg/errors' Is/As, so callers can test an error's kind through
// any number of wrap layers. New and Wrap record no stack trace.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the taxonomy buckets from the error handling design.
type Kind string

const (
	KindCancelled     Kind = "cancelled"
	KindConfiguration Kind = "configuration"
	KindTransport     Kind = "transport"
	KindProtocol      Kind = "protocol"
	KindSemantic      Kind = "semantic"
	KindDatabase      Kind = "database"
)

// Error carries a Kind alongside the usual message/cause chain.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is(err, errs.Cancelled) work against any *Error of the same
// Kind, regardless of message or wrapped cause — Kind sentinels identify a
// bucket, not a specific instance.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// New creates a new Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving its cause chain.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// Cancelled is the sentinel matched by IsCancelled; every operation that
// observes a tripped shutdown latch returns an error satisfying this.
var Cancelled = &Error{Kind: KindCancelled, msg: "operation cancelled by shutdown"}

// IsCancelled reports whether err (or any error in its chain) represents a
// cooperative cancellation rather than a real failure. The process exit
// filter in cmd/telescope uses this to demote cancellation to a clean exit.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, Cancelled)
}

// KindOf extracts the Kind of err if it (or a wrapped ancestor) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
