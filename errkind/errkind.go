// Package errkind classifies the errors that cross an RPC boundary between
// the client library, the metadata server, and the file servers. A bare
// error.Error() string is not enough for a caller to decide whether a failed
// call is retryable (Busy), means the caller asked for something that
// doesn't exist (NotFound), or is a programmer mistake (InvalidArgument), so
// every error that leaves a server handler is tagged with a Kind before it
// is written back to the wire.
package errkind

import (
	nlerrors "github.com/NebulousLabs/errors"
)

// Kind classifies the cause of a failed call.
type Kind string

// The set of kinds that the metadata server, file servers, and client
// library distinguish between. Each server's writeError maps a Kind to an
// HTTP status code and sends it as the kind field of rpc.ErrorBody;
// TokenStream messages carry no Kind.
const (
	// KindNone marks an error with no particular classification; treated
	// the same as an opaque internal error.
	KindNone Kind = ""

	// KindNotFound means the named file, descriptor, or token does not
	// exist.
	KindNotFound Kind = "not_found"

	// KindAlreadyExists means a create was attempted against a name that
	// is already registered.
	KindAlreadyExists Kind = "already_exists"

	// KindInvalidArgument means the caller's request was malformed:
	// a negative offset, a descriptor that was never opened, a chunk
	// index that doesn't belong to the file, and so on.
	KindInvalidArgument Kind = "invalid_argument"

	// KindBusy means the call could not complete because a resource is
	// still in use (a delete of a file that has open descriptors); the
	// caller may retry.
	KindBusy Kind = "busy"

	// KindTransportFailed means the error originated below the
	// application protocol: a dial failure, a stream that closed
	// early, a malformed frame.
	KindTransportFailed Kind = "transport_failed"
)

// Error pairs an underlying error with the Kind a caller should use to
// decide how to react. It composes with github.com/NebulousLabs/errors so
// that callers can still Contains() against sentinel errors after the
// Kind has been attached.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New tags err with kind. If err is nil, New returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// NotFound tags err as KindNotFound.
func NotFound(err error) error {
	return New(KindNotFound, err)
}

// AlreadyExists tags err as KindAlreadyExists.
func AlreadyExists(err error) error {
	return New(KindAlreadyExists, err)
}

// InvalidArgument tags err as KindInvalidArgument.
func InvalidArgument(err error) error {
	return New(KindInvalidArgument, err)
}

// Busy tags err as KindBusy.
func Busy(err error) error {
	return New(KindBusy, err)
}

// TransportFailed tags err as KindTransportFailed.
func TransportFailed(err error) error {
	return New(KindTransportFailed, err)
}

// KindOf returns the Kind attached to err, or KindNone if err was never
// tagged (or is nil).
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindNone
}

// Is reports whether err, or anything it wraps, is classified as kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Compose combines multiple errors into a single error, dropping nils. The
// Kind of the composed error is the Kind of the first tagged error found
// among errs, matching the metadata server's convention of reporting the
// most specific failure first.
func Compose(errs ...error) error {
	composed := nlerrors.Compose(errs...)
	if composed == nil {
		return nil
	}
	for _, err := range errs {
		if k := KindOf(err); k != KindNone {
			return New(k, composed)
		}
	}
	return composed
}

// Contains reports whether full (or any error it composes) matches test,
// delegating to github.com/NebulousLabs/errors so that Kind-tagged errors
// compose correctly with plain sentinel errors.
func Contains(full, test error) bool {
	return nlerrors.Contains(full, test)
}

// Extend composes base onto the front of err, preserving err's Kind if it
// has one.
func Extend(err, base error) error {
	if err == nil {
		return base
	}
	if base == nil {
		return err
	}
	k := KindOf(err)
	extended := nlerrors.Extend(err, base)
	if k != KindNone {
		return New(k, extended)
	}
	return extended
}
