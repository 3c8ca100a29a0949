// Package rpcerr defines the error taxonomy the remoting core produces.
package rpcerr

import "github.com/pkg/errors"

// Kind classifies an error the way the dispatcher and interceptor report it.
type Kind string

const (
	UnsupportedOperation Kind = "UnsupportedOperation"
	ProxyManagementError Kind = "ProxyManagementError"
	ProtocolError        Kind = "ProtocolError"
	SerializationFailure Kind = "SerializationFailure"
	ConnectionLost       Kind = "ConnectionLost"
)

// Error wraps an underlying cause with the kind the caller/connection needs
// to decide whether this is recoverable (caller-visible) or fatal
// (connection torn down).
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a Kind-tagged error, annotating msg via pkg/errors so the
// stack trace at the throw site survives until it's logged or shipped.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap tags an existing error with a Kind, preserving its cause chain.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.WithStack(err)}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}

// Classify extracts the Kind and bare message an exception frame should
// carry for err, so the original Kind survives the wire instead of every
// remote failure flattening to the same bucket at the caller (spec.md §7).
// A plain error with no Kind of its own (one that never passed through
// New/Wrap) classifies as UnsupportedOperation, the source's catch-all.
func Classify(err error) (Kind, string) {
	var e *Error
	cur := err
	for cur != nil {
		if ke, ok := cur.(*Error); ok {
			e = ke
			break
		}
		cur = errors.Unwrap(cur)
	}
	if e == nil {
		return UnsupportedOperation, err.Error()
	}
	if e.cause == nil {
		return e.Kind, ""
	}
	return e.Kind, e.cause.Error()
}

// Fatal reports whether errors of this kind tear down the connection
// rather than being shipped back to the caller as an ExceptionReturn.
func (k Kind) Fatal() bool {
	return k == ProtocolError || k == ConnectionLost
}
