// Package mpcerr defines the uniform error taxonomy used across mpcgraph:
// TypeError, ValueError, NotImplemented and Internal, per the evaluator's
// failure semantics. Packages build their errors with these constructors
// and declare no sentinel errors of their own, so callers categorize a
// failure by its Kind (see Is).
package mpcerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure the way the evaluator's contract requires.
type Kind int

const (
	// KindType marks shape/scalar-type mismatches, invalid tuple access,
	// or evaluation against an un-finalized graph.
	KindType Kind = iota
	// KindValue marks malformed permutations, out-of-range indices,
	// Cuckoo insertion failures, and similar caller-data problems.
	KindValue
	// KindNotImplemented marks an operation/type pair the evaluator
	// does not recognize.
	KindNotImplemented
	// KindInternal marks a violated invariant between the type checker
	// and the evaluator. Not recoverable; see Internal.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "TypeError"
	case KindValue:
		return "ValueError"
	case KindNotImplemented:
		return "NotImplemented"
	case KindInternal:
		return "Internal"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error value returned by the constructors below.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Type builds a TypeError.
func Type(format string, args ...any) error {
	return &Error{Kind: KindType, msg: fmt.Sprintf(format, args...)}
}

// Value builds a ValueError.
func Value(format string, args ...any) error {
	return &Error{Kind: KindValue, msg: fmt.Sprintf(format, args...)}
}

// NotImplemented builds a NotImplemented error.
func NotImplemented(format string, args ...any) error {
	return &Error{Kind: KindNotImplemented, msg: fmt.Sprintf(format, args...)}
}

// Internal builds an Internal error — a violated invariant that should
// have been caught upstream. Callers that treat this as panic-worthy
// may do so; mpcerr itself never panics.
func Internal(format string, args ...any) error {
	return &Error{Kind: KindInternal, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a new error of the given kind.
func Wrap(k Kind, cause error, format string, args ...any) error {
	return &Error{Kind: k, msg: fmt.Sprintf(format, args...), err: cause}
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
