// Package vectorindex is the host-facing surface of the ANN engine:
// index construction from a parameter bag, dataset ingestion, kNN and
// range queries, serialization, and stats, with every failure reported
// through one typed error family.
package vectorindex

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure the way the engine's contract names
// them; hosts branch on the kind, not the message.
type ErrorKind int

const (
	InvalidArgument ErrorKind = iota
	DuplicateLabel
	NotTrained
	OutOfMemory
	DegreeOverflow
	IncompatibleIndex
	ReadError
	WriteError
	InternalError
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case DuplicateLabel:
		return "duplicate_label"
	case NotTrained:
		return "not_trained"
	case OutOfMemory:
		return "out_of_memory"
	case DegreeOverflow:
		return "degree_overflow"
	case IncompatibleIndex:
		return "incompatible_index"
	case ReadError:
		return "read_error"
	case WriteError:
		return "write_error"
	case Cancelled:
		return "cancelled"
	default:
		return "internal_error"
	}
}

// Error wraps an underlying failure with its kind and the operation
// that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("vectorindex: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("vectorindex: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or InternalError if err is
// not from this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
