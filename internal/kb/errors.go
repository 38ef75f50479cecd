package kb

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a knowledge-base failure for boundary handling. The CLI
// switches on kinds instead of matching concrete error chains; every error
// leaving this package carries exactly one kind.
type Kind int

const (
	// KindUnknown wraps anything unexpected. Compensation runs for it the
	// same as for every other kind.
	KindUnknown Kind = iota

	// KindValidation covers bad names, paths, formats, sizes, and duplicate
	// knowledge-base names. Recoverable by the caller correcting input;
	// never retried automatically.
	KindValidation

	// KindFileProcessing covers document parser failures on corrupt or
	// unsupported content.
	KindFileProcessing

	// KindVectorStore covers vector collection create/write/delete failures.
	KindVectorStore

	// KindDatabase covers relational store failures.
	KindDatabase

	// KindNotFound indicates the named knowledge base does not exist.
	KindNotFound
)

// String returns the stable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindFileProcessing:
		return "file_processing"
	case KindVectorStore:
		return "vector_store"
	case KindDatabase:
		return "database"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the structured failure value of the knowledge-base layer:
// a kind, a message, an optional details map, and the wrapped cause.
type Error struct {
	Kind    Kind
	Msg     string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause, enabling errors.Is/As through the chain.
func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair to the error's details map and
// returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// newError builds an Error of the given kind with a formatted message. If
// the final formatting argument is an error it becomes the wrapped cause.
func newError(kind Kind, format string, args ...any) *Error {
	var cause error
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			cause = err
		}
	}
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
		Err:  cause,
	}
}

// Constructors, one per kind, fmt.Errorf-style. If the final argument is
// an error it is also retained as the wrapped cause.

func Validationf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func FileProcessingf(format string, args ...any) *Error {
	return newError(KindFileProcessing, format, args...)
}

func VectorStoref(format string, args ...any) *Error {
	return newError(KindVectorStore, format, args...)
}

func Databasef(format string, args ...any) *Error {
	return newError(KindDatabase, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Unknownf(format string, args ...any) *Error {
	return newError(KindUnknown, format, args...)
}

// KindOf extracts the failure kind from an error chain. Errors that do not
// originate from this package report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// classify wraps err preserving an existing kind: an error already carrying
// a *Error passes through untouched, anything else becomes the fallback
// kind. This keeps the first failure's classification authoritative through
// the saga.
func classify(err error, fallback Kind, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: fallback, Msg: msg, Err: err}
}
