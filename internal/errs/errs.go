// Package errs defines the error kinds shared by every stage of the
// generation service so the HTTP layer can map failures to responses
// without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	Validation
	ModelLoad
	Synthesis
	Storage
	NotFound
	Forbidden
	Busy
	Timeout
)

var kindNames = map[Kind]string{
	Unknown:    "unknown",
	Validation: "validation",
	ModelLoad:  "model_load",
	Synthesis:  "synthesis",
	Storage:    "storage",
	NotFound:   "not_found",
	Forbidden:  "forbidden",
	Busy:       "busy",
	Timeout:    "timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// Error carries a kind, the operation that failed, and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. A nil cause is replaced by the kind name.
func E(kind Kind, op string, err error) *Error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == Unknown {
			return KindOf(e.Err)
		}
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
