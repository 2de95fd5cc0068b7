// Package failure classifies harness errors by kind.
//
// Configuration problems (a missing manifest or testvars file, malformed
// JSON) and driver crashes are reported as *Error values carrying a Kind, so
// callers can branch on errors.As instead of matching message text.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a harness error.
type Kind int

const (
	// Other is any error that is not otherwise classified
	Other Kind = iota
	// NotFound indicates a required file or directory is absent
	NotFound
	// FormatError indicates a file exists but its contents could not be used
	FormatError
	// Crashed indicates the remote automation driver process died
	Crashed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case FormatError:
		return "format error"
	case Crashed:
		return "crashed"
	default:
		return "other"
	}
}

// Error is an error tagged with a Kind and, when relevant, the path it is about.
type Error struct {
	Kind Kind
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping err.
func Wrap(kind Kind, path string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...), Err: err}
}

// NotFoundf returns a NotFound error whose message reads "<what> <path> does not exist".
func NotFoundf(path, what string) *Error {
	return New(NotFound, path, "%s %s does not exist", what, path)
}

// KindOf returns the Kind of err, or Other if err is not (and does not wrap) an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Other
}

// Is reports whether err is or wraps an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
