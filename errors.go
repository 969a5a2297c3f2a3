package clifs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the tree engine can report. Host adapters
// translate kinds into their own status codes.
type ErrorKind int

const (
	// KindUnknown is never produced by the engine; foreign errors map to it.
	KindUnknown ErrorKind = iota
	NotFound
	NotADirectory
	IsADirectory
	AlreadyExists
	InvalidOperation
	BadHandle
	// InternalInconsistency reports a re-insertion that failed after its
	// uniqueness check passed. The operation is unrecoverable.
	InternalInconsistency
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown error",
	NotFound:              "not found",
	NotADirectory:         "not a directory",
	IsADirectory:          "is a directory",
	AlreadyExists:         "already exists",
	InvalidOperation:      "invalid operation",
	BadHandle:             "bad file descriptor",
	InternalInconsistency: "internal inconsistency",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels for use with errors.Is. Any *Error of the same kind matches.
var (
	ErrNotFound              = &Error{Kind: NotFound}
	ErrNotADirectory         = &Error{Kind: NotADirectory}
	ErrIsADirectory          = &Error{Kind: IsADirectory}
	ErrAlreadyExists         = &Error{Kind: AlreadyExists}
	ErrInvalidOperation      = &Error{Kind: InvalidOperation}
	ErrBadHandle             = &Error{Kind: BadHandle}
	ErrInternalInconsistency = &Error{Kind: InternalInconsistency}
)

// Error is the error type returned by every engine operation.
type Error struct {
	Kind ErrorKind
	Op   string // operation name i.e. "mkdir"
	Path string // path or handle the operation was addressing; may be empty
	Err  error  // optional underlying cause
}

// NewError builds an *Error of the given kind for op on path.
func NewError(kind ErrorKind, op, path string) *Error {
	return &Error{Kind: kind, Op: op, Path: path}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		if e.Path != "" {
			msg = fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
		} else {
			msg = fmt.Sprintf("%s: %s", e.Op, msg)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error target of the same Kind, so sentinels compare by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the ErrorKind carried by err, or KindUnknown when err is not
// (and does not wrap) an *Error. A nil err also reports KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
