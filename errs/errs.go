// Package errs implements the error taxonomy shared by every crawlserv
// component: storage, the URL-list engine, the thread supervisor and the
// modules built on top of it.
package errs

import "fmt"

// Class classifies an error into one of the categories the supervisor and
// control surface know how to react to.
type Class int

const (
	// Internal is the zero value so a forgotten classification fails safe
	// (terminates the work unit) rather than silently retrying forever.
	Internal Class = iota
	InvalidInput
	NotFound
	Conflict
	Transient
	PermissionDenied
	Corruption
)

func (c Class) String() string {
	switch c {
	case InvalidInput:
		return "InvalidInput"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case Transient:
		return "Transient"
	case PermissionDenied:
		return "PermissionDenied"
	case Corruption:
		return "Corruption"
	default:
		return "Internal"
	}
}

// Error wraps a cause with a Class so callers can switch on it without
// string-matching messages.
type Error struct {
	Class   Class
	Op      string // operation that failed, e.g. "store.CreateList"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no underlying cause.
func New(class Class, op, message string) *Error {
	return &Error{Class: class, Op: op, Message: message}
}

// Wrap classifies cause under class, attaching op/message for context.
func Wrap(class Class, op string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Class: class, Op: op, Message: cause.Error(), Cause: cause}
}

// Wrapf is Wrap with a formatted message prefixed to the cause.
func Wrapf(class Class, op string, cause error, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Class: class, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ClassOf returns the Class of err if it is (or wraps) an *Error, else
// Internal. Used by the supervisor to decide retry-vs-terminate without
// needing every caller to type-assert.
func ClassOf(err error) Class {
	var e *Error
	if as(err, &e) {
		return e.Class
	}
	return Internal
}

// IsTransient is a convenience for the supervisor's retry loop.
func IsTransient(err error) bool {
	return ClassOf(err) == Transient
}

// as is a tiny local errors.As to avoid importing errors just for this.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
