// Package fserrors provides the closed set of domain error kinds the engine
// uses internally, plus the convenience wrapping helpers the rest of the
// module is written against. Handlers return one of these instead of raw
// errno values; the dispatch package is the only place that knows how to
// turn a Kind into the reply the kernel expects.
package fserrors

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind is a closed set of domain error categories, each with a single fixed
// errno mapping at the channel boundary (see Errno).
type Kind int

const (
	// Unclassified is the zero value; errors that were never tagged with a
	// Kind map to EIO, the same as the catch-all for unexpected panics.
	Unclassified Kind = iota
	NoEntry
	NoAttribute
	BadHandle
	IsDir
	NotDir
	Exists
	NotEmpty
	ReadOnly
	CrossMount
	AccessDenied
	Interrupted
	Timeout
	Exhausted
	NotImplemented
	CorruptSnapshot
	BackendUnavailable
	MountFailed
)

func (k Kind) String() string {
	switch k {
	case NoEntry:
		return "NoEntry"
	case NoAttribute:
		return "NoAttribute"
	case BadHandle:
		return "BadHandle"
	case IsDir:
		return "IsDir"
	case NotDir:
		return "NotDir"
	case Exists:
		return "Exists"
	case NotEmpty:
		return "NotEmpty"
	case ReadOnly:
		return "ReadOnly"
	case CrossMount:
		return "CrossMount"
	case AccessDenied:
		return "AccessDenied"
	case Interrupted:
		return "Interrupted"
	case Timeout:
		return "Timeout"
	case Exhausted:
		return "Exhausted"
	case NotImplemented:
		return "NotImplemented"
	case CorruptSnapshot:
		return "CorruptSnapshot"
	case BackendUnavailable:
		return "BackendUnavailable"
	case MountFailed:
		return "MountFailed"
	default:
		return "Unclassified"
	}
}

// Errno returns the fixed errno for kinds that are ever routed to the
// kernel. MountFailed is reported to the caller of the mount helper and
// never reaches this table.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case NoEntry:
		return syscall.ENOENT
	case NoAttribute:
		return syscall.ENODATA
	case BadHandle:
		return syscall.EBADF
	case IsDir:
		return syscall.EISDIR
	case NotDir:
		return syscall.ENOTDIR
	case Exists:
		return syscall.EEXIST
	case NotEmpty:
		return syscall.ENOTEMPTY
	case ReadOnly:
		return syscall.EROFS
	case CrossMount:
		return syscall.EXDEV
	case AccessDenied:
		return syscall.EACCES
	case Interrupted:
		return syscall.EINTR
	case Timeout:
		return syscall.ETIMEDOUT
	case Exhausted:
		return syscall.EMFILE
	case NotImplemented:
		return syscall.ENOSYS
	case CorruptSnapshot, BackendUnavailable:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}

// Error is a Kind tagged onto an underlying cause.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.err }

// New creates a Kind-tagged error with a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, msg: msg}
}

// Newf creates a Kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a Kind, preserving it in the chain so
// errors.Is/As and Unwrap still see the original cause.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: msg, err: err}
}

// Wrapf tags an existing error with a Kind and a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf recovers the Kind tagged onto err, walking the wrap chain. Errors
// that were never tagged (including nil) report Unclassified, which the
// dispatch boundary maps to EIO exactly like an unexpected panic.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return Unclassified
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap unwraps an error to find its immediate cause.
func Unwrap(err error) error { return errors.Unwrap(err) }
