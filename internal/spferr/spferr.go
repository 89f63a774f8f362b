// Package spferr defines the closed set of error kinds the container core
// and its wire protocols propagate, per the error handling design: buffer
// status, module return codes, and shared-memory endpoint acks all boil
// down to one of these.
package spferr

import "fmt"

// Code is one of the fixed error kinds. It is never extended at runtime;
// the set is closed by design.
type Code int

const (
	OK Code = iota
	Failed
	BadParam
	Unsupported
	NoMemory
	NeedMore
	Unexpected
	NotReady
	EOF
	Continue
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Failed:
		return "FAILED"
	case BadParam:
		return "BAD_PARAM"
	case Unsupported:
		return "UNSUPPORTED"
	case NoMemory:
		return "NO_MEMORY"
	case NeedMore:
		return "NEED_MORE"
	case Unexpected:
		return "UNEXPECTED"
	case NotReady:
		return "NOT_READY"
	case EOF:
		return "EOF"
	case Continue:
		return "CONTINUE"
	default:
		return "UNKNOWN"
	}
}

// Error pairs a Code with an optional wrapped cause, so call sites can use
// errors.Is(err, spferr.ErrNeedMore) without string matching.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, spferr.ErrNeedMore) work by comparing against a
// sentinel *Error carrying only a Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for errors.Is comparisons, e.g. errors.Is(err, spferr.ErrNeedMore).
var (
	ErrFailed      = &Error{Code: Failed}
	ErrBadParam    = &Error{Code: BadParam}
	ErrUnsupported = &Error{Code: Unsupported}
	ErrNoMemory    = &Error{Code: NoMemory}
	ErrNeedMore    = &Error{Code: NeedMore}
	ErrUnexpected  = &Error{Code: Unexpected}
	ErrNotReady    = &Error{Code: NotReady}
	ErrEOF         = &Error{Code: EOF}
)

// CodeOf extracts the Code from err, defaulting to Failed for anything
// that isn't a *Error (e.g. a raw stdlib error reached a boundary that
// must still produce a status).
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Failed
}
