// Package rerror defines the tagged error variants that flow out of every
// layer of the core. Command handlers never panic or unwind across the
// executor boundary; they return one of these and the executor's errReply
// (pkg/command) is the only place that renders them to wire form.
package rerror

import "fmt"

// Kind classifies an error the way spec.md's error taxonomy does.
type Kind string

const (
	KindParse       Kind = "parse"
	KindWrongType   Kind = "wrongtype"
	KindNotInteger  Kind = "notinteger"
	KindNotFloat    Kind = "notfloat"
	KindInvalidState Kind = "invalidstate"
	KindKeyExists   Kind = "keyexists"
	KindOOM         Kind = "oom"
	KindMoved       Kind = "moved"
	KindAsk         Kind = "ask"
	KindTransient   Kind = "transient"
	KindFatal       Kind = "fatal"
	KindNoScript    Kind = "noscript"
)

// Error is the tagged error type every layer returns.
type Error struct {
	Kind Kind
	// Code is the RESP error prefix (e.g. "ERR", "WRONGTYPE", "MOVED").
	Code string
	Msg  string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s %s", e.Code, e.Msg)
}

func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func WrongType() *Error {
	return New(KindWrongType, "WRONGTYPE", "Operation against a key holding the wrong kind of value")
}

func NotInteger() *Error {
	return New(KindNotInteger, "ERR", "value is not an integer or out of range")
}

func NotFloat() *Error {
	return New(KindNotFloat, "ERR", "value is not a valid float")
}

func Syntax() *Error {
	return New(KindParse, "ERR", "syntax error")
}

func WrongArity(cmd string) *Error {
	return New(KindParse, "ERR", "wrong number of arguments for '%s' command", cmd)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, "ERR", format, args...)
}

func OOM() *Error {
	return New(KindOOM, "OOM", "command not allowed when used memory > 'maxmemory'")
}

func KeyExists() *Error {
	return New(KindKeyExists, "ERR", "item already exists")
}

func Moved(slot int, addr string) *Error {
	return New(KindMoved, "MOVED", "%d %s", slot, addr)
}

func Ask(slot int, addr string) *Error {
	return New(KindAsk, "ASK", "%d %s", slot, addr)
}

func Transient(format string, args ...any) *Error {
	return New(KindTransient, "TRYAGAIN", format, args...)
}

func NoScript() *Error {
	return New(KindNoScript, "NOSCRIPT", "No matching script. Please use EVAL.")
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
