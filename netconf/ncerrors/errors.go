// Package ncerrors defines the error taxonomy shared by every layer of the
// client (§7 of the specification): one rich error type carrying a Kind,
// rather than a Go type per taxonomy entry, following the teacher's habit
// of a single struct (common.RPCError) rather than one type per case.
package ncerrors

import "fmt"

// Kind classifies why an operation failed.
type Kind int

// The error taxonomy kinds, as enumerated by the specification.
const (
	KindInvalidArgument Kind = iota
	KindTransport
	KindTimeout
	KindFraming
	KindProtocol
	KindSemantic
	KindAmbiguity
	KindReadOnly
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindTransport:
		return "Transport"
	case KindTimeout:
		return "Timeout"
	case KindFraming:
		return "Framing"
	case KindProtocol:
		return "Protocol"
	case KindSemantic:
		return "Semantic"
	case KindAmbiguity:
		return "Ambiguity"
	case KindReadOnly:
		return "ReadOnly"
	default:
		return "Unknown"
	}
}

// Error is the library's unified error type. Fatal reports whether the
// error also transitions the owning session to the closed state (§4.4
// "Fatal errors").
type Error struct {
	Kind    Kind
	Message string
	Fatal   bool
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("netconf: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("netconf: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs a non-fatal Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Fatal constructs a fatal Error of the given kind.
func Fatal(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Fatal: true}
}

// FatalWrap constructs a fatal Error of the given kind wrapping cause.
func FatalWrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause, Fatal: true}
}

// MultipleEditError is the distinguished error raised when the resolver
// produces more than one edit-config target and AllowMultipleEdit is
// false (§4.5.1 step 3, §7 Ambiguity).
type MultipleEditError struct {
	Count int
}

func (e *MultipleEditError) Error() string {
	return fmt.Sprintf("netconf: resolver matched %d targets; set AllowMultipleEdit to proceed", e.Count)
}
