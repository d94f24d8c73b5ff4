package task

import "fmt"

// Kind enumerates the engine's error taxonomy. It names a category of
// failure, not a concrete Go type, so callers compare with errors.Is
// against the sentinel values below rather than a type assertion.
type Kind int

const (
	// UnknownMessageIndex: a response named a message or part outside the
	// local tree's current bounds.
	UnknownMessageIndex Kind = iota
	// UnexpectedResponseReceived: a response arrived in a state the engine
	// had no way to attribute, e.g. FETCH before the message list synced.
	UnexpectedResponseReceived
	// CommandFailed: the server replied NO or BAD to a tagged command.
	CommandFailed
	// ConnectionLost: socket error, BYE, or an I/O timeout.
	ConnectionLost
	// PolicyDenied: the network policy gate refused a URL.
	PolicyDenied
)

func (k Kind) String() string {
	switch k {
	case UnknownMessageIndex:
		return "UnknownMessageIndex"
	case UnexpectedResponseReceived:
		return "UnexpectedResponseReceived"
	case CommandFailed:
		return "CommandFailed"
	case ConnectionLost:
		return "ConnectionLost"
	case PolicyDenied:
		return "PolicyDenied"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind plus whatever caused
// it, so errors.Is(err, task.Sentinel(...)) composes with %w wrapping the way
// the rest of the engine's boundaries do.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, task.Sentinel(X)) work directly against a Kind
// sentinel, without forcing callers to unwrap to *Error first.
func (e *Error) Is(target error) bool {
	if k, ok := target.(kindSentinel); ok {
		return e.Kind == k.kind
	}
	return false
}

type kindSentinel struct{ kind Kind }

func (kindSentinel) Error() string { return "" }

// Sentinel returns an error value usable as errors.Is's target to match
// any *Error of the given Kind, e.g. errors.Is(err, task.Sentinel(task.CommandFailed)).
func Sentinel(k Kind) error { return kindSentinel{kind: k} }

func newErr(k Kind, detail string, cause error) *Error {
	return &Error{Kind: k, Detail: detail, Cause: cause}
}
