package step

import (
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound is returned when no selector strategy produced a
	// usable element within the element timeout.
	ErrElementNotFound = errors.New("element not found")

	// ErrNavigationTimeout is returned when a page, URL or popup was not
	// reached within the navigation timeout.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrResponseTimeout is returned when no matching response arrived
	// within the response timeout.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrAssertionFailed is returned when the page was reachable but did
	// not show what the step expected.
	ErrAssertionFailed = errors.New("assertion failed")

	// ErrUnexpectedFailure covers everything else: driver crashes, closed
	// pages, cancelled contexts.
	ErrUnexpectedFailure = errors.New("unexpected failure")
)

var kinds = []error{
	ErrElementNotFound,
	ErrNavigationTimeout,
	ErrResponseTimeout,
	ErrAssertionFailed,
	ErrUnexpectedFailure,
}

// Error is the failure of one action.
type Error struct {
	Action string
	Target string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	msg := e.Action
	if e.Target != "" {
		msg += " " + e.Target
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(action, target string, kind, cause error) *Error {
	return &Error{Action: action, Target: target, Kind: kind, Err: cause}
}

// KindOf returns the kind sentinel of err, or nil for a nil error. Errors
// that carry no kind are reported as ErrUnexpectedFailure.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnexpectedFailure
}

// KindName returns the stable snake_case name of a kind, used in logs,
// metrics labels and stored results.
func KindName(kind error) string {
	switch kind {
	case nil:
		return ""
	case ErrElementNotFound:
		return "element_not_found"
	case ErrNavigationTimeout:
		return "navigation_timeout"
	case ErrResponseTimeout:
		return "response_timeout"
	case ErrAssertionFailed:
		return "assertion_failed"
	case ErrUnexpectedFailure:
		return "unexpected_failure"
	default:
		return fmt.Sprintf("unknown(%v)", kind)
	}
}
