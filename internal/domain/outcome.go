package domain

import (
	"errors"
	"fmt"
	"time"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
	OutcomeBanDetected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	case OutcomeBanDetected:
		return "ban_detected"
	default:
		return "unknown"
	}
}

// ErrorClass narrows a non-success outcome to the failure domain that produced it.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassAuth
	ClassProxy
	ClassProxyBlocked
	ClassRateLimited
	ClassTransientNetwork
	ClassFatalCall
	ClassBan
	ClassTimeout
	ClassDiscarded
	ClassCanceled
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassAuth:
		return "auth_error"
	case ClassProxy:
		return "proxy_error"
	case ClassProxyBlocked:
		return "proxy_blocked"
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransientNetwork:
		return "transient_network"
	case ClassFatalCall:
		return "fatal_call"
	case ClassBan:
		return "ban_detected"
	case ClassTimeout:
		return "timeout"
	case ClassDiscarded:
		return "discarded"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinel returns the package error matching the class, used for errors.Is checks.
func (c ErrorClass) Sentinel() error {
	switch c {
	case ClassAuth:
		return ErrAuth
	case ClassProxy, ClassProxyBlocked:
		return ErrProxy
	case ClassRateLimited:
		return ErrRateLimited
	case ClassTransientNetwork:
		return ErrTransientNetwork
	case ClassFatalCall:
		return ErrFatalCall
	case ClassBan:
		return ErrBanned
	case ClassTimeout:
		return ErrTimeout
	case ClassDiscarded:
		return ErrDiscarded
	case ClassCanceled:
		return ErrCanceled
	default:
		return nil
	}
}

// CallOutcome is the classified result of one call.
type CallOutcome struct {
	Kind       OutcomeKind
	Class      ErrorClass
	Reason     string
	Payload    []byte
	StatusCode int
	RetryAfter time.Duration
	Attempts   int
	Endpoint   string
}

func Success(payload []byte) CallOutcome {
	return CallOutcome{Kind: OutcomeSuccess, Payload: payload}
}

func Retryable(class ErrorClass, reason string) CallOutcome {
	return CallOutcome{Kind: OutcomeRetryable, Class: class, Reason: reason}
}

func Fatal(class ErrorClass, reason string) CallOutcome {
	return CallOutcome{Kind: OutcomeFatal, Class: class, Reason: reason}
}

func BanDetected(reason string) CallOutcome {
	return CallOutcome{Kind: OutcomeBanDetected, Class: ClassBan, Reason: reason}
}

func (o CallOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

func (o CallOutcome) String() string {
	if o.OK() {
		return o.Kind.String()
	}
	if o.Reason == "" {
		return fmt.Sprintf("%s (%s)", o.Kind, o.Class)
	}
	return fmt.Sprintf("%s (%s): %s", o.Kind, o.Class, o.Reason)
}

// Err converts a failed outcome into an error; successful outcomes return nil.
func (o CallOutcome) Err() error {
	if o.OK() {
		return nil
	}
	return &CallError{Outcome: o}
}

// CallError carries a failed outcome through error-returning APIs.
type CallError struct {
	Outcome CallOutcome
}

func (e *CallError) Error() string {
	return e.Outcome.String()
}

func (e *CallError) Unwrap() error {
	return e.Outcome.Class.Sentinel()
}

// OutcomeFromError recovers the outcome wrapped in err, if any.
func OutcomeFromError(err error) (CallOutcome, bool) {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Outcome, true
	}
	return CallOutcome{}, false
}
