package syncer

import "fmt"

// OutcomeKind classifies the result of one remote call.
type OutcomeKind int

const (
	// OutcomeOK is a 2xx answer.
	OutcomeOK OutcomeKind = iota
	// OutcomeUnreachable is a network error or timeout; eligible for the
	// local fallback where one is defined.
	OutcomeUnreachable
	// OutcomeRejected is an explicit 4xx; never retried, never falls back,
	// the reason is surfaced to the caller.
	OutcomeRejected
	// OutcomeServerFault is a 5xx; treated like Unreachable for fallback
	// purposes but safe for the user to retry later.
	OutcomeServerFault
)

type Outcome struct {
	Kind   OutcomeKind
	Status int
	Reason string
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// NetworkFailure reports whether the remote never gave a usable answer,
// which is what flips connectivity and arms the fallback path.
func (o Outcome) NetworkFailure() bool {
	return o.Kind == OutcomeUnreachable || o.Kind == OutcomeServerFault
}

// Err converts a failed outcome into an error value for operations that have
// no local fallback. A successful outcome yields nil.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Error{Outcome: o}
}

// Error is the failure value surfaced by gateway operations without a local
// fallback. It never panics through the gateway boundary; UI code treats it
// as data.
type Error struct {
	Outcome Outcome
}

func (e *Error) Error() string {
	switch e.Outcome.Kind {
	case OutcomeRejected:
		if e.Outcome.Reason != "" {
			return fmt.Sprintf("rejected by server: %s", e.Outcome.Reason)
		}
		return fmt.Sprintf("rejected by server (status %d)", e.Outcome.Status)
	case OutcomeServerFault:
		return fmt.Sprintf("server fault (status %d)", e.Outcome.Status)
	default:
		if e.Outcome.Reason != "" {
			return fmt.Sprintf("server unreachable: %s", e.Outcome.Reason)
		}
		return "server unreachable"
	}
}
