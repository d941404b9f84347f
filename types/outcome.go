package types

import (
	"fmt"
	"strings"
)

// OutcomeKind classifies the terminal state of one executed test unit.
type OutcomeKind string

const (
	OutcomePassed      OutcomeKind = "passed"
	OutcomeFailed      OutcomeKind = "failed"
	OutcomeBroken      OutcomeKind = "broken"
	OutcomeErrored     OutcomeKind = "errored"
	OutcomeInterrupted OutcomeKind = "interrupted"
)

// ErrorClass distinguishes the two errored subtypes: a structured failure
// reported by the unit's own assertion layer (remote) versus an abnormal
// termination of the hosting process with no recoverable structure (process).
type ErrorClass string

const (
	ErrorClassRemote  ErrorClass = "remote"
	ErrorClassProcess ErrorClass = "process"
)

// FailureDetail carries one failed assertion's message and source location.
type FailureDetail struct {
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// Outcome is the terminal result of executing one test unit. Every exit path
// of the executor produces exactly one Outcome value; execution failures are
// never surfaced as Go errors.
type Outcome struct {
	Kind     OutcomeKind
	Passed   int // assertions passed
	Failed   int // assertions failed
	Broken   int // assertions marked known-broken
	Failures []FailureDetail

	// Errored detail. Class tells remote from process errors. Diagnostic
	// holds the structured message for remote errors, or a bounded tail of
	// raw process output for process errors. Timeout marks a process error
	// caused by the per-unit deadline.
	Class      ErrorClass
	Diagnostic string
	Timeout    bool
}

// Errored reports whether the outcome is an errored variant.
func (o Outcome) Errored() bool {
	return o.Kind == OutcomeErrored
}

// ErrorFree reports whether the outcome counts toward an error-free run:
// passed or broken assertions only, no failures, not errored or interrupted.
func (o Outcome) ErrorFree() bool {
	return (o.Kind == OutcomePassed || o.Kind == OutcomeBroken) && o.Failed == 0
}

// PassedOutcome builds a pass outcome from assertion counts.
func PassedOutcome(passed, broken int) Outcome {
	kind := OutcomePassed
	if passed == 0 && broken > 0 {
		kind = OutcomeBroken
	}
	return Outcome{Kind: kind, Passed: passed, Broken: broken}
}

// FailedOutcome builds a fail outcome from counts and failure details.
func FailedOutcome(passed, failed, broken int, failures []FailureDetail) Outcome {
	return Outcome{
		Kind:     OutcomeFailed,
		Passed:   passed,
		Failed:   failed,
		Broken:   broken,
		Failures: failures,
	}
}

// RemoteErrorOutcome builds an errored outcome for a structured failure
// propagated by the unit's own reporting layer. The pass/broken counts seen
// before the failure are preserved.
func RemoteErrorOutcome(message string, passed, broken int) Outcome {
	return Outcome{
		Kind:       OutcomeErrored,
		Class:      ErrorClassRemote,
		Diagnostic: message,
		Passed:     passed,
		Broken:     broken,
	}
}

// ProcessErrorOutcome builds an errored outcome for an abnormal process
// termination. Only the raw diagnostic text is retained; no structure is
// assumed.
func ProcessErrorOutcome(diagnostic string) Outcome {
	return Outcome{
		Kind:       OutcomeErrored,
		Class:      ErrorClassProcess,
		Diagnostic: diagnostic,
	}
}

// TimeoutOutcome builds a process-error outcome carrying a timeout marker.
func TimeoutOutcome(diagnostic string) Outcome {
	o := ProcessErrorOutcome(diagnostic)
	o.Timeout = true
	return o
}

// InterruptedOutcome marks a unit that was never executed because an earlier
// failure triggered the abort-on-error policy.
func InterruptedOutcome() Outcome {
	return Outcome{Kind: OutcomeInterrupted}
}

// String renders a compact one-line summary of the outcome.
func (o Outcome) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (passed=%d failed=%d broken=%d)", o.Kind, o.Passed, o.Failed, o.Broken)
	if o.Kind == OutcomeErrored {
		fmt.Fprintf(&b, " class=%s", o.Class)
		if o.Timeout {
			b.WriteString(" timeout")
		}
	}
	return b.String()
}
