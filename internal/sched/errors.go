// internal/sched/errors.go

package sched

import "fmt"

// PanicError reports a callback that panicked on the execution stack. The
// boundary in pushAndRun recovers it, so a panicking task never corrupts or
// skips queue draining for the tasks behind it.
type PanicError struct {
	Value  any
	Stack  []byte
	TaskID TaskID
	Kind   TaskKind
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %d (%s) panicked: %v", e.TaskID, e.Kind, e.Value)
}

// Unwrap exposes the panic value when it already was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// RejectionError reports a deferred value that was rejected and still had no
// rejection reaction at an idle point. Non-fatal; real hosts just warn.
type RejectionError struct {
	Reason any
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("unhandled rejection: %v", e.Reason)
}

func (e *RejectionError) Unwrap() error {
	if err, ok := e.Reason.(error); ok {
		return err
	}
	return nil
}

// invariantViolation marks an internal bug (re-entrant drain, clock going
// backwards, ...). Unlike user panics it is NOT recovered at task
// boundaries; the scheduler state cannot be trusted anymore.
type invariantViolation string

func (e invariantViolation) Error() string {
	return "sched: invariant violated: " + string(e)
}

func invariantf(format string, args ...any) {
	panic(invariantViolation(fmt.Sprintf(format, args...)))
}
