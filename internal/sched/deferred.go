// internal/sched/deferred.go

package sched

import "fmt"

// DeferredState is the lifecycle state of a Deferred. A value starts
// Pending and flips exactly once to Fulfilled or Rejected; the transition is
// irreversible.
type DeferredState int

const (
	Pending DeferredState = iota
	Fulfilled
	Rejected
)

func (ds DeferredState) String() string {
	switch ds {
	case Pending:
		return "Pending"
	case Fulfilled:
		return "Fulfilled"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Reaction is a settlement handler. Returning a non-nil error rejects the
// derived deferred; returning another *Deferred makes the derived one adopt
// its eventual state.
type Reaction func(v any) (any, error)

// reaction pairs the handlers registered by one OnSettle call with the
// derived deferred they feed. Both handlers nil = pure pass-through, which
// is also how adoption of an inner deferred is wired.
type reaction struct {
	onFulfilled Reaction
	onRejected  Reaction
	next        *Deferred
}

// Deferred is a settle-once container for a result that is not known yet.
//
// It is loop-confined: create, settle and observe it only from code already
// running on the scheduler (root tasks, reactions, timer and host
// callbacks). External completions must come in through the host intake.
type Deferred struct {
	s         *Scheduler
	state     DeferredState
	result    any
	reactions []reaction
	locked    bool // resolver used up (settled, or busy adopting an inner deferred)
	handled   bool // some reaction was registered; a rejection has a taker
	reported  bool // already surfaced through OnUncaught
}

// Resolver is the one-shot write capability for a Deferred. The first
// Resolve or Reject wins; every later call is a no-op, not an error.
type Resolver struct {
	d *Deferred
}

// NewDeferred returns a pending value together with its resolver.
func (s *Scheduler) NewDeferred() (*Deferred, *Resolver) {
	d := &Deferred{s: s}
	return d, &Resolver{d: d}
}

// State returns the current lifecycle state.
func (d *Deferred) State() DeferredState { return d.state }

// Result returns the fulfillment value or rejection reason, nil while
// Pending. NOTE: a fulfilled deferred can legitimately hold nil too.
func (d *Deferred) Result() any { return d.result }

// Resolve fulfills the value, or adopts v's eventual state when v is itself
// a *Deferred. Adoption never happens synchronously, even if v already
// settled.
func (r *Resolver) Resolve(v any) {
	r.d.resolveValue(v)
}

// Reject settles the value as Rejected with the given reason.
func (r *Resolver) Reject(reason any) {
	d := r.d
	if d.locked || d.state != Pending {
		return
	}
	d.locked = true
	d.settle(Rejected, reason)
}

// OnSettle registers a reaction pair and returns the derived deferred that
// carries the handler's outcome. Reactions never run on the stack frame that
// registered them: settlement turns each one into a continuation task, in
// registration order. Registering on an already-settled value enqueues one
// continuation immediately.
func (d *Deferred) OnSettle(onFulfilled, onRejected Reaction) *Deferred {
	next := &Deferred{s: d.s}
	rx := reaction{onFulfilled: onFulfilled, onRejected: onRejected, next: next}

	// whoever registered now owns the outcome; a rejection propagates to
	// next instead of counting as unhandled here
	d.handled = true

	if d.state == Pending {
		d.reactions = append(d.reactions, rx)
	} else {
		d.enqueueReaction(rx)
	}
	return next
}

// resolveValue is the fulfillment path shared by the public Resolver and by
// chain settlement of derived deferreds.
func (d *Deferred) resolveValue(v any) {
	if d.locked || d.state != Pending {
		return
	}
	d.locked = true

	if inner, ok := v.(*Deferred); ok {
		if inner == d {
			d.settle(Rejected, fmt.Errorf("deferred resolved with itself"))
			return
		}
		// adopt: a handler-less reaction on inner settles d with whatever
		// inner settles to, through the continuation queue
		inner.handled = true
		rx := reaction{next: d}
		if inner.state == Pending {
			inner.reactions = append(inner.reactions, rx)
		} else {
			inner.enqueueReaction(rx)
		}
		return
	}

	d.settle(Fulfilled, v)
}

// settle flips the state exactly once and drains the registered reactions
// into continuation tasks, in registration order.
func (d *Deferred) settle(state DeferredState, result any) {
	if d.state != Pending {
		invariantf("deferred settled twice (%s then %s)", d.state, state)
	}
	d.state = state
	d.result = result

	rxs := d.reactions
	d.reactions = nil
	for _, rx := range rxs {
		d.enqueueReaction(rx)
	}

	if state == Rejected {
		d.s.trackRejection(d)
	}
}

// enqueueReaction schedules one reaction delivery on the continuation tier.
func (d *Deferred) enqueueReaction(rx reaction) {
	d.s.scheduleContinuationTask(func() { d.deliver(rx) })
}

// deliver runs one reaction against the settled value. Only ever called as
// a continuation task, so d is settled here.
func (d *Deferred) deliver(rx reaction) {
	h := rx.onFulfilled
	if d.state == Rejected {
		h = rx.onRejected
	}

	if h == nil {
		// pass-through: the derived deferred mirrors this one. Also covers
		// adoption, where rx.next is the adopting deferred itself.
		if d.state == Fulfilled {
			rx.next.settleChained(Fulfilled, d.result)
		} else {
			rx.next.settleChained(Rejected, d.result)
		}
		return
	}

	v, err := runReaction(h, d.result)
	if err != nil {
		rx.next.settleChained(Rejected, err)
		return
	}
	// unlock so the chain settlement below can go through resolveValue,
	// which flattens a returned *Deferred
	rx.next.locked = false
	rx.next.resolveValue(v)
}

// settleChained settles a derived deferred, clearing the chain lock first.
func (d *Deferred) settleChained(state DeferredState, result any) {
	d.locked = true
	if d.state != Pending {
		return
	}
	d.settle(state, result)
}

// runReaction calls h and converts a panic inside the handler into an
// error, so a throwing reaction rejects its derived deferred instead of
// unwinding into the drain loop.
func runReaction(h Reaction, v any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("reaction panicked: %v", r)
			}
		}
	}()
	return h(v)
}
