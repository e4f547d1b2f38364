package sched

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Settle-once: the first resolver call wins, everything after is a no-op and
// no reaction ever observes a second outcome.
func TestSettleOnce(t *testing.T) {
	s := newTestScheduler()
	var got []any

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		d.OnSettle(func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		}, func(v any) (any, error) {
			got = append(got, errors.New("rejected path"))
			return nil, nil
		})

		r.Resolve("first")
		r.Reject("second")
		r.Resolve("third")

		require.Equal(t, Fulfilled, d.State())
		require.Equal(t, "first", d.Result())
	})
	s.RunUntilIdle()

	require.Equal(t, []any{"first"}, got)
}

func TestSettleOnceRejectWins(t *testing.T) {
	s := newTestScheduler()

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		d.OnSettle(nil, func(v any) (any, error) { return nil, nil })
		r.Reject("reason")
		r.Resolve("late")

		require.Equal(t, Rejected, d.State())
		require.Equal(t, "reason", d.Result())
	})
	s.RunUntilIdle()
}

// Reactions registered A; B; C run in registration order, each as its own
// continuation task.
func TestReactionsRunInRegistrationOrder(t *testing.T) {
	s := newTestScheduler()
	var order []string

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		for _, name := range []string{"A", "B", "C"} {
			name := name
			d.OnSettle(func(v any) (any, error) {
				order = append(order, name)
				return nil, nil
			}, nil)
		}
		r.Resolve(struct{}{})
	})

	require.Equal(t, []string{"A", "B", "C"}, order)
}

// Chaining: the value returned by a fulfillment handler feeds the derived
// deferred.
func TestChainedValue(t *testing.T) {
	s := newTestScheduler()
	var got []any

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		d.OnSettle(func(v any) (any, error) {
			return v.(int) + 1, nil
		}, nil).OnSettle(func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		}, nil)
		r.Resolve(41)
	})

	require.Equal(t, []any{42}, got)
}

// Resolving with another deferred adopts its eventual state instead of
// fulfilling with the deferred itself.
func TestResolveAdoptsInnerDeferred(t *testing.T) {
	s := newTestScheduler()
	var got []any

	var inner *Resolver
	s.RunRoot(func() {
		in, ri := s.NewDeferred()
		inner = ri

		out, ro := s.NewDeferred()
		out.OnSettle(func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		}, nil)
		ro.Resolve(in)

		// outer must stay pending until the inner one settles
		require.Equal(t, Pending, out.State())
		// and the resolver is spent: a direct value loses to the adoption
		ro.Resolve("ignored")
	})
	require.Empty(t, got)

	s.RunRoot(func() {
		inner.Resolve("inner value")
	})
	require.Equal(t, []any{"inner value"}, got)
}

// Adoption of an already-settled inner deferred is still asynchronous.
func TestAdoptionOfSettledInnerIsAsync(t *testing.T) {
	s := newTestScheduler()
	var order []string

	s.RunRoot(func() {
		in, ri := s.NewDeferred()
		ri.Resolve("ready")

		out, ro := s.NewDeferred()
		out.OnSettle(func(v any) (any, error) {
			order = append(order, "reaction")
			return nil, nil
		}, nil)
		ro.Resolve(in)

		order = append(order, "sync-after")
	})

	require.Equal(t, []string{"sync-after", "reaction"}, order)
}

// A handler returning a deferred flattens the chain.
func TestHandlerReturningDeferredFlattens(t *testing.T) {
	s := newTestScheduler()
	var got []any

	s.RunRoot(func() {
		step2, r2 := s.NewDeferred()

		d, r := s.NewDeferred()
		d.OnSettle(func(v any) (any, error) {
			return step2, nil
		}, nil).OnSettle(func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		}, nil)

		r.Resolve("start")
		r2.Resolve("from step2")
	})
	s.RunUntilIdle()

	require.Equal(t, []any{"from step2"}, got)
}

// A handler returning an error rejects the derived deferred; nothing is
// swallowed, nothing crashes the loop.
func TestHandlerErrorRejectsDerived(t *testing.T) {
	s := newTestScheduler()
	bad := errors.New("handler failed")
	var got []any

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		d.OnSettle(func(v any) (any, error) {
			return nil, bad
		}, nil).OnSettle(nil, func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		})
		r.Resolve("ok")
	})
	s.RunUntilIdle()

	require.Equal(t, []any{bad}, got)
}

// A panicking handler behaves like one that returned the panic value as an
// error.
func TestHandlerPanicRejectsDerived(t *testing.T) {
	s := newTestScheduler()
	bad := errors.New("thrown")
	var got []any
	var after bool

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		d.OnSettle(func(v any) (any, error) {
			panic(bad)
		}, nil).OnSettle(nil, func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		})
		r.Resolve("ok")

		s.ScheduleContinuation(func() { after = true })
	})
	s.RunUntilIdle()

	require.Equal(t, []any{bad}, got)
	assert.True(t, after, "a throwing handler must not stop the drain")
}

// Rejections flow past fulfillment-only links to the first rejection
// handler.
func TestRejectionSkipsFulfillmentHandlers(t *testing.T) {
	s := newTestScheduler()
	var got []any

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		d.OnSettle(func(v any) (any, error) {
			t.Error("fulfillment handler must not run")
			return nil, nil
		}, nil).OnSettle(nil, func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		})
		r.Reject("root cause")
	})
	s.RunUntilIdle()

	require.Equal(t, []any{"root cause"}, got)
}

func TestResolveWithSelfRejects(t *testing.T) {
	s := newTestScheduler()
	var got []any

	s.RunRoot(func() {
		d, r := s.NewDeferred()
		d.OnSettle(nil, func(v any) (any, error) {
			got = append(got, v)
			return nil, nil
		})
		r.Resolve(d)
	})
	s.RunUntilIdle()

	require.Len(t, got, 1)
	assert.EqualError(t, got[0].(error), "deferred resolved with itself")
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "Pending", Pending.String())
	assert.Equal(t, "Fulfilled", Fulfilled.String())
	assert.Equal(t, "Rejected", Rejected.String())
}
