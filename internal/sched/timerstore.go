// internal/sched/timerstore.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// TimerID identifies a pending timer so it can be cancelled.
type TimerID uint64

// timerKey orders the red-black tree by deadline first, then by enqueue
// sequence. The sequence tie-break is what makes two timers scheduled with
// the same delay fire in scheduling order.
type timerKey struct {
	readyAt VTime
	seq     uint64
}

// timerCmp implements the comparator for red-black tree ordering.
func timerCmp(a, b any) int {
	ka, kb := a.(timerKey), b.(timerKey)
	switch {
	case ka.readyAt < kb.readyAt:
		return -1
	case ka.readyAt > kb.readyAt:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// pendingTimer is the tree value; it carries the ID so firing a timer can
// also drop its cancellation handle.
type pendingTimer struct {
	id   TimerID
	task *Task
}

// TimerStore holds pending TimerFire tasks, a min-priority structure over
// (readyAt, seq). A timer leaves the store exactly once: either cancelled or
// fired. A fired timer is never re-inserted unless its callback explicitly
// schedules a new one.
type TimerStore struct {
	rbt    *redblacktree.Tree
	byID   map[TimerID]timerKey
	nextID TimerID
}

// NewTimerStore creates an empty store.
func NewTimerStore() *TimerStore {
	return &TimerStore{
		rbt:  redblacktree.NewWith(timerCmp),
		byID: make(map[TimerID]timerKey),
	}
}

// Put inserts a TimerFire task keyed by its ReadyAt/Seq and returns the
// handle for cancellation.
func (ts *TimerStore) Put(t *Task) TimerID {
	ts.nextID++
	id := ts.nextID
	key := timerKey{readyAt: t.ReadyAt, seq: t.Seq}
	ts.byID[id] = key
	ts.rbt.Put(key, &pendingTimer{id: id, task: t})
	return id
}

// Cancel removes a timer that is still pending. Returns false if it already
// fired or was cancelled before; callers treat that as a no-op, not an
// error.
func (ts *TimerStore) Cancel(id TimerID) bool {
	key, ok := ts.byID[id]
	if !ok {
		return false
	}
	delete(ts.byID, id)
	ts.rbt.Remove(key)
	return true
}

// NextReady pops the earliest timer whose deadline is at or before now, or
// nil when nothing is eligible yet.
func (ts *TimerStore) NextReady(now VTime) *Task {
	node := ts.rbt.Left()
	if node == nil {
		return nil
	}
	key := node.Key.(timerKey)
	if key.readyAt > now {
		return nil
	}
	p := node.Value.(*pendingTimer)
	ts.rbt.Remove(key)
	delete(ts.byID, p.id)
	return p.task
}

// NextDeadline peeks at the earliest pending deadline, letting the loop skip
// the virtual clock ahead when nothing else is runnable.
func (ts *TimerStore) NextDeadline() (VTime, bool) {
	node := ts.rbt.Left()
	if node == nil {
		return 0, false
	}
	return node.Key.(timerKey).readyAt, true
}

// Len returns how many timers are still pending.
func (ts *TimerStore) Len() int {
	return ts.rbt.Size()
}
