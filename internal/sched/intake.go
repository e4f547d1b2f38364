// internal/sched/intake.go

package sched

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// hostIntake is the macro tier's host-callback lane, and the single place
// where real concurrency touches the scheduler: producers on arbitrary
// goroutines append completions while the loop goroutine drains them. The
// mutex guards exactly that boundary; everything else in the scheduler is
// loop-confined.
type hostIntake struct {
	mu sync.Mutex
	q  *linkedlistqueue.Queue
}

func newHostIntake() *hostIntake {
	return &hostIntake{q: linkedlistqueue.New()}
}

func (in *hostIntake) push(t *Task) {
	in.mu.Lock()
	in.q.Enqueue(t)
	in.mu.Unlock()
}

func (in *hostIntake) pop() *Task {
	in.mu.Lock()
	defer in.mu.Unlock()
	v, ok := in.q.Dequeue()
	if !ok {
		return nil
	}
	return v.(*Task)
}

func (in *hostIntake) size() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.q.Size()
}

// IntakeSender is the cloneable handle handed out to host-side producers
// (simulated I/O, worker goroutines, ...). Copies all feed the same lane.
// Deliver is safe to call from any goroutine at any moment, including while
// the loop is draining.
type IntakeSender struct {
	s *Scheduler
}

// Deliver hands a completion callback to the scheduler. It joins the host
// lane in arrival order and runs once the loop selects it as a macrotask;
// continuations already queued always run first.
func (h IntakeSender) Deliver(fn func()) {
	h.s.enqueueHost(fn)
}
