package job

import (
	"time"

	"evloop/internal/sched"
)

// SimulateIO models a host-side operation: it waits out the given wall-clock
// delay on its own goroutine and then delivers done through the intake, the
// way a socket or file completion would arrive. The returned channel closes
// once the delivery has been handed to the scheduler, so callers can wait
// for it before draining the loop.
func SimulateIO(in sched.IntakeSender, delay time.Duration, done func()) <-chan struct{} {
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		time.Sleep(delay)
		in.Deliver(done)
	}()
	return delivered
}

// FanIn starts one SimulateIO producer per callback and closes the returned
// channel once every delivery has been handed over.
func FanIn(in sched.IntakeSender, delay time.Duration, done ...func()) <-chan struct{} {
	all := make(chan struct{})
	chans := make([]<-chan struct{}, len(done))
	for i, fn := range done {
		chans[i] = SimulateIO(in, delay, fn)
	}
	go func() {
		defer close(all)
		for _, ch := range chans {
			<-ch
		}
	}()
	return all
}
