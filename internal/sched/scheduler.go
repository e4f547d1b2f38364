// internal/sched/scheduler.go

package sched

import (
	"encoding/csv"
	"os"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/rs/zerolog"
)

// Scheduler implements a single-threaded cooperative loop over two tiers of
// queues and streams state changes.
//
// All user-visible execution happens on the one goroutine driving RunRoot,
// RunUntilIdle or RunFor: a running callback is never preempted, and the
// execution stack never holds two callbacks concurrently. The host intake is
// the only entry point other goroutines may touch.
//
// One loop tick is: run a root task to completion, drain the continuation
// queue to fixpoint, then take exactly one macrotask (timers due first, host
// callbacks after, FIFO within a tie) and repeat.
type Scheduler struct {
	// loop state, confined to the driving goroutine
	cfg      Config
	clock    *VirtualClock
	micro    *linkedlistqueue.Queue // continuation queue, drained to exhaustion
	timers   *TimerStore
	intake   *hostIntake
	depth    int  // execution stack depth; queues only drain at 0
	running  bool // re-entrancy guard for the run modes
	draining bool // re-entrancy guard for the continuation drain

	// shared counters; producers and status consumers read these off-loop
	seq    atomic.Uint64
	nextID atomic.Uint64

	// error surface
	onUncaught func(error)
	rejected   []*Deferred // rejected values awaiting the idle-point check

	// observability
	statusCh  chan StatusEvent
	csvFile   *os.File
	csvWriter *csv.Writer
	log       zerolog.Logger

	ran map[TaskKind]int64 // executed task totals per kind
}

// Stats is a point-in-time snapshot of scheduler totals.
type Stats struct {
	Roots         int64
	Continuations int64
	TimerFires    int64
	HostCallbacks int64
	VirtualTime   time.Duration
	PendingTimers int
}

// New creates a new Scheduler instance with the given configuration.
func New(cfg Config) *Scheduler {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.Disabled
	}

	return &Scheduler{
		cfg:      cfg,
		clock:    NewVirtualClock(),
		micro:    linkedlistqueue.New(),
		timers:   NewTimerStore(),
		intake:   newHostIntake(),
		statusCh: make(chan StatusEvent, cfg.StatusBuffer),
		log:      zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger(),
		ran:      make(map[TaskKind]int64),
	}
}

// EnableCSVTrace opens the given file path for CSV logging of status events.
// Must be called before running anything.
func (s *Scheduler) EnableCSVTrace(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"vtime_ns", "seq", "event", "task_id", "task_kind"})
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// StatusChannel exposes a read-only event stream (optional consumers).
// Sends are non-blocking: with nobody draining the channel, events are
// dropped rather than stalling the loop.
func (s *Scheduler) StatusChannel() <-chan StatusEvent { return s.statusCh }

// OnUncaught registers the process-wide handler invoked for recovered task
// panics and for unhandled rejections found at idle points. The handler runs
// synchronously on the loop goroutine; it must not call back into the run
// modes.
func (s *Scheduler) OnUncaught(h func(error)) { s.onUncaught = h }

// Now returns the current virtual time.
func (s *Scheduler) Now() VTime { return s.clock.Now() }

// Stats returns executed-task totals and clock position.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Roots:         s.ran[KindRoot],
		Continuations: s.ran[KindContinuation],
		TimerFires:    s.ran[KindTimerFire],
		HostCallbacks: s.ran[KindHostCallback],
		VirtualTime:   s.clock.Now().Duration(),
		PendingTimers: s.timers.Len(),
	}
}

// Close flushes and closes the CSV trace and the status channel. Call it
// once, after the last run mode returned; nothing may be scheduled after.
func (s *Scheduler) Close() {
	if s.csvFile != nil {
		s.csvWriter.Flush()
		s.csvFile.Close()
		s.csvFile = nil
		s.csvWriter = nil
	}
	close(s.statusCh)
}

// ScheduleContinuation queues fn on the high-priority tier. It runs after
// the currently running callback returns and before any timer or host
// callback gets a turn.
func (s *Scheduler) ScheduleContinuation(fn func()) {
	s.scheduleContinuationTask(fn)
}

// ScheduleTimer queues fn to fire once the virtual clock reaches
// now + delay. Negative delays clamp to zero.
func (s *Scheduler) ScheduleTimer(fn func(), delay time.Duration) TimerID {
	if delay < 0 {
		delay = 0
	}
	t := s.newTask(KindTimerFire, fn)
	t.ReadyAt = s.clock.Now() + VTime(delay)
	id := s.timers.Put(t)
	s.emit(StatusEnqueue, t)
	return id
}

// CancelTimer removes a timer that has not fired yet. Returns false when it
// already fired or was already cancelled; both are fine to ignore.
func (s *Scheduler) CancelTimer(id TimerID) bool {
	ok := s.timers.Cancel(id)
	if ok {
		s.emit(StatusCancel, nil)
	}
	return ok
}

// IntakeSender returns the handle host-side producers use to deliver
// completion callbacks. Copies all reference the same intake lane.
func (s *Scheduler) IntakeSender() IntakeSender {
	return IntakeSender{s: s}
}

// RunRoot pushes fn as a root task, runs it to completion, then drains the
// continuation queue to fixpoint. The macro tier is left untouched; use
// RunUntilIdle or RunFor to fire timers and host callbacks.
func (s *Scheduler) RunRoot(fn func()) {
	s.enter()
	defer s.exit()

	t := s.newTask(KindRoot, fn)
	s.dispatch(t)
	s.drainContinuations()
}

// RunUntilIdle keeps consuming macrotasks, skipping the virtual clock over
// the gaps, until both tiers are empty and no timer is pending. Rejected
// deferred values with no rejection reaction are reported at that idle
// point.
func (s *Scheduler) RunUntilIdle() {
	s.enter()
	defer s.exit()

	for {
		// 1) high tier first, always to fixpoint
		s.drainContinuations()

		// 2) exactly one macrotask per tick
		t := s.selectMacrotask(0, false)
		if t != nil {
			s.dispatch(t)
			continue
		}

		// 3) nothing eligible: idle point
		s.checkUnhandled()
		if s.micro.Empty() && s.intake.size() == 0 && s.timers.Len() == 0 {
			s.emit(StatusIdle, nil)
			return
		}
		// the uncaught handler scheduled more work; go around again
	}
}

// RunFor advances the virtual clock by d, firing every timer that becomes
// eligible on the way and draining continuations and host callbacks in
// between, without ever blocking on wall-clock time. Over the same window it
// produces the same task ordering RunUntilIdle would.
func (s *Scheduler) RunFor(d time.Duration) {
	s.enter()
	defer s.exit()

	if d < 0 {
		d = 0
	}
	deadline := s.clock.Now() + VTime(d)

	for {
		s.drainContinuations()
		t := s.selectMacrotask(deadline, true)
		if t == nil {
			break
		}
		s.dispatch(t)
	}

	// land exactly on the window edge so later relative delays line up
	s.clock.AdvanceTo(deadline)
	s.checkUnhandled()
	s.emit(StatusIdle, nil)
}

// enter guards the run modes against re-entrant use from inside a callback.
func (s *Scheduler) enter() {
	if s.running {
		invariantf("run mode entered re-entrantly")
	}
	if s.depth != 0 {
		invariantf("queue drain with non-empty execution stack (depth=%d)", s.depth)
	}
	s.running = true
}

func (s *Scheduler) exit() { s.running = false }

// newTask builds a task record with fresh ID and enqueue sequence. Atomic
// counters because host producers allocate tasks off-loop.
func (s *Scheduler) newTask(kind TaskKind, fn func()) *Task {
	return &Task{
		ID:   TaskID(s.nextID.Add(1)),
		Kind: kind,
		Seq:  s.seq.Add(1),
		Run:  fn,
	}
}

func (s *Scheduler) scheduleContinuationTask(fn func()) {
	t := s.newTask(KindContinuation, fn)
	s.micro.Enqueue(t)
	s.emit(StatusEnqueue, t)
}

func (s *Scheduler) enqueueHost(fn func()) {
	t := s.newTask(KindHostCallback, fn)
	s.intake.push(t)
	// NOTE: no status event here; this runs on the producer's goroutine and
	// the emitters are loop-confined. The dispatch event covers it.
}

func (s *Scheduler) trackRejection(d *Deferred) {
	s.rejected = append(s.rejected, d)
}

// dispatch runs one root-level task (entry call, timer fire or host
// callback) on the execution stack.
func (s *Scheduler) dispatch(t *Task) {
	s.emit(StatusDispatch, t)
	s.pushAndRun(t)
	s.ran[t.Kind]++
}

// drainContinuations runs continuation tasks until none are left, including
// ones enqueued by the very continuations being run. Draining is to
// fixpoint, not a snapshot of the queue.
func (s *Scheduler) drainContinuations() {
	if s.draining {
		invariantf("re-entrant continuation drain")
	}
	s.draining = true

	for !s.micro.Empty() {
		v, ok := s.micro.Dequeue()
		if !ok {
			invariantf("continuation queue empty mid-drain")
		}
		t := v.(*Task)
		s.emit(StatusDrain, t)
		s.pushAndRun(t)
		s.ran[t.Kind]++
	}

	s.draining = false
}

// selectMacrotask takes the single next-ready macro tier item. Timers are
// checked before host callbacks, and the virtual clock only advances when
// nothing is eligible at the current time. With bounded set the clock will
// not move past bound.
func (s *Scheduler) selectMacrotask(bound VTime, bounded bool) *Task {
	now := s.clock.Now()

	// 1) a timer already due at the current virtual time
	if t := s.timers.NextReady(now); t != nil {
		return t
	}

	// 2) a delivered host callback; those are always immediately ready
	if t := s.intake.pop(); t != nil {
		return t
	}

	// 3) nothing eligible at now: skip the clock ahead to the next deadline
	if deadline, ok := s.timers.NextDeadline(); ok {
		if bounded && deadline > bound {
			return nil
		}
		s.clock.AdvanceTo(deadline)
		return s.timers.NextReady(deadline)
	}

	return nil
}

// pushAndRun executes one task to completion on the execution stack. A panic
// inside the callback is recovered right here, at the task boundary, so it
// cannot corrupt or skip queue draining; it surfaces through OnUncaught
// instead. Internal invariant violations are re-thrown: those mean the core
// is broken and must abort loudly.
func (s *Scheduler) pushAndRun(t *Task) {
	s.depth++
	defer func() {
		s.depth--
		if v := recover(); v != nil {
			if iv, ok := v.(invariantViolation); ok {
				panic(iv)
			}
			s.reportUncaught(&PanicError{
				Value:  v,
				Stack:  debug.Stack(),
				TaskID: t.ID,
				Kind:   t.Kind,
			})
		}
	}()
	t.Run()
}

func (s *Scheduler) reportUncaught(err error) {
	s.emit(StatusUncaught, nil)
	if s.onUncaught != nil {
		s.onUncaught(err)
		return
	}
	s.log.Error().Err(err).Msg("uncaught")
}

// checkUnhandled reports rejected deferred values that still have no
// rejection reaction at this idle point. Each one is reported at most once;
// the condition is non-fatal and the loop keeps going.
func (s *Scheduler) checkUnhandled() {
	if !s.cfg.ReportUnhandled {
		s.rejected = s.rejected[:0]
		return
	}
	for _, d := range s.rejected {
		if d.handled || d.reported {
			continue
		}
		d.reported = true
		s.reportUncaught(&RejectionError{Reason: d.result})
	}
	s.rejected = s.rejected[:0]
}

// emit streams one status event to the zerolog logger, the CSV trace and
// the status channel.
func (s *Scheduler) emit(kind StatusKind, t *Task) {
	ev := StatusEvent{VTime: s.clock.Now(), Kind: kind}
	if t != nil {
		ev.Seq = t.Seq
		ev.TaskID = t.ID
		ev.TaskKind = t.Kind
	}

	s.log.Debug().
		Int64("vtime", int64(ev.VTime)).
		Str("event", ev.Kind.String()).
		Uint64("task", uint64(ev.TaskID)).
		Str("kind", ev.TaskKind.String()).
		Msg("sched")

	if s.csvWriter != nil {
		rec := []string{
			strconv.FormatInt(int64(ev.VTime), 10),
			strconv.FormatUint(ev.Seq, 10),
			ev.Kind.String(),
			strconv.FormatUint(uint64(ev.TaskID), 10),
			ev.TaskKind.String(),
		}
		s.csvWriter.Write(rec)
		s.csvWriter.Flush()
	}

	select {
	case s.statusCh <- ev:
	default: // NOTE: drop instead of deadlocking the loop on a full channel
	}
}
