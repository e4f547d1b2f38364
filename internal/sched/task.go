package sched

// TaskID uniquely identifies a task in the scheduler.
type TaskID uint64

// TaskKind tells which tier a task belongs to and how it got queued.
type TaskKind int

const (
	// KindRoot is the program's entry call handed to RunRoot.
	KindRoot TaskKind = iota
	// KindContinuation is a high-priority callback (a deferred reaction or an
	// explicit ScheduleContinuation call). Drained to exhaustion.
	KindContinuation
	// KindTimerFire is a timer callback whose virtual deadline passed.
	KindTimerFire
	// KindHostCallback is a completion delivered from outside through the
	// host intake.
	KindHostCallback
)

func (k TaskKind) String() string {
	switch k {
	case KindRoot:
		return "Root"
	case KindContinuation:
		return "Continuation"
	case KindTimerFire:
		return "TimerFire"
	case KindHostCallback:
		return "HostCallback"
	default:
		return "Unknown"
	}
}

// Task represents one schedulable unit of work. A task is owned by exactly
// one queue at a time; once dequeued and run it is gone. A callback that
// wants to repeat has to reschedule itself.
type Task struct {
	ID      TaskID
	Kind    TaskKind
	ReadyAt VTime  // virtual deadline, only meaningful for KindTimerFire
	Seq     uint64 // assigned at enqueue time, breaks ties deterministically
	Run     func() // work function, runs on the execution stack
}
