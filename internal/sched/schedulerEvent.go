// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusEnqueue
	StatusDispatch
	StatusDrain
	StatusCancel
	StatusUncaught
)

// StatusEvent is emitted on every scheduler transition
type StatusEvent struct {
	VTime    VTime
	Seq      uint64
	Kind     StatusKind
	TaskID   TaskID
	TaskKind TaskKind
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusEnqueue:
		return "Enqueued"
	case StatusDispatch:
		return "Dispatch"
	case StatusDrain:
		return "Drain"
	case StatusCancel:
		return "Cancel"
	case StatusUncaught:
		return "Uncaught"
	default:
		return "Unknown"
	}
}
