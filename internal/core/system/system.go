package system

import "time"

// Phase orders systems within a tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain console commands
	PhasePreUpdate               // 1: deliver last tick's events
	PhaseUpdate                  // 2: finish pending world loads
	PhasePostUpdate              // 3: camera follow
	PhaseOutput                  // 4: flush console replies
	PhasePersist                 // 5: autosave
	PhaseCleanup                 // 6: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "Input"
	case PhasePreUpdate:
		return "PreUpdate"
	case PhaseUpdate:
		return "Update"
	case PhasePostUpdate:
		return "PostUpdate"
	case PhaseOutput:
		return "Output"
	case PhasePersist:
		return "Persist"
	case PhaseCleanup:
		return "Cleanup"
	default:
		return "Unknown"
	}
}

// System is a unit of per-tick work.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
