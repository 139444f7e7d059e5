package system

import (
	"sort"
	"time"
)

// Runner executes registered systems in phase order. Systems sharing a phase
// keep their registration order.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 8)}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Len() int { return len(r.systems) }

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(dt)
	}
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) ensureSorted() {
	if r.sorted {
		return
	}
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].Phase() < r.systems[j].Phase()
	})
	r.sorted = true
}
