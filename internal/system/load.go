package system

import (
	"time"

	coresys "github.com/clover/server/internal/core/system"
	"github.com/clover/server/internal/world"
)

// LoadSystem finishes asynchronous world loads whose setup completed.
// Phase 2 (Update).
type LoadSystem struct {
	worlds *world.Registry
}

func NewLoadSystem(worlds *world.Registry) *LoadSystem {
	return &LoadSystem{worlds: worlds}
}

func (s *LoadSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *LoadSystem) Update(_ time.Duration) {
	if s.worlds.Pending() > 0 {
		s.worlds.Poll()
	}
}
