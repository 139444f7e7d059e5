package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/clover/server/internal/core/system"
	"github.com/clover/server/internal/world"
)

const saveTimeout = 30 * time.Second

// PersistenceSystem periodically saves every loaded world. Phase 5 (Persist).
type PersistenceSystem struct {
	worlds    *world.Registry
	log       *zap.Logger
	tickCount int
	interval  int // auto-save every N ticks, 0 disables
}

func NewPersistenceSystem(worlds *world.Registry, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	return &PersistenceSystem{
		worlds:   worlds,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveAll()
}

// SaveAll persists every loaded world immediately and returns how many were
// saved. Also used on shutdown.
func (s *PersistenceSystem) SaveAll() int {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	saved, err := s.worlds.SaveAll(ctx)
	if err != nil {
		s.log.Error("autosave failed", zap.Int("saved", saved), zap.Error(err))
	}
	return saved
}
