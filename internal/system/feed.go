package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/clover/server/internal/core/system"
	"github.com/clover/server/internal/transport/ws"
	"github.com/clover/server/internal/world"
)

// FeedSystem applies world_loaded announcements received on the event feed.
// Phase 0 (Input).
type FeedSystem struct {
	inbound    <-chan ws.Message
	worlds     *world.Registry
	maxPerTick int
	log        *zap.Logger
}

func NewFeedSystem(inbound <-chan ws.Message, worlds *world.Registry, maxPerTick int, log *zap.Logger) *FeedSystem {
	return &FeedSystem{
		inbound:    inbound,
		worlds:     worlds,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *FeedSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *FeedSystem) Update(_ time.Duration) {
	for i := 0; s.maxPerTick <= 0 || i < s.maxPerTick; i++ {
		select {
		case msg := <-s.inbound:
			s.log.Debug("feed announced world", zap.String("world", msg.World), zap.Int("layer", msg.Layer))
			s.worlds.HandleWorldLoaded(msg.World)
		default:
			return
		}
	}
}
