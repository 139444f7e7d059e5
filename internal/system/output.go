package system

import (
	"time"

	coresys "github.com/clover/server/internal/core/system"
	"github.com/clover/server/internal/net"
)

// OutputSystem flushes buffered console replies once per tick. Phase 4 (Output).
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem {
	return &OutputSystem{store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.store.Each(func(sess *net.Session) {
		if sess.Pending() > 0 {
			sess.FlushOutput()
		}
	})
}
