package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clover/server/internal/console"
	coresys "github.com/clover/server/internal/core/system"
	"github.com/clover/server/internal/net"
)

// InputSystem accepts console sessions, reports finished console work and
// dispatches queued command lines through the console registry.
// Phase 0 (Input).
type InputSystem struct {
	netServer  *net.Server
	registry   *console.Registry
	store      *net.SessionStore
	maxPerTick int
	ctx        context.Context
	log        *zap.Logger
}

func NewInputSystem(ctx context.Context, netServer *net.Server, registry *console.Registry, store *net.SessionStore, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		netServer:  netServer,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		ctx:        ctx,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	if s.netServer != nil {
		s.acceptSessions()
	}
	// replies for loads that finished during the previous tick
	s.registry.Poll()

	s.store.Each(func(sess *net.Session) {
		s.drain(sess)
		if sess.IsClosed() {
			sess.FlushOutput()
			s.store.Remove(sess.ID)
			s.log.Info("console disconnected", zap.Uint64("session", sess.ID), zap.Int("sessions", s.store.Len()))
		}
	})
}

func (s *InputSystem) acceptSessions() {
	for {
		select {
		case sess := <-s.netServer.NewSessions():
			s.store.Add(sess)
			sess.Send("clover console, type help for commands")
		default:
			goto doneNew
		}
	}
doneNew:

	// Closed sessions are removed by the drain pass below.
	for {
		select {
		case id := <-s.netServer.DeadSessions():
			s.log.Debug("console session dead", zap.Uint64("session", id))
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick queued lines from sess.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; s.maxPerTick <= 0 || i < s.maxPerTick; i++ {
		select {
		case line := <-sess.InQueue:
			if err := s.registry.Dispatch(s.ctx, sess, line); err != nil {
				s.log.Debug("console dispatch error",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}
