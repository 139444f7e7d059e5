package world

import (
	"context"
	"errors"
)

// ErrLoadCancelled is returned by a LoadTask whose context ended or whose
// world was unloaded before setup finished.
var ErrLoadCancelled = errors.New("world load cancelled")

// LoadTask is an in-flight asynchronous world load. Setup runs on its own
// goroutine; the world is spawned by Registry.Poll on the game loop.
type LoadTask struct {
	world  *World
	ctx    context.Context
	cancel context.CancelFunc

	setupDone chan struct{}
	setupErr  error

	done   chan struct{}
	result *World
	err    error
}

func newLoadTask(ctx context.Context, w *World) *LoadTask {
	ctx, cancel := context.WithCancel(ctx)
	return &LoadTask{
		world:     w,
		ctx:       ctx,
		cancel:    cancel,
		setupDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func finishedTask(w *World, err error) *LoadTask {
	t := &LoadTask{world: w, cancel: func() {}, done: make(chan struct{})}
	t.complete(w, err)
	return t
}

func (t *LoadTask) run() {
	t.setupErr = t.world.setup(t.ctx)
	close(t.setupDone)
}

func (t *LoadTask) setupFinished() bool {
	select {
	case <-t.setupDone:
		return true
	default:
		return false
	}
}

func (t *LoadTask) complete(w *World, err error) {
	t.result, t.err = w, err
	t.cancel()
	close(t.done)
}

// World returns the world reserved for this load, which may still be loading.
func (t *LoadTask) World() *World { return t.world }

// Done is closed once the load finished, failed or was cancelled.
func (t *LoadTask) Done() <-chan struct{} { return t.done }

// Result returns the outcome. Only meaningful after Done is closed.
func (t *LoadTask) Result() (*World, error) {
	select {
	case <-t.done:
		return t.result, t.err
	default:
		return nil, nil
	}
}
