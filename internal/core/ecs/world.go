package ecs

// World owns the entity pool and component registry. Entities can be
// destroyed immediately or queued for the end-of-tick cleanup pass.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 32),
	}
}

func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID { return w.pool.Create() }

func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Live() }

// Destroy removes id and all of its components right away.
func (w *World) Destroy(id EntityID) {
	if !w.pool.Alive(id) {
		return
	}
	w.registry.RemoveAll(id)
	w.pool.Destroy(id)
}

// MarkForDestruction queues id for FlushDestroyQueue.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// PendingDestruction reports how many entities are queued.
func (w *World) PendingDestruction() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys every queued entity. Called by CleanupSystem.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		w.Destroy(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}
