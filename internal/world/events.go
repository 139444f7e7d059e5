package world

// WorldLoaded is emitted once a world finished setup and was spawned, or
// when another host announced a world this one already holds (Replicated).
type WorldLoaded struct {
	World      *World
	Active     int // active layer when the event was emitted
	Replicated bool
}

// WorldUnloaded is emitted after a loaded world was released and removed.
// Loads cancelled before finishing emit nothing.
type WorldUnloaded struct {
	World  *World
	Active int
}

// ActiveWorldChanged is emitted by SetActive. World is nil when no world
// occupies Layer.
type ActiveWorldChanged struct {
	World *World
	Layer int
}
