package world

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/clover/server/internal/component"
	"github.com/clover/server/internal/core/ecs"
	"github.com/clover/server/internal/data"
)

// LoadState tracks where a World is in its lifecycle.
type LoadState int

const (
	StateLoading LoadState = iota
	StateLoaded
	StateUnloaded
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloaded:
		return "unloaded"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// SavedObject is a persisted placed object. Position is local to the world
// origin so a save survives the world landing on a different layer.
type SavedObject struct {
	Key      string
	Prefab   string
	Position mgl32.Vec3
}

// Persister stores the placed objects of a world by name.
type Persister interface {
	LoadWorld(ctx context.Context, world string) ([]SavedObject, error)
	SaveWorld(ctx context.Context, world string, objs []SavedObject) error
}

// World is one loaded region occupying a registry layer. Owned by the
// Registry; everything except setup runs on the game loop goroutine.
type World struct {
	tmpl    *data.WorldTemplate
	layer   int
	origin  mgl32.Vec3
	state   LoadState
	tags    *component.Tags
	objects map[string]ecs.EntityID
	saved   []SavedObject // written by setup, consumed by spawn

	scene   *Scene
	persist Persister
}

func newWorld(tmpl *data.WorldTemplate, layer int, offset float32, scene *Scene, p Persister) *World {
	return &World{
		tmpl:    tmpl,
		layer:   layer,
		origin:  mgl32.Vec3{0, 0, float32(layer) * offset},
		state:   StateLoading,
		tags:    component.NewTags(TagWorld, LayerTag(layer)),
		objects: make(map[string]ecs.EntityID, len(tmpl.Objects)),
		scene:   scene,
		persist: p,
	}
}

func (w *World) Name() string                  { return w.tmpl.Name }
func (w *World) Title() string                 { return w.tmpl.Title }
func (w *World) Template() *data.WorldTemplate { return w.tmpl }
func (w *World) Layer() int                    { return w.layer }
func (w *World) Origin() mgl32.Vec3            { return w.origin }
func (w *World) State() LoadState              { return w.state }
func (w *World) Tags() *component.Tags         { return w.tags }
func (w *World) ObjectCount() int              { return len(w.objects) }

// Visible reports whether the last rebuild marked this world visible.
func (w *World) Visible() bool { return w.tags.Has(TagVisible) }

// Object returns the entity placed under key.
func (w *World) Object(key string) (ecs.EntityID, bool) {
	id, ok := w.objects[key]
	return id, ok
}

// Objects returns the world's entities ordered by key.
func (w *World) Objects() []ecs.EntityID {
	keys := w.objectKeys()
	out := make([]ecs.EntityID, len(keys))
	for i, k := range keys {
		out[i] = w.objects[k]
	}
	return out
}

func (w *World) objectKeys() []string {
	keys := make([]string, 0, len(w.objects))
	for k := range w.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Owns reports whether id was spawned by this world.
func (w *World) Owns(id ecs.EntityID) bool {
	for _, e := range w.objects {
		if e == id {
			return true
		}
	}
	return false
}

// Entrance returns the scene-space position of the named entrance.
func (w *World) Entrance(id string) (mgl32.Vec3, bool) {
	for _, e := range w.tmpl.Entrances {
		if e.ID == id {
			return w.origin.Add(e.Position()), true
		}
	}
	return mgl32.Vec3{}, false
}

// setup fetches persisted state. It may block and runs off the game loop
// for async loads, so it must not touch the scene.
func (w *World) setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.persist == nil {
		return nil
	}
	saved, err := w.persist.LoadWorld(ctx, w.tmpl.Name)
	if err != nil {
		return fmt.Errorf("load saved objects: %w", err)
	}
	w.saved = saved
	return ctx.Err()
}

// spawn instantiates template objects, overridden or extended by saved ones.
func (w *World) spawn() {
	saved := make(map[string]SavedObject, len(w.saved))
	for _, s := range w.saved {
		saved[s.Key] = s
	}
	for _, o := range w.tmpl.Objects {
		if s, ok := saved[o.Key]; ok {
			w.place(s.Key, s.Prefab, s.Position)
			delete(saved, o.Key)
			continue
		}
		w.place(o.Key, o.Prefab, o.Position())
	}
	// player-placed objects that aren't part of the template, in save order
	for _, s := range w.saved {
		if _, ok := saved[s.Key]; ok {
			w.place(s.Key, s.Prefab, s.Position)
		}
	}
	w.saved = nil
}

func (w *World) place(key, prefab string, local mgl32.Vec3) ecs.EntityID {
	if old, ok := w.objects[key]; ok {
		w.scene.ECS.Destroy(old)
	}
	id := w.scene.Spawn(component.Prefab{Name: prefab, Key: key}, w.origin.Add(local), w.layer)
	w.objects[key] = id
	return id
}

// PlaceObject adds (or replaces) a placed object at a world-local position.
func (w *World) PlaceObject(key, prefab string, local mgl32.Vec3) ecs.EntityID {
	return w.place(key, prefab, local)
}

// RemoveObject queues the object for destruction at tick end.
func (w *World) RemoveObject(id ecs.EntityID) bool {
	for k, e := range w.objects {
		if e == id {
			delete(w.objects, k)
			w.scene.ECS.MarkForDestruction(id)
			return true
		}
	}
	return false
}

// Snapshot returns the world's objects in persisted form, ordered by key.
func (w *World) Snapshot() []SavedObject {
	keys := w.objectKeys()
	out := make([]SavedObject, 0, len(keys))
	for _, k := range keys {
		id := w.objects[k]
		pos, ok := w.scene.Position(id)
		if !ok {
			continue
		}
		prefab := ""
		if p, ok := w.scene.Prefabs.Get(id); ok {
			prefab = p.Name
		}
		out = append(out, SavedObject{Key: k, Prefab: prefab, Position: pos.Sub(w.origin)})
	}
	return out
}

// Save persists the world's objects. A world without a persister saves
// nothing.
func (w *World) Save(ctx context.Context) error {
	if w.persist == nil || w.state != StateLoaded {
		return nil
	}
	if err := w.persist.SaveWorld(ctx, w.tmpl.Name, w.Snapshot()); err != nil {
		return fmt.Errorf("save world %s: %w", w.tmpl.Name, err)
	}
	return nil
}

// release destroys every spawned object immediately.
func (w *World) release() {
	for _, id := range w.objects {
		w.scene.ECS.Destroy(id)
	}
	clear(w.objects)
	w.state = StateUnloaded
}
