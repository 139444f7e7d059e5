package world

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/clover/server/internal/component"
	"github.com/clover/server/internal/core/ecs"
	"github.com/clover/server/internal/core/event"
	"github.com/clover/server/internal/data"
)

// DefaultWorldOffset is the Z distance between consecutive layers.
const DefaultWorldOffset float32 = 1000

var (
	ErrNilTemplate      = errors.New("world template is nil")
	ErrWorldNotFound    = errors.New("world not found")
	ErrEntranceNotFound = errors.New("entrance not found")
	ErrNoPlayer         = errors.New("no player in scene")
)

// Options configures a Registry. Zero values pick the defaults.
type Options struct {
	Store     WorldStore
	Policy    VisibilityPolicy
	Offset    float32
	Persister Persister
}

// Registry maps layers to loaded worlds and keeps visibility tags in sync
// with the active layer. Not safe for concurrent use: drive it from the
// game loop goroutine only.
type Registry struct {
	store   WorldStore
	policy  VisibilityPolicy
	offset  float32
	persist Persister
	active  int

	scene   *Scene
	bus     *event.Bus
	log     *zap.Logger
	pending []*LoadTask
}

func NewRegistry(scene *Scene, bus *event.Bus, opts Options, log *zap.Logger) *Registry {
	if opts.Store == nil {
		opts.Store = NewMapStore()
	}
	if opts.Policy == nil {
		opts.Policy = ActiveOnly
	}
	if opts.Offset <= 0 {
		opts.Offset = DefaultWorldOffset
	}
	return &Registry{
		store:   opts.Store,
		policy:  opts.Policy,
		offset:  opts.Offset,
		persist: opts.Persister,
		scene:   scene,
		bus:     bus,
		log:     log,
	}
}

func (r *Registry) Scene() *Scene    { return r.scene }
func (r *Registry) Offset() float32  { return r.offset }
func (r *Registry) Len() int         { return r.store.Len() }
func (r *Registry) ActiveLayer() int { return r.active }

// Active returns the world on the active layer, or nil.
func (r *Registry) Active() *World { return r.World(r.active) }

// World returns the world on layer, or nil.
func (r *Registry) World(layer int) *World {
	w, _ := r.store.Get(layer)
	return w
}

// WorldByName returns the world loaded from the named template, or nil.
func (r *Registry) WorldByName(name string) *World {
	for _, l := range r.store.Layers() {
		if w, _ := r.store.Get(l); w.Name() == name {
			return w
		}
	}
	return nil
}

// Worlds returns all worlds ordered by layer.
func (r *Registry) Worlds() []*World {
	layers := r.store.Layers()
	out := make([]*World, 0, len(layers))
	for _, l := range layers {
		w, _ := r.store.Get(l)
		out = append(out, w)
	}
	return out
}

// FindObjectWorld returns the world that spawned id, or nil.
func (r *Registry) FindObjectWorld(id ecs.EntityID) *World {
	for _, w := range r.Worlds() {
		if w.Owns(id) {
			return w
		}
	}
	return nil
}

// Load instantiates tmpl on the first free layer and runs its setup inline.
// Loading a template whose name is already present returns that world.
func (r *Registry) Load(ctx context.Context, tmpl *data.WorldTemplate) (*World, error) {
	if tmpl == nil {
		return nil, ErrNilTemplate
	}
	if w := r.WorldByName(tmpl.Name); w != nil {
		return w, nil
	}
	w := r.reserve(tmpl)
	if err := w.setup(ctx); err != nil {
		r.abandon(w)
		return nil, fmt.Errorf("setup world %s: %w", tmpl.Name, err)
	}
	r.finish(w)
	return w, nil
}

// LoadAsync reserves a layer for tmpl and starts its setup in the background.
// The world is spawned by a later Poll. A duplicate returns the existing
// task, or an already completed one when the world is fully loaded.
func (r *Registry) LoadAsync(ctx context.Context, tmpl *data.WorldTemplate) *LoadTask {
	if tmpl == nil {
		return finishedTask(nil, ErrNilTemplate)
	}
	if w := r.WorldByName(tmpl.Name); w != nil {
		for _, t := range r.pending {
			if t.world == w {
				return t
			}
		}
		return finishedTask(w, nil)
	}
	w := r.reserve(tmpl)
	t := newLoadTask(ctx, w)
	r.pending = append(r.pending, t)
	go t.run()
	return t
}

// Pending returns the number of async loads still in flight.
func (r *Registry) Pending() int { return len(r.pending) }

// Poll finalizes async loads whose setup has finished.
func (r *Registry) Poll() {
	kept := r.pending[:0]
	for _, t := range r.pending {
		if !t.setupFinished() {
			kept = append(kept, t)
			continue
		}
		switch {
		case t.ctx.Err() != nil:
			r.abandon(t.world)
			t.complete(nil, ErrLoadCancelled)
		case t.setupErr != nil:
			r.abandon(t.world)
			t.complete(nil, fmt.Errorf("setup world %s: %w", t.world.Name(), t.setupErr))
		default:
			r.finish(t.world)
			t.complete(t.world, nil)
		}
	}
	clear(r.pending[len(kept):])
	r.pending = kept
}

func (r *Registry) reserve(tmpl *data.WorldTemplate) *World {
	layer := FirstFreeLayer(r.store)
	w := newWorld(tmpl, layer, r.offset, r.scene, r.persist)
	r.store.Insert(layer, w)
	r.log.Info("loading world", zap.String("world", tmpl.Name), zap.Int("layer", layer))
	return w
}

func (r *Registry) abandon(w *World) {
	if cur, ok := r.store.Get(w.layer); ok && cur == w {
		r.store.Remove(w.layer)
	}
	w.release()
	r.log.Warn("world load abandoned", zap.String("world", w.Name()), zap.Int("layer", w.layer))
	if r.store.Len() > 0 {
		r.RebuildVisibility()
	}
}

func (r *Registry) finish(w *World) {
	w.spawn()
	w.state = StateLoaded
	r.log.Info("loaded world",
		zap.String("world", w.Name()),
		zap.Int("layer", w.layer),
		zap.Int("objects", len(w.objects)),
		zap.Int("worlds", r.store.Len()),
	)
	r.RebuildVisibility()
	r.announceLoaded(w, false)
}

// HandleWorldLoaded reacts to a world-loaded broadcast from the authority:
// the world is expected to be present already (replicated), so only the
// local visibility rebuild and notification run.
func (r *Registry) HandleWorldLoaded(name string) {
	w := r.WorldByName(name)
	if w == nil {
		r.log.Warn("world loaded broadcast for unknown world", zap.String("world", name))
		return
	}
	// a local load in flight announces itself when Poll finishes it
	if w.state != StateLoaded {
		return
	}
	r.RebuildVisibility()
	r.announceLoaded(w, true)
}

func (r *Registry) announceLoaded(w *World, replicated bool) {
	if r.bus != nil {
		event.Emit(r.bus, WorldLoaded{World: w, Active: r.active, Replicated: replicated})
	}
	for _, other := range r.Worlds() {
		r.log.Debug("world", zap.Int("layer", other.layer), zap.String("name", other.Name()))
	}
}

// Unload removes the world on layer. Returns false when the layer is empty.
func (r *Registry) Unload(layer int) bool {
	w := r.World(layer)
	if w == nil {
		return false
	}
	r.UnloadWorld(w)
	return true
}

// UnloadByName removes the named world. Returns false when it isn't loaded.
func (r *Registry) UnloadByName(name string) bool {
	w := r.WorldByName(name)
	if w == nil {
		return false
	}
	r.UnloadWorld(w)
	return true
}

// UnloadWorld releases w's objects, removes it and rebuilds visibility.
// A world still loading has its task cancelled.
func (r *Registry) UnloadWorld(w *World) {
	if cur, ok := r.store.Get(w.layer); !ok || cur != w {
		return
	}
	r.log.Info("unloading world", zap.String("world", w.Name()), zap.Int("layer", w.layer))
	wasLoaded := w.state == StateLoaded
	r.dropPending(w)
	w.release()
	r.store.Remove(w.layer)
	r.RebuildVisibility()
	// a cancelled load never announced itself, so it leaves silently
	if wasLoaded && r.bus != nil {
		event.Emit(r.bus, WorldUnloaded{World: w, Active: r.active})
	}
}

func (r *Registry) dropPending(w *World) {
	for i, t := range r.pending {
		if t.world == w {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			t.complete(nil, ErrLoadCancelled)
			return
		}
	}
}

// SetActive makes layer the active layer. The layer need not be occupied;
// in that case every world ends up invisible.
func (r *Registry) SetActive(layer int) {
	r.log.Info("setting active world", zap.Int("layer", layer))
	r.active = layer
	r.RebuildVisibility()
	if r.bus != nil {
		event.Emit(r.bus, ActiveWorldChanged{World: r.World(layer), Layer: layer})
	}
}

// SetActiveWorld makes w's layer active.
func (r *Registry) SetActiveWorld(w *World) {
	r.SetActive(w.layer)
}

// RebuildVisibility recomputes the visible/invisible tag of every world and
// every layer-tagged object. With no worlds loaded it does nothing.
func (r *Registry) RebuildVisibility() {
	if r.store.Len() == 0 {
		r.log.Warn("no worlds to rebuild visibility for")
		return
	}
	decide := r.decisions()
	for _, l := range r.store.Layers() {
		w, _ := r.store.Get(l)
		markVisibility(w.tags, decide[l])
	}
	r.scene.Layers.Each(func(id ecs.EntityID, lo *component.LayerObject) {
		r.markObject(id, decide[lo.Layer])
	})
	r.log.Debug("rebuilt world visibility", zap.Int("active", r.active), zap.Int("objects", r.scene.Layers.Len()))
}

// decisions runs the policy over every layer that has a world or an object.
func (r *Registry) decisions() map[int]bool {
	layers := r.store.Layers()
	seen := make(map[int]struct{}, len(layers))
	for _, l := range layers {
		seen[l] = struct{}{}
	}
	r.scene.Layers.Each(func(_ ecs.EntityID, lo *component.LayerObject) {
		if _, ok := seen[lo.Layer]; !ok {
			seen[lo.Layer] = struct{}{}
			layers = append(layers, lo.Layer)
		}
	})
	return r.policy(layers, r.active)
}

func (r *Registry) markObject(id ecs.EntityID, visible bool) {
	tags, ok := r.scene.Tags.Get(id)
	if !ok {
		tags = component.NewTags()
		r.scene.Tags.Set(id, tags)
	}
	markVisibility(tags, visible)
}

// rebuildObject recomputes a single object's tag.
func (r *Registry) rebuildObject(id ecs.EntityID) {
	lo, ok := r.scene.Layers.Get(id)
	if !ok {
		return
	}
	r.markObject(id, r.policy([]int{lo.Layer}, r.active)[lo.Layer])
}

// SetObjectLayer moves a layer-tagged object to layer. With shift set its
// Z is moved by the layer distance so it keeps its world-local position.
func (r *Registry) SetObjectLayer(id ecs.EntityID, layer int, shift bool) bool {
	lo, ok := r.scene.Layers.Get(id)
	if !ok {
		return false
	}
	if shift {
		t, _ := r.scene.Transforms.Get(id)
		component.MoveLayer(lo, t, layer, r.offset)
	} else {
		lo.Layer = layer
	}
	r.rebuildObject(id)
	return true
}

// MovePlayerToEntrance activates layer, moves the player onto it at the named
// entrance and snaps the camera.
func (r *Registry) MovePlayerToEntrance(layer int, entrance string) error {
	w := r.World(layer)
	if w == nil {
		return fmt.Errorf("%w: layer %d", ErrWorldNotFound, layer)
	}
	pos, ok := w.Entrance(entrance)
	if !ok {
		return fmt.Errorf("%w: %q in world %s", ErrEntranceNotFound, entrance, w.Name())
	}
	player := r.scene.Player
	if !r.scene.ECS.Alive(player) {
		return ErrNoPlayer
	}

	r.SetActive(layer)
	r.SetObjectLayer(player, layer, false)
	if t, ok := r.scene.Transforms.Get(player); ok {
		t.Position = pos
	}
	r.scene.SnapCamera()
	r.log.Info("moved player to entrance",
		zap.String("world", w.Name()),
		zap.String("entrance", entrance),
	)
	return nil
}

// SaveAll saves every loaded world, continuing past failures, and returns
// how many were saved. Worlds still loading are skipped and not counted.
func (r *Registry) SaveAll(ctx context.Context) (int, error) {
	var errs []error
	saved := 0
	for _, w := range r.Worlds() {
		if w.state != StateLoaded {
			continue
		}
		if err := w.Save(ctx); err != nil {
			r.log.Error("world save failed", zap.String("world", w.Name()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		saved++
	}
	r.log.Info("saved worlds", zap.Int("saved", saved), zap.Int("failed", len(errs)))
	return saved, errors.Join(errs...)
}
