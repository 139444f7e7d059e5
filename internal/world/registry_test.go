package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/clover/server/internal/component"
	"github.com/clover/server/internal/core/ecs"
	"github.com/clover/server/internal/core/event"
	"github.com/clover/server/internal/data"
)

func template(name string, objects ...string) *data.WorldTemplate {
	t := &data.WorldTemplate{
		Name:  name,
		Title: name,
		Entrances: []data.EntranceSpawn{
			{ID: "spawn", X: 1, Y: 2, Z: 3},
		},
	}
	for i, key := range objects {
		t.Objects = append(t.Objects, data.ObjectSpawn{Key: key, Prefab: "rock", X: float32(i)})
	}
	return t
}

func newTestRegistry(t *testing.T, opts Options) (*Registry, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	return NewRegistry(NewScene(), bus, opts, zap.NewNop()), bus
}

func mustLoad(t *testing.T, r *Registry, tmpl *data.WorldTemplate) *World {
	t.Helper()
	w, err := r.Load(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("load %s: %v", tmpl.Name, err)
	}
	return w
}

// tagSnapshot captures the visibility tag of every world and layer object.
func tagSnapshot(r *Registry) map[string]bool {
	out := make(map[string]bool)
	for _, w := range r.Worlds() {
		out["world:"+w.Name()] = w.Tags().Has(TagVisible)
	}
	r.scene.Tags.Each(func(id ecs.EntityID, tags *component.Tags) {
		out[fmt.Sprintf("obj:%d", id)] = tags.Has(TagVisible)
	})
	return out
}

func TestLoadAssignsSequentialLayers(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	for i, name := range []string{"island", "shop", "museum", "cave"} {
		w := mustLoad(t, r, template(name))
		if w.Layer() != i {
			t.Fatalf("%s layer = %d, want %d", name, w.Layer(), i)
		}
		if w.State() != StateLoaded {
			t.Fatalf("%s state = %s", name, w.State())
		}
	}
	if r.Len() != 4 {
		t.Fatalf("len = %d, want 4", r.Len())
	}
}

func TestLoadReusesFirstFreeLayer(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	mustLoad(t, r, template("island"))
	mustLoad(t, r, template("shop"))
	mustLoad(t, r, template("museum"))

	if !r.Unload(1) {
		t.Fatal("unload of layer 1 reported false")
	}
	w := mustLoad(t, r, template("cave"))
	if w.Layer() != 1 {
		t.Fatalf("cave layer = %d, want 1", w.Layer())
	}
	w = mustLoad(t, r, template("beach"))
	if w.Layer() != 3 {
		t.Fatalf("beach layer = %d, want 3", w.Layer())
	}
}

func TestLoadOffsetsOriginByLayer(t *testing.T) {
	r, _ := newTestRegistry(t, Options{Offset: 500})
	mustLoad(t, r, template("island"))
	w := mustLoad(t, r, template("shop", "counter"))

	if got := w.Origin(); !got.ApproxEqual(mgl32.Vec3{0, 0, 500}) {
		t.Fatalf("origin = %v", got)
	}
	id, ok := w.Object("counter")
	if !ok {
		t.Fatal("counter not spawned")
	}
	pos, _ := r.Scene().Position(id)
	if !pos.ApproxEqual(mgl32.Vec3{0, 0, 500}) {
		t.Fatalf("counter position = %v", pos)
	}
	lo, _ := r.Scene().Layers.Get(id)
	if lo.Layer != 1 {
		t.Fatalf("counter layer = %d, want 1", lo.Layer)
	}
	if !w.Tags().Has(TagWorld) || !w.Tags().Has(LayerTag(1)) {
		t.Fatalf("world tags = %v", w.Tags().Sorted())
	}
}

func TestLoadDuplicateReturnsExisting(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	first := mustLoad(t, r, template("island"))
	again := mustLoad(t, r, template("island"))
	if first != again {
		t.Fatal("duplicate load created a new world")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestLoadNilTemplate(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	if _, err := r.Load(context.Background(), nil); !errors.Is(err, ErrNilTemplate) {
		t.Fatalf("err = %v, want ErrNilTemplate", err)
	}
	task := r.LoadAsync(context.Background(), nil)
	<-task.Done()
	if _, err := task.Result(); !errors.Is(err, ErrNilTemplate) {
		t.Fatalf("async err = %v, want ErrNilTemplate", err)
	}
}

func TestLookupByNameAndLayerAgree(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	mustLoad(t, r, template("island"))
	shop := mustLoad(t, r, template("shop"))

	byName := r.WorldByName("shop")
	byLayer := r.World(shop.Layer())
	if byName != shop || byLayer != shop {
		t.Fatalf("lookups disagree: %p %p %p", byName, byLayer, shop)
	}
	if r.WorldByName("moon") != nil || r.World(42) != nil {
		t.Fatal("missing world resolved")
	}
}

func TestSetActiveLeavesExactlyOneVisible(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	for _, name := range []string{"island", "shop", "museum"} {
		mustLoad(t, r, template(name, "a", "b"))
	}
	for _, active := range []int{0, 2, 1} {
		r.SetActive(active)
		visible := 0
		for _, w := range r.Worlds() {
			if w.Visible() {
				visible++
				if w.Layer() != active {
					t.Fatalf("layer %d visible while %d active", w.Layer(), active)
				}
			} else if !w.Tags().Has(TagInvisible) {
				t.Fatalf("layer %d has no invisible tag", w.Layer())
			}
		}
		if visible != 1 {
			t.Fatalf("active %d: %d visible worlds", active, visible)
		}
		r.scene.Layers.Each(func(id ecs.EntityID, lo *component.LayerObject) {
			tags, _ := r.scene.Tags.Get(id)
			if tags.Has(TagVisible) != (lo.Layer == active) {
				t.Fatalf("object on layer %d has wrong tag with active %d", lo.Layer, active)
			}
			if tags.Has(TagVisible) && tags.Has(TagInvisible) {
				t.Fatal("object carries both tags")
			}
		})
	}
}

func TestSetActiveOnEmptyLayer(t *testing.T) {
	r, bus := newTestRegistry(t, Options{})
	mustLoad(t, r, template("island", "a"))
	mustLoad(t, r, template("shop", "b"))

	var changed []ActiveWorldChanged
	event.Subscribe(bus, func(e ActiveWorldChanged) { changed = append(changed, e) })

	r.SetActive(7)
	for _, w := range r.Worlds() {
		if w.Visible() {
			t.Fatalf("world %s visible with empty active layer", w.Name())
		}
	}
	if r.Active() != nil || r.ActiveLayer() != 7 {
		t.Fatal("active world should be nil on layer 7")
	}

	bus.SwapBuffers()
	bus.DispatchAll()
	if len(changed) != 1 || changed[0].World != nil || changed[0].Layer != 7 {
		t.Fatalf("events = %+v", changed)
	}
}

func TestRebuildVisibilityIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	mustLoad(t, r, template("island", "a", "b", "c"))
	mustLoad(t, r, template("shop", "d"))
	r.SetActive(1)

	r.RebuildVisibility()
	first := tagSnapshot(r)
	r.RebuildVisibility()
	second := tagSnapshot(r)

	if len(first) != len(second) {
		t.Fatalf("snapshot sizes differ: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		if second[k] != v {
			t.Fatalf("%s changed from %v to %v", k, v, second[k])
		}
	}
}

func TestRebuildVisibilityWithNoWorlds(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	id := r.Scene().Spawn(component.Prefab{Name: "stray"}, mgl32.Vec3{}, 0)
	r.RebuildVisibility()
	tags, _ := r.Scene().Tags.Get(id)
	if len(tags.Sorted()) != 0 {
		t.Fatalf("rebuild with no worlds touched tags: %v", tags.Sorted())
	}
}

func TestUnloadFreesLayerAndObjects(t *testing.T) {
	r, bus := newTestRegistry(t, Options{})
	mustLoad(t, r, template("island", "a"))
	shop := mustLoad(t, r, template("shop", "counter", "shelf"))
	objs := shop.Objects()

	var unloaded []string
	event.Subscribe(bus, func(e WorldUnloaded) { unloaded = append(unloaded, e.World.Name()) })

	if !r.UnloadByName("shop") {
		t.Fatal("unload reported false")
	}
	if shop.State() != StateUnloaded || shop.ObjectCount() != 0 {
		t.Fatalf("shop state = %s objects = %d", shop.State(), shop.ObjectCount())
	}
	for _, id := range objs {
		if r.Scene().ECS.Alive(id) || r.Scene().Tags.Has(id) {
			t.Fatalf("object %d survived unload", id)
		}
	}

	r.RebuildVisibility()
	snap := tagSnapshot(r)
	for _, id := range objs {
		if _, ok := snap[fmt.Sprintf("obj:%d", id)]; ok {
			t.Fatalf("rebuild still tags removed object %d", id)
		}
	}

	if w := mustLoad(t, r, template("cave")); w.Layer() != 1 {
		t.Fatalf("cave layer = %d, want 1", w.Layer())
	}

	bus.SwapBuffers()
	bus.DispatchAll()
	if len(unloaded) != 1 || unloaded[0] != "shop" {
		t.Fatalf("unloaded events = %v", unloaded)
	}
}

func TestUnloadMissingIsNoop(t *testing.T) {
	r, bus := newTestRegistry(t, Options{})
	if r.Unload(3) || r.UnloadByName("moon") {
		t.Fatal("unload of missing world reported true")
	}
	if bus.Pending() != 0 {
		t.Fatal("unload of missing world emitted an event")
	}
}

func TestLoadEmitsWorldLoaded(t *testing.T) {
	r, bus := newTestRegistry(t, Options{})
	var names []string
	event.Subscribe(bus, func(e WorldLoaded) { names = append(names, e.World.Name()) })

	var replicated []bool
	event.Subscribe(bus, func(e WorldLoaded) { replicated = append(replicated, e.Replicated) })

	mustLoad(t, r, template("island"))
	mustLoad(t, r, template("island"))
	r.HandleWorldLoaded("island")
	r.HandleWorldLoaded("moon")

	bus.SwapBuffers()
	bus.DispatchAll()
	if len(names) != 2 {
		t.Fatalf("loaded events = %v, want two (load + broadcast)", names)
	}
	if replicated[0] || !replicated[1] {
		t.Fatalf("replicated flags = %v, want [false true]", replicated)
	}
}

func TestHandleWorldLoadedIgnoresLoadInFlight(t *testing.T) {
	p := newMemPersister()
	gate := p.block("island")
	r, bus := newTestRegistry(t, Options{Persister: p})
	n := 0
	event.Subscribe(bus, func(WorldLoaded) { n++ })

	task := r.LoadAsync(context.Background(), template("island"))
	r.HandleWorldLoaded("island")
	close(gate)
	pollUntilDone(t, r, task)

	bus.SwapBuffers()
	bus.DispatchAll()
	if n != 1 {
		t.Fatalf("loaded events = %d, want 1", n)
	}
}

func TestVisibilityPolicyIsPluggable(t *testing.T) {
	// hides every layer, e.g. while a loading screen is up
	hideAll := func(layers []int, _ int) map[int]bool { return map[int]bool{} }
	r, _ := newTestRegistry(t, Options{Policy: hideAll})
	for _, name := range []string{"a", "b", "c"} {
		mustLoad(t, r, template(name, "rock"))
	}
	r.SetActive(1)
	for k, visible := range tagSnapshot(r) {
		if visible {
			t.Fatalf("%s visible under hide-all policy", k)
		}
	}
}

func TestDefaultPolicyShowsAtMostOneWorld(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	for _, name := range []string{"a", "b", "c", "d"} {
		mustLoad(t, r, template(name))
	}
	for _, active := range []int{1, 3, 0, 9, 2} {
		r.SetActive(active)
		visible := 0
		for _, w := range r.Worlds() {
			if w.Visible() {
				visible++
				if w.Layer() != active {
					t.Fatalf("layer %d visible while %d active", w.Layer(), active)
				}
			}
		}
		want := 1
		if r.World(active) == nil {
			want = 0
		}
		if visible != want {
			t.Fatalf("SetActive(%d): %d visible worlds, want %d", active, visible, want)
		}
	}
}

func TestMovePlayerToEntrance(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	mustLoad(t, r, template("island"))
	shop := mustLoad(t, r, template("shop"))
	scene := r.Scene()
	player := scene.SpawnPlayer(mgl32.Vec3{}, 0, component.CameraRig{Offset: mgl32.Vec3{0, -5, 5}})

	if err := r.MovePlayerToEntrance(9, "spawn"); !errors.Is(err, ErrWorldNotFound) {
		t.Fatalf("err = %v, want ErrWorldNotFound", err)
	}
	if err := r.MovePlayerToEntrance(1, "back_door"); !errors.Is(err, ErrEntranceNotFound) {
		t.Fatalf("err = %v, want ErrEntranceNotFound", err)
	}
	if r.ActiveLayer() != 0 {
		t.Fatal("failed move changed the active layer")
	}

	if err := r.MovePlayerToEntrance(1, "spawn"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if r.Active() != shop {
		t.Fatal("shop not active")
	}
	lo, _ := scene.Layers.Get(player)
	if lo.Layer != 1 {
		t.Fatalf("player layer = %d", lo.Layer)
	}
	pos, _ := scene.Position(player)
	want := mgl32.Vec3{1, 2, 3 + DefaultWorldOffset}
	if !pos.ApproxEqual(want) {
		t.Fatalf("player position = %v, want %v", pos, want)
	}
	tags, _ := scene.Tags.Get(player)
	if !tags.Has(TagVisible) {
		t.Fatal("player not visible on active layer")
	}
	cam, _ := scene.Cameras.Get(scene.Camera)
	if !cam.Position.ApproxEqual(want.Add(mgl32.Vec3{0, -5, 5})) {
		t.Fatalf("camera not snapped: %v", cam.Position)
	}
	if ct, _ := scene.Transforms.Get(scene.Camera); !ct.Position.ApproxEqual(cam.Position) {
		t.Fatalf("camera transform not moved: %v", ct.Position)
	}
}

func TestMovePlayerWithoutPlayer(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	mustLoad(t, r, template("island"))
	if err := r.MovePlayerToEntrance(0, "spawn"); !errors.Is(err, ErrNoPlayer) {
		t.Fatalf("err = %v, want ErrNoPlayer", err)
	}
}

func TestSetObjectLayerShiftsTransform(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	island := mustLoad(t, r, template("island", "crate"))
	mustLoad(t, r, template("shop"))
	id, _ := island.Object("crate")

	if !r.SetObjectLayer(id, 1, true) {
		t.Fatal("SetObjectLayer reported false")
	}
	pos, _ := r.Scene().Position(id)
	if !pos.ApproxEqual(mgl32.Vec3{0, 0, DefaultWorldOffset}) {
		t.Fatalf("position = %v", pos)
	}
	tags, _ := r.Scene().Tags.Get(id)
	if !tags.Has(TagInvisible) {
		t.Fatal("object on inactive layer should be invisible")
	}
	if r.SetObjectLayer(ecs.EntityID(9999), 1, false) {
		t.Fatal("unknown entity accepted")
	}
}

func TestFindObjectWorldAndRemoveObject(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	island := mustLoad(t, r, template("island", "crate"))
	id, _ := island.Object("crate")

	if r.FindObjectWorld(id) != island {
		t.Fatal("object world not found")
	}
	if !island.RemoveObject(id) {
		t.Fatal("remove reported false")
	}
	if r.FindObjectWorld(id) != nil {
		t.Fatal("removed object still owned")
	}
	if !r.Scene().ECS.Alive(id) {
		t.Fatal("removal should be deferred to cleanup")
	}
	r.Scene().ECS.FlushDestroyQueue()
	if r.Scene().ECS.Alive(id) {
		t.Fatal("object survived cleanup")
	}
}

// memPersister is an in-memory Persister. LoadWorld for a blocked world
// waits until its gate is closed.
type memPersister struct {
	mu      sync.Mutex
	worlds  map[string][]SavedObject
	gates   map[string]chan struct{}
	loadErr error
	saveErr error
}

func newMemPersister() *memPersister {
	return &memPersister{
		worlds: make(map[string][]SavedObject),
		gates:  make(map[string]chan struct{}),
	}
}

func (m *memPersister) block(name string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := make(chan struct{})
	m.gates[name] = g
	return g
}

func (m *memPersister) LoadWorld(ctx context.Context, name string) ([]SavedObject, error) {
	m.mu.Lock()
	gate := m.gates[name]
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]SavedObject(nil), m.worlds[name]...), nil
}

func (m *memPersister) SaveWorld(_ context.Context, name string, objs []SavedObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.worlds[name] = append([]SavedObject(nil), objs...)
	return nil
}

func TestSaveAllAndReloadRestoresObjects(t *testing.T) {
	p := newMemPersister()
	r, _ := newTestRegistry(t, Options{Persister: p})
	mustLoad(t, r, template("island"))
	shop := mustLoad(t, r, template("shop", "counter"))

	counter, _ := shop.Object("counter")
	tr, _ := r.Scene().Transforms.Get(counter)
	tr.Position = shop.Origin().Add(mgl32.Vec3{4, 4, 0})
	shop.PlaceObject("lamp", "lamp_tall", mgl32.Vec3{1, 1, 1})

	if n, err := r.SaveAll(context.Background()); err != nil || n != 2 {
		t.Fatalf("save all = %d, %v", n, err)
	}
	saved := p.worlds["shop"]
	if len(saved) != 2 || saved[0].Key != "counter" || saved[1].Key != "lamp" {
		t.Fatalf("saved = %+v", saved)
	}
	if !saved[0].Position.ApproxEqual(mgl32.Vec3{4, 4, 0}) {
		t.Fatalf("saved position is not world-local: %v", saved[0].Position)
	}

	// reload on a different layer
	r.Unload(0)
	r.Unload(1)
	mustLoad(t, r, template("cave"))
	mustLoad(t, r, template("beach"))
	reloaded := mustLoad(t, r, template("shop", "counter"))
	if reloaded.Layer() != 2 || reloaded.ObjectCount() != 2 {
		t.Fatalf("reloaded layer %d objects %d", reloaded.Layer(), reloaded.ObjectCount())
	}
	id, _ := reloaded.Object("counter")
	pos, _ := r.Scene().Position(id)
	if !pos.ApproxEqual(reloaded.Origin().Add(mgl32.Vec3{4, 4, 0})) {
		t.Fatalf("counter restored at %v", pos)
	}
	lamp, ok := reloaded.Object("lamp")
	if !ok {
		t.Fatal("lamp not restored")
	}
	if pf, _ := r.Scene().Prefabs.Get(lamp); pf.Name != "lamp_tall" {
		t.Fatalf("lamp prefab = %q", pf.Name)
	}
}

func TestSaveAllReportsFailures(t *testing.T) {
	p := newMemPersister()
	p.saveErr = errors.New("disk full")
	r, _ := newTestRegistry(t, Options{Persister: p})
	mustLoad(t, r, template("island"))
	if n, err := r.SaveAll(context.Background()); err == nil || n != 0 {
		t.Fatalf("save all = %d, %v, want 0 and an error", n, err)
	}
}

func TestSaveAllSkipsWorldsStillLoading(t *testing.T) {
	p := newMemPersister()
	gate := p.block("cave")
	r, _ := newTestRegistry(t, Options{Persister: p})
	mustLoad(t, r, template("island"))
	task := r.LoadAsync(context.Background(), template("cave"))
	mustLoad(t, r, template("shop"))

	n, err := r.SaveAll(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("save all = %d, %v, want 2", n, err)
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3 with the loading world", r.Len())
	}
	if _, ok := p.worlds["cave"]; ok {
		t.Fatal("loading world was saved")
	}
	close(gate)
	pollUntilDone(t, r, task)
}

func TestLoadSetupFailureFreesLayer(t *testing.T) {
	p := newMemPersister()
	p.loadErr = errors.New("db down")
	r, _ := newTestRegistry(t, Options{Persister: p})
	if _, err := r.Load(context.Background(), template("island")); err == nil {
		t.Fatal("expected setup error")
	}
	if r.Len() != 0 {
		t.Fatalf("failed load left %d worlds", r.Len())
	}
}

func pollUntilDone(t *testing.T, r *Registry, task *LoadTask) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		r.Poll()
		select {
		case <-task.Done():
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("load task did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoadAsyncReservesLayerUntilPoll(t *testing.T) {
	p := newMemPersister()
	gate := p.block("island")
	r, _ := newTestRegistry(t, Options{Persister: p})

	task := r.LoadAsync(context.Background(), template("island", "a"))
	w := task.World()
	if w.Layer() != 0 || w.State() != StateLoading {
		t.Fatalf("reserved world layer %d state %s", w.Layer(), w.State())
	}
	if dup := r.LoadAsync(context.Background(), template("island")); dup != task {
		t.Fatal("duplicate async load returned a new task")
	}

	// another layer is unaffected by the in-flight load
	other := mustLoad(t, r, template("shop"))
	if other.Layer() != 1 {
		t.Fatalf("shop layer = %d, want 1", other.Layer())
	}

	r.Poll()
	if r.Pending() != 1 {
		t.Fatal("task finalized before setup finished")
	}
	close(gate)
	pollUntilDone(t, r, task)

	got, err := task.Result()
	if err != nil || got != w {
		t.Fatalf("result = %v, %v", got, err)
	}
	if w.State() != StateLoaded || w.ObjectCount() != 1 {
		t.Fatalf("state %s objects %d", w.State(), w.ObjectCount())
	}
	if r.Pending() != 0 {
		t.Fatal("task still pending")
	}
	if again := r.LoadAsync(context.Background(), template("island")); again == task {
		t.Fatal("completed world should return a fresh finished task")
	} else if res, err := again.Result(); res != w || err != nil {
		t.Fatalf("finished task result = %v, %v", res, err)
	}
}

func TestLoadAsyncCancel(t *testing.T) {
	p := newMemPersister()
	p.block("island")
	r, _ := newTestRegistry(t, Options{Persister: p})

	ctx, cancel := context.WithCancel(context.Background())
	task := r.LoadAsync(ctx, template("island"))
	cancel()
	pollUntilDone(t, r, task)

	if _, err := task.Result(); !errors.Is(err, ErrLoadCancelled) {
		t.Fatalf("err = %v, want ErrLoadCancelled", err)
	}
	if r.Len() != 0 {
		t.Fatal("cancelled load kept its layer")
	}
}

func TestUnloadWhileLoadingCancelsTask(t *testing.T) {
	p := newMemPersister()
	p.block("island")
	r, _ := newTestRegistry(t, Options{Persister: p})

	task := r.LoadAsync(context.Background(), template("island"))
	if !r.Unload(0) {
		t.Fatal("unload of loading world reported false")
	}
	select {
	case <-task.Done():
	default:
		t.Fatal("task not completed by unload")
	}
	if _, err := task.Result(); !errors.Is(err, ErrLoadCancelled) {
		t.Fatalf("err = %v", err)
	}
	if r.Pending() != 0 || r.Len() != 0 {
		t.Fatalf("pending %d len %d", r.Pending(), r.Len())
	}
}

func TestUnloadWhileLoadingEmitsNothing(t *testing.T) {
	p := newMemPersister()
	gate := p.block("island")
	r, bus := newTestRegistry(t, Options{Persister: p})
	var loaded, unloaded []string
	event.Subscribe(bus, func(e WorldLoaded) { loaded = append(loaded, e.World.Name()) })
	event.Subscribe(bus, func(e WorldUnloaded) { unloaded = append(unloaded, e.World.Name()) })

	r.LoadAsync(context.Background(), template("island"))
	if !r.Unload(0) {
		t.Fatal("unload of loading world reported false")
	}
	close(gate)
	r.Poll()
	bus.SwapBuffers()
	bus.DispatchAll()
	if len(loaded) != 0 || len(unloaded) != 0 {
		t.Fatalf("cancelled load emitted loaded=%v unloaded=%v", loaded, unloaded)
	}

	mustLoad(t, r, template("shop"))
	r.UnloadByName("shop")
	bus.SwapBuffers()
	bus.DispatchAll()
	if len(loaded) != 1 || len(unloaded) != 1 || unloaded[0] != "shop" {
		t.Fatalf("loaded=%v unloaded=%v, want one of each for shop", loaded, unloaded)
	}
}
