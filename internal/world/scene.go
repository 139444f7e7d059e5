package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/clover/server/internal/component"
	"github.com/clover/server/internal/core/ecs"
)

// PlayerPrefab is the prefab name given to the local player entity.
const PlayerPrefab = "player"

// Scene bundles the entity world with the component stores the world layer
// code reads and writes. Accessed only from the game loop goroutine.
type Scene struct {
	ECS        *ecs.World
	Transforms *ecs.Store[component.Transform]
	Layers     *ecs.Store[component.LayerObject]
	Tags       *ecs.Store[component.Tags]
	Prefabs    *ecs.Store[component.Prefab]
	Cameras    *ecs.Store[component.CameraRig]

	Player ecs.EntityID
	Camera ecs.EntityID
}

func NewScene() *Scene {
	s := &Scene{
		ECS:        ecs.NewWorld(),
		Transforms: ecs.NewStore[component.Transform](),
		Layers:     ecs.NewStore[component.LayerObject](),
		Tags:       ecs.NewStore[component.Tags](),
		Prefabs:    ecs.NewStore[component.Prefab](),
		Cameras:    ecs.NewStore[component.CameraRig](),
	}
	reg := s.ECS.Registry()
	reg.Register(s.Transforms)
	reg.Register(s.Layers)
	reg.Register(s.Tags)
	reg.Register(s.Prefabs)
	reg.Register(s.Cameras)
	return s
}

// Spawn places a layer-tagged object at pos (scene space).
func (s *Scene) Spawn(prefab component.Prefab, pos mgl32.Vec3, layer int) ecs.EntityID {
	id := s.ECS.CreateEntity()
	s.Transforms.Set(id, &component.Transform{Position: pos})
	s.Layers.Set(id, &component.LayerObject{Layer: layer})
	s.Tags.Set(id, component.NewTags())
	p := prefab
	s.Prefabs.Set(id, &p)
	return id
}

// SpawnPlayer creates the player entity and a camera rig following it.
// Any previous player and camera are destroyed first.
func (s *Scene) SpawnPlayer(pos mgl32.Vec3, layer int, cam component.CameraRig) ecs.EntityID {
	if s.ECS.Alive(s.Player) {
		s.ECS.Destroy(s.Player)
	}
	if s.ECS.Alive(s.Camera) {
		s.ECS.Destroy(s.Camera)
	}
	s.Player = s.Spawn(component.Prefab{Name: PlayerPrefab, Key: PlayerPrefab}, pos, layer)

	s.Camera = s.ECS.CreateEntity()
	cam.Target = s.Player
	s.Cameras.Set(s.Camera, &cam)
	s.Transforms.Set(s.Camera, &component.Transform{})
	s.SnapCamera()
	return s.Player
}

// Position returns the scene-space position of id.
func (s *Scene) Position(id ecs.EntityID) (mgl32.Vec3, bool) {
	t, ok := s.Transforms.Get(id)
	if !ok {
		return mgl32.Vec3{}, false
	}
	return t.Position, true
}

// SnapCamera jumps every camera rig straight to its target and moves the
// camera entity with it.
func (s *Scene) SnapCamera() {
	ecs.Each2(s.Cameras, s.Transforms, func(_ ecs.EntityID, c *component.CameraRig, t *component.Transform) {
		if pos, ok := s.Position(c.Target); ok {
			c.Snap(pos)
		}
		t.Position = c.Position
	})
}
