package system

import (
	"time"

	"github.com/clover/server/internal/component"
	"github.com/clover/server/internal/core/ecs"
	coresys "github.com/clover/server/internal/core/system"
	"github.com/clover/server/internal/world"
)

// CameraSystem eases every camera rig toward its target and copies the rig
// position onto the camera entity's transform. Phase 3 (PostUpdate).
type CameraSystem struct {
	scene *world.Scene
}

func NewCameraSystem(scene *world.Scene) *CameraSystem {
	return &CameraSystem{scene: scene}
}

func (s *CameraSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *CameraSystem) Update(dt time.Duration) {
	secs := float32(dt.Seconds())
	ecs.Each2(s.scene.Cameras, s.scene.Transforms, func(_ ecs.EntityID, c *component.CameraRig, t *component.Transform) {
		if pos, ok := s.scene.Position(c.Target); ok {
			c.Step(pos, secs)
		}
		t.Position = c.Position
	})
}
