package component

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/clover/server/internal/core/ecs"
)

// CameraRig follows a target entity, easing toward target position + Offset.
type CameraRig struct {
	Target    ecs.EntityID
	Position  mgl32.Vec3
	Offset    mgl32.Vec3
	LerpSpeed float32 // fraction of the remaining distance closed per second
}

// Step advances the rig toward goal over dt seconds.
func (c *CameraRig) Step(goal mgl32.Vec3, dt float32) {
	wish := goal.Add(c.Offset)
	f := c.LerpSpeed * dt
	if f >= 1 || f <= 0 {
		if f >= 1 {
			c.Position = wish
		}
		return
	}
	c.Position = c.Position.Add(wish.Sub(c.Position).Mul(f))
}

// Snap jumps straight to goal + Offset.
func (c *CameraRig) Snap(goal mgl32.Vec3) {
	c.Position = goal.Add(c.Offset)
}
