package component

import "github.com/go-gl/mathgl/mgl32"

// Transform is an entity's position in the shared scene space. Worlds are
// stacked along Z, so an object's Z includes its world's origin.
type Transform struct {
	Position mgl32.Vec3
}
