package component

import "github.com/go-gl/mathgl/mgl32"

// LayerObject marks a placed object as belonging to a world layer.
// Its visible/invisible tag is recomputed on every visibility rebuild.
type LayerObject struct {
	Layer int
}

// MoveLayer reassigns l to layer and shifts t along Z so the object keeps
// its position relative to the new world's origin.
func MoveLayer(l *LayerObject, t *Transform, layer int, offset float32) {
	delta := float32(layer-l.Layer) * offset
	l.Layer = layer
	if t != nil {
		t.Position = t.Position.Add(mgl32.Vec3{0, 0, delta})
	}
}
