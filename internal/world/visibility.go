package world

import (
	"fmt"

	"github.com/clover/server/internal/component"
)

// Render-side tags.
const (
	TagVisible     = "worldlayer_visible"
	TagInvisible   = "worldlayer_invisible"
	TagWorld       = "dworld"
	tagLayerPrefix = "dworldlayer_"
)

// LayerTag is the per-layer tag put on a world when it is loaded.
func LayerTag(layer int) string {
	return fmt.Sprintf("%s%d", tagLayerPrefix, layer)
}

// VisibilityPolicy decides, for every layer in layers, whether it is visible
// while active is the active layer. Layers missing from the result are
// invisible.
type VisibilityPolicy func(layers []int, active int) map[int]bool

// ActiveOnly shows exactly the active layer.
func ActiveOnly(layers []int, active int) map[int]bool {
	out := make(map[int]bool, len(layers))
	for _, l := range layers {
		out[l] = l == active
	}
	return out
}

// markVisibility replaces any previous visibility marker on tags.
func markVisibility(tags *component.Tags, visible bool) {
	tags.Remove(TagInvisible)
	tags.Remove(TagVisible)
	if visible {
		tags.Add(TagVisible)
	} else {
		tags.Add(TagInvisible)
	}
}
