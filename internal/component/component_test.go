package component

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestMoveLayerShiftsZ(t *testing.T) {
	l := &LayerObject{Layer: 1}
	tr := &Transform{Position: mgl32.Vec3{5, 6, 1010}}
	MoveLayer(l, tr, 3, 1000)
	if l.Layer != 3 {
		t.Fatalf("layer = %d, want 3", l.Layer)
	}
	want := mgl32.Vec3{5, 6, 3010}
	if !tr.Position.ApproxEqual(want) {
		t.Fatalf("position = %v, want %v", tr.Position, want)
	}

	MoveLayer(l, nil, 0, 1000)
	if l.Layer != 0 {
		t.Fatalf("layer = %d, want 0", l.Layer)
	}
}

func TestTags(t *testing.T) {
	tags := NewTags("b", "a")
	tags.Add("c")
	tags.Remove("b")
	if tags.Has("b") || !tags.Has("a") {
		t.Fatal("add/remove mismatch")
	}
	got := tags.Sorted()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("sorted = %v", got)
	}
}

func TestCameraRigStepAndSnap(t *testing.T) {
	c := &CameraRig{Offset: mgl32.Vec3{0, -10, 10}, LerpSpeed: 5}
	goal := mgl32.Vec3{100, 0, 0}

	c.Step(goal, 0.1) // closes half the distance
	want := mgl32.Vec3{50, -5, 5}
	if !c.Position.ApproxEqual(want) {
		t.Fatalf("position = %v, want %v", c.Position, want)
	}

	c.Step(goal, 1) // overshooting factor clamps to target
	if !c.Position.ApproxEqual(mgl32.Vec3{100, -10, 10}) {
		t.Fatalf("position = %v", c.Position)
	}

	c.Snap(mgl32.Vec3{0, 0, 2000})
	if !c.Position.ApproxEqual(mgl32.Vec3{0, -10, 2010}) {
		t.Fatalf("snap position = %v", c.Position)
	}
}
