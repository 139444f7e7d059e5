package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/clover/server/internal/data"
	"github.com/clover/server/internal/persist"
	"github.com/clover/server/internal/world"
)

func TestBakeAppliesSavedObjects(t *testing.T) {
	table, err := data.ParseWorldTable([]byte(`
worlds:
  - name: island
    objects:
      - {key: palm, prefab: tree, x: 1}
      - {key: rock, prefab: rock, x: 2}
  - name: shop
`))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	db, err := persist.OpenSQLite(ctx, filepath.Join(t.TempDir(), "bake.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := persist.NewSQLiteWorldRepo(db)
	if err := repo.SaveWorld(ctx, "island", []world.SavedObject{
		{Key: "rock", Prefab: "boulder", Position: mgl32.Vec3{9, 0, 0}},
		{Key: "bench", Prefab: "bench", Position: mgl32.Vec3{3, 0, 4}},
	}); err != nil {
		t.Fatal(err)
	}

	baked, changed, err := bake(ctx, table, repo)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 || len(baked) != 2 {
		t.Fatalf("changed %d baked %d", changed, len(baked))
	}
	island := baked[0]
	want := []data.ObjectSpawn{
		{Key: "palm", Prefab: "tree", X: 1},
		{Key: "rock", Prefab: "boulder", X: 9},
		{Key: "bench", Prefab: "bench", X: 3, Z: 4},
	}
	if len(island.Objects) != len(want) {
		t.Fatalf("objects = %+v", island.Objects)
	}
	for i := range want {
		if island.Objects[i] != want[i] {
			t.Fatalf("object %d = %+v, want %+v", i, island.Objects[i], want[i])
		}
	}
	// source table untouched
	if table.Get("island").Objects[1].Prefab != "rock" {
		t.Fatal("bake mutated the source template")
	}

	raw, err := data.MarshalWorldTable(baked)
	if err != nil {
		t.Fatal(err)
	}
	again, err := data.ParseWorldTable(raw)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again.Get("island").Objects) != 3 || again.Get("shop") == nil {
		t.Fatal("baked yaml lost data")
	}
}
