// worldbake folds persisted world objects back into world_list.yaml, so a
// layout edited in game becomes the template shipped with the server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/clover/server/internal/config"
	"github.com/clover/server/internal/data"
	"github.com/clover/server/internal/persist"
	"github.com/clover/server/internal/world"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: worldbake <world_list.yaml> <output.yaml>")
		os.Exit(1)
	}
	cfgPath := "config/server.toml"
	if p := os.Getenv("CLOVER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	table, err := data.LoadWorldTable(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	store, closer, err := persist.Open(ctx, cfg.Database, zap.NewNop())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	baked, changed, err := bake(ctx, table, store)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	out, err := data.MarshalWorldTable(baked)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	header := fmt.Sprintf("# World list - baked from %s (%d worlds)\n", os.Args[1], len(baked))
	if err := os.WriteFile(os.Args[2], append([]byte(header), out...), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d worlds (%d with saved objects) to %s\n", len(baked), changed, os.Args[2])
}

// bake returns a copy of every template with its saved objects applied the
// same way a load applies them: saved entries replace template objects of
// the same key, the rest are appended in save order.
func bake(ctx context.Context, table *data.WorldTable, store world.Persister) ([]*data.WorldTemplate, int, error) {
	var out []*data.WorldTemplate
	changed := 0
	for _, tmpl := range table.Templates() {
		saved, err := store.LoadWorld(ctx, tmpl.Name)
		if err != nil {
			return nil, 0, fmt.Errorf("load %s: %w", tmpl.Name, err)
		}
		cp := *tmpl
		cp.Objects = merge(tmpl.Objects, saved)
		if len(saved) > 0 {
			changed++
		}
		out = append(out, &cp)
	}
	return out, changed, nil
}

func merge(objects []data.ObjectSpawn, saved []world.SavedObject) []data.ObjectSpawn {
	byKey := make(map[string]world.SavedObject, len(saved))
	for _, s := range saved {
		byKey[s.Key] = s
	}
	out := make([]data.ObjectSpawn, 0, len(objects)+len(saved))
	for _, o := range objects {
		if s, ok := byKey[o.Key]; ok {
			o = spawnOf(s)
			delete(byKey, s.Key)
		}
		out = append(out, o)
	}
	for _, s := range saved {
		if _, ok := byKey[s.Key]; ok {
			out = append(out, spawnOf(s))
		}
	}
	return out
}

func spawnOf(s world.SavedObject) data.ObjectSpawn {
	return data.ObjectSpawn{Key: s.Key, Prefab: s.Prefab, X: s.Position.X(), Y: s.Position.Y(), Z: s.Position.Z()}
}
