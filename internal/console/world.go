package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/clover/server/internal/component"
	"github.com/clover/server/internal/core/ecs"
	"github.com/clover/server/internal/data"
	"github.com/clover/server/internal/world"
)

// Greeter supplies an optional per-world greeting for world_list.
type Greeter interface {
	WorldGreeting(name string) string
}

// ScriptRunner runs operator-supplied Lua for the lua command.
type ScriptRunner interface {
	DoString(src string) error
}

// Deps is what the world commands operate on.
type Deps struct {
	Worlds    *world.Registry
	Templates *data.WorldTable
	Greeter   Greeter      // may be nil
	Scripts   ScriptRunner // may be nil, disables the lua command
	Log       *zap.Logger
}

// RegisterWorldCommands adds the world management commands to reg.
func RegisterWorldCommands(reg *Registry, deps *Deps) {
	reg.Register("world_load", "world_load <name>", "load a world template onto the first free layer",
		func(ctx context.Context, out Output, args []string) error {
			return worldLoad(ctx, reg, out, args, deps)
		})
	reg.Register("world_unload", "world_unload <name|layer>", "unload a world",
		func(_ context.Context, out Output, args []string) error {
			return worldUnload(out, args, deps)
		})
	reg.Register("world_set_active", "world_set_active <layer>", "make a layer the active one",
		func(_ context.Context, out Output, args []string) error {
			return worldSetActive(out, args, deps)
		})
	reg.Register("world_move_to_entrance", "world_move_to_entrance <layer> <entrance>", "activate a world and move the player to an entrance",
		func(_ context.Context, out Output, args []string) error {
			return worldMoveToEntrance(out, args, deps)
		})
	reg.Register("world_save_all", "world_save_all", "save every loaded world",
		func(ctx context.Context, out Output, _ []string) error {
			return worldSaveAll(ctx, out, deps)
		})
	reg.Register("world_list", "world_list", "list loaded worlds",
		func(_ context.Context, out Output, _ []string) error {
			worldList(out, deps)
			return nil
		})
	reg.Register("world_info", "world_info <name|layer>", "show a world's origin, tags and entrances",
		func(_ context.Context, out Output, args []string) error {
			return worldInfo(out, args, deps)
		})
	reg.Register("world_objects", "world_objects <name|layer>", "list a world's objects",
		func(_ context.Context, out Output, args []string) error {
			return worldObjects(out, args, deps)
		})
	reg.Register("world_place", "world_place <layer> <key> <prefab> <x> <y> <z>", "place an object at a world-local position",
		func(_ context.Context, out Output, args []string) error {
			return worldPlace(out, args, deps)
		})
	reg.Register("world_remove", "world_remove <entity> | <layer> <key>", "remove a placed object",
		func(_ context.Context, out Output, args []string) error {
			return worldRemove(out, args, deps)
		})
	if deps.Scripts != nil {
		reg.Register("lua", "lua <code>", "run a line of Lua in the hook VM",
			func(_ context.Context, out Output, args []string) error {
				if len(args) == 0 {
					return fmt.Errorf("usage: lua <code>")
				}
				if err := deps.Scripts.DoString(strings.Join(args, " ")); err != nil {
					return fmt.Errorf("lua: %w", err)
				}
				out.Send("ok")
				return nil
			})
	}
}

// lookupWorld resolves a layer number or template name.
func lookupWorld(arg string, deps *Deps) *world.World {
	if layer, err := strconv.Atoi(arg); err == nil {
		return deps.Worlds.World(layer)
	}
	return deps.Worlds.WorldByName(arg)
}

// worldLoad starts an asynchronous load and reports its outcome once the
// game loop finishes it. An unknown template is reported and the command
// aborts without error.
func worldLoad(ctx context.Context, reg *Registry, out Output, args []string, deps *Deps) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: world_load <name>")
	}
	tmpl := deps.Templates.Get(args[0])
	if tmpl == nil {
		deps.Log.Warn("world template not found", zap.String("world", args[0]))
		out.Send(fmt.Sprintf("no world named %q", args[0]))
		return nil
	}
	if w := deps.Worlds.WorldByName(tmpl.Name); w != nil && w.State() == world.StateLoaded {
		out.Send(fmt.Sprintf("world %s already loaded on layer %d", w.Name(), w.Layer()))
		return nil
	}
	// The load outlives this command; Registry.Poll finishes it.
	task := deps.Worlds.LoadAsync(context.WithoutCancel(ctx), tmpl)
	out.Send(fmt.Sprintf("loading world %s on layer %d", tmpl.Name, task.World().Layer()))
	reg.After(func() bool {
		select {
		case <-task.Done():
		default:
			return false
		}
		if w, err := task.Result(); err != nil {
			out.Send(fmt.Sprintf("load of %s failed: %v", tmpl.Name, err))
		} else {
			out.Send(fmt.Sprintf("world %s ready on layer %d", w.Name(), w.Layer()))
		}
		return true
	})
	return nil
}

func worldUnload(out Output, args []string, deps *Deps) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: world_unload <name|layer>")
	}
	var ok bool
	if layer, err := strconv.Atoi(args[0]); err == nil {
		ok = deps.Worlds.Unload(layer)
	} else {
		ok = deps.Worlds.UnloadByName(args[0])
	}
	if !ok {
		deps.Log.Warn("unload of missing world", zap.String("world", args[0]))
		out.Send(fmt.Sprintf("no world %s loaded", args[0]))
		return nil
	}
	out.Send(fmt.Sprintf("unloaded %s", args[0]))
	return nil
}

func worldSetActive(out Output, args []string, deps *Deps) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: world_set_active <layer>")
	}
	layer, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid layer %q: %w", args[0], err)
	}
	deps.Worlds.SetActive(layer)
	if w := deps.Worlds.Active(); w != nil {
		out.Send(fmt.Sprintf("active layer %d (%s)", layer, w.Name()))
	} else {
		out.Send(fmt.Sprintf("active layer %d (empty)", layer))
	}
	return nil
}

func worldMoveToEntrance(out Output, args []string, deps *Deps) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: world_move_to_entrance <layer> <entrance>")
	}
	layer, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid layer %q: %w", args[0], err)
	}
	if err := deps.Worlds.MovePlayerToEntrance(layer, args[1]); err != nil {
		return fmt.Errorf("move player: %w", err)
	}
	pos, _ := deps.Worlds.Scene().Position(deps.Worlds.Scene().Player)
	out.Send(fmt.Sprintf("player at %s/%s (%.1f, %.1f, %.1f)",
		deps.Worlds.World(layer).Name(), args[1], pos.X(), pos.Y(), pos.Z()))
	return nil
}

func worldSaveAll(ctx context.Context, out Output, deps *Deps) error {
	saved, err := deps.Worlds.SaveAll(ctx)
	if err != nil {
		return fmt.Errorf("save worlds (%d saved): %w", saved, err)
	}
	out.Send(fmt.Sprintf("saved %d worlds", saved))
	return nil
}

func worldList(out Output, deps *Deps) {
	worlds := deps.Worlds.Worlds()
	if len(worlds) == 0 {
		out.Send("no worlds loaded")
		return
	}
	active := deps.Worlds.ActiveLayer()
	for _, w := range worlds {
		var flags []string
		if w.Layer() == active {
			flags = append(flags, "active")
		}
		if w.Visible() {
			flags = append(flags, "visible")
		}
		flags = append(flags, w.State().String())
		line := fmt.Sprintf("%3d  %-16s %-24s objects=%d [%s]",
			w.Layer(), w.Name(), w.Title(), w.ObjectCount(), strings.Join(flags, ","))
		if deps.Greeter != nil {
			if g := deps.Greeter.WorldGreeting(w.Name()); g != "" {
				line += "  " + g
			}
		}
		out.Send(line)
	}
}

func worldInfo(out Output, args []string, deps *Deps) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: world_info <name|layer>")
	}
	w := lookupWorld(args[0], deps)
	if w == nil {
		out.Send(fmt.Sprintf("no world %s loaded", args[0]))
		return nil
	}
	o := w.Origin()
	out.Send(fmt.Sprintf("%s (%s) layer=%d state=%s origin=(%.1f, %.1f, %.1f) spacing=%.1f",
		w.Name(), w.Title(), w.Layer(), w.State(), o.X(), o.Y(), o.Z(), deps.Worlds.Offset()))
	out.Send("tags: " + strings.Join(w.Tags().Sorted(), ","))
	for _, e := range w.Template().Entrances {
		out.Send(fmt.Sprintf("entrance %s (%.1f, %.1f, %.1f)", e.ID, e.X, e.Y, e.Z))
	}
	return nil
}

func worldObjects(out Output, args []string, deps *Deps) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: world_objects <name|layer>")
	}
	w := lookupWorld(args[0], deps)
	if w == nil {
		out.Send(fmt.Sprintf("no world %s loaded", args[0]))
		return nil
	}
	scene := deps.Worlds.Scene()
	for _, id := range w.Objects() {
		var prefab component.Prefab
		if p, ok := scene.Prefabs.Get(id); ok {
			prefab = *p
		}
		pos, _ := scene.Position(id)
		out.Send(fmt.Sprintf("%d  %-16s %-12s (%.1f, %.1f, %.1f)", id, prefab.Key, prefab.Name, pos.X(), pos.Y(), pos.Z()))
	}
	out.Send(fmt.Sprintf("%d objects", w.ObjectCount()))
	return nil
}

func worldPlace(out Output, args []string, deps *Deps) error {
	if len(args) != 6 {
		return fmt.Errorf("usage: world_place <layer> <key> <prefab> <x> <y> <z>")
	}
	layer, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid layer %q: %w", args[0], err)
	}
	var local mgl32.Vec3
	for i := range 3 {
		v, err := strconv.ParseFloat(args[3+i], 32)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", args[3+i], err)
		}
		local[i] = float32(v)
	}
	w := deps.Worlds.World(layer)
	if w == nil || w.State() != world.StateLoaded {
		return fmt.Errorf("layer %d: %w", layer, world.ErrWorldNotFound)
	}
	id := w.PlaceObject(args[1], args[2], local)
	deps.Worlds.RebuildVisibility()
	out.Send(fmt.Sprintf("placed %s as %d in %s", args[1], id, w.Name()))
	return nil
}

// worldRemove takes either an entity id, resolved to its owning world, or a
// layer and object key.
func worldRemove(out Output, args []string, deps *Deps) error {
	var (
		w  *world.World
		id ecs.EntityID
	)
	switch len(args) {
	case 1:
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entity %q: %w", args[0], err)
		}
		id = ecs.EntityID(n)
		w = deps.Worlds.FindObjectWorld(id)
	case 2:
		layer, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid layer %q: %w", args[0], err)
		}
		if w = deps.Worlds.World(layer); w != nil {
			var ok bool
			if id, ok = w.Object(args[1]); !ok {
				w = nil
			}
		}
	default:
		return fmt.Errorf("usage: world_remove <entity> | <layer> <key>")
	}
	if w == nil || !w.RemoveObject(id) {
		out.Send(fmt.Sprintf("no object %s", strings.Join(args, " ")))
		return nil
	}
	out.Send(fmt.Sprintf("removed %d from %s", id, w.Name()))
	return nil
}
