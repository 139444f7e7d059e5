package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM running world hook scripts.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under
// scriptsDir/core and scriptsDir/world. Missing directories are skipped.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	e.registerAPI()

	for _, sub := range []string{"core", "world"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// registerAPI exposes a small host API to scripts.
func (e *Engine) registerAPI() {
	e.vm.SetGlobal("log_info", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk in the engine's VM. Used by the lua console command.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// OnWorldLoaded calls on_world_loaded(name, layer) if defined.
func (e *Engine) OnWorldLoaded(name string, layer int) {
	e.callHook("on_world_loaded", lua.LString(name), lua.LNumber(layer))
}

// OnWorldUnloaded calls on_world_unloaded(name, layer) if defined.
func (e *Engine) OnWorldUnloaded(name string, layer int) {
	e.callHook("on_world_unloaded", lua.LString(name), lua.LNumber(layer))
}

// OnActiveWorldChanged calls on_active_world_changed(name, layer). name is ""
// when the active layer holds no world.
func (e *Engine) OnActiveWorldChanged(name string, layer int) {
	e.callHook("on_active_world_changed", lua.LString(name), lua.LNumber(layer))
}

// WorldGreeting returns world_greeting(name), or "" when undefined.
func (e *Engine) WorldGreeting(name string) string {
	fn := e.vm.GetGlobal("world_greeting")
	if fn == lua.LNil {
		return ""
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(name)); err != nil {
		e.log.Error("lua world_greeting error", zap.Error(err))
		return ""
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	if result == lua.LNil {
		return ""
	}
	return lua.LVAsString(result)
}

// callHook calls an optional global function, discarding results. Lua
// errors are logged and never reach the caller.
func (e *Engine) callHook(name string, args ...lua.LValue) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua hook error", zap.String("func", name), zap.Error(err))
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
