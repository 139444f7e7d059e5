package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clover/server/internal/component"
	"github.com/clover/server/internal/config"
	"github.com/clover/server/internal/console"
	"github.com/clover/server/internal/core/event"
	coresys "github.com/clover/server/internal/core/system"
	"github.com/clover/server/internal/data"
	gonet "github.com/clover/server/internal/net"
	"github.com/clover/server/internal/persist"
	"github.com/clover/server/internal/scripting"
	"github.com/clover/server/internal/system"
	"github.com/clover/server/internal/transport/ws"
	"github.com/clover/server/internal/world"
)

func main() {
	profileMode := flag.String("profile", "", "write a profile to the working directory: cpu, mem or trace")
	flag.Parse()

	if err := runProfiled(*profileMode, ".", run); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// runProfiled runs fn under the requested profile. The profile is written to
// dir before runProfiled returns, whether or not fn failed.
func runProfiled(mode, dir string, fn func() error) error {
	if stop := startProfile(mode, dir); stop != nil {
		defer stop()
	}
	return fn()
}

func startProfile(mode, dir string) func() {
	opts := []func(*profile.Profile){profile.ProfilePath(dir), profile.NoShutdownHook}
	switch mode {
	case "":
		return nil
	case "cpu":
		opts = append(opts, profile.CPUProfile)
	case "mem":
		opts = append(opts, profile.MemProfile)
	case "trace":
		opts = append(opts, profile.TraceProfile)
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q, profiling disabled\n", mode)
		return nil
	}
	return profile.Start(opts...).Stop
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              Clover  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m          layered world host (Go)          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("CLOVER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Open database and run migrations
	printSection("database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	persister, dbCloser, err := persist.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbCloser.Close()
	printOK(fmt.Sprintf("%s ready, migrations applied", cfg.Database.Driver))

	// 4. Load world templates
	printSection("data")

	worldTable, err := data.LoadWorldTable(cfg.Worlds.DataFile)
	if err != nil {
		return fmt.Errorf("load world templates: %w", err)
	}
	printStat("world templates", worldTable.Count())

	// 5. Lua scripts
	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("init scripting: %w", err)
	}
	defer luaEngine.Close()
	printOK("lua engine ready")

	// 6. Scene, bus and world registry
	scene := world.NewScene()
	bus := event.NewBus()
	worlds := world.NewRegistry(scene, bus, world.Options{
		Offset:    cfg.Worlds.Offset,
		Persister: persister,
	}, log)

	// 7. Event subscribers
	subscribeScripts(bus, luaEngine)

	// 8. Console
	printSection("network")

	consoleReg := console.NewRegistry(log)
	console.RegisterWorldCommands(consoleReg, &console.Deps{
		Worlds:    worlds,
		Templates: worldTable,
		Greeter:   luaEngine,
		Scripts:   luaEngine,
		Log:       log,
	})

	sessStore := gonet.NewSessionStore()
	var netServer *gonet.Server
	if cfg.Console.Enabled {
		netServer, err = gonet.NewServer(cfg.Console.BindAddress, cfg.Console.InQueueSize, cfg.Console.OutQueueSize, log)
		if err != nil {
			return fmt.Errorf("console listen: %w", err)
		}
		go netServer.AcceptLoop()
		printOK("console listening on " + netServer.Addr().String())
	}

	// 9. Event feed
	var feed *ws.Hub
	if cfg.Feed.Enabled {
		feed = ws.NewHub(cfg.Feed.WriteTimeout, log)
		feed.Attach(bus)
		addr, err := feed.Listen(cfg.Feed.BindAddress)
		if err != nil {
			return fmt.Errorf("feed listen: %w", err)
		}
		printOK("event feed on ws://" + addr.String() + "/feed")
	}

	// 10. Systems
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	persistSys := system.NewPersistenceSystem(worlds, log, cfg.AutosaveTicks())
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(loopCtx, netServer, consoleReg, sessStore, cfg.Console.MaxPerTick, log))
	if feed != nil {
		runner.Register(system.NewFeedSystem(feed.Inbound(), worlds, cfg.Console.MaxPerTick, log))
	}
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewLoadSystem(worlds))
	runner.Register(system.NewCameraSystem(scene))
	runner.Register(system.NewOutputSystem(sessStore))
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(scene.ECS))
	printStat("systems", runner.Len())

	// 11. Default world and player
	printSection("worlds")
	if err := loadDefaultWorld(ctx, cfg, worlds, worldTable, log); err != nil {
		return err
	}
	printStat("worlds loaded", worlds.Len())
	printStat("entities", scene.ECS.Len())

	// 12. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Server.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("tick %s, autosave every %d ticks", cfg.Server.TickRate, cfg.AutosaveTicks()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Server.TickRate)

		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			saved := persistSys.SaveAll()
			sessStore.Each(func(s *gonet.Session) {
				s.Send(fmt.Sprintf("server shutting down, saved %d worlds", saved))
			})
			runner.TickPhase(coresys.PhaseOutput, 0)
			if netServer != nil {
				netServer.Shutdown()
			}
			sessStore.CloseAll()
			if feed != nil {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := feed.Shutdown(shutCtx); err != nil {
					log.Warn("feed shutdown", zap.Error(err))
				}
				shutCancel()
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// subscribeScripts forwards world events to the Lua hooks.
func subscribeScripts(bus *event.Bus, engine *scripting.Engine) {
	event.Subscribe(bus, func(e world.WorldLoaded) {
		engine.OnWorldLoaded(e.World.Name(), e.World.Layer())
	})
	event.Subscribe(bus, func(e world.WorldUnloaded) {
		engine.OnWorldUnloaded(e.World.Name(), e.World.Layer())
	})
	event.Subscribe(bus, func(e world.ActiveWorldChanged) {
		name, layer := "", -1
		if e.World != nil {
			name, layer = e.World.Name(), e.Layer
		}
		engine.OnActiveWorldChanged(name, layer)
	})
}

// loadDefaultWorld loads the configured default world when nothing is loaded
// yet, activates it and spawns the player at its entrance.
func loadDefaultWorld(ctx context.Context, cfg *config.Config, worlds *world.Registry, table *data.WorldTable, log *zap.Logger) error {
	if worlds.Len() > 0 || cfg.Worlds.DefaultWorld == "" {
		return nil
	}
	tmpl := table.Get(cfg.Worlds.DefaultWorld)
	if tmpl == nil {
		return fmt.Errorf("default world %q not in %s", cfg.Worlds.DefaultWorld, cfg.Worlds.DataFile)
	}
	w, err := worlds.Load(ctx, tmpl)
	if err != nil {
		return fmt.Errorf("load default world: %w", err)
	}
	worlds.SetActiveWorld(w)

	scene := worlds.Scene()
	off := cfg.Player.CameraOffset
	scene.SpawnPlayer(w.Origin(), w.Layer(), component.CameraRig{
		Offset:    mgl32.Vec3{off[0], off[1], off[2]},
		LerpSpeed: cfg.Player.CameraLerpSpeed,
	})
	if err := worlds.MovePlayerToEntrance(w.Layer(), cfg.Player.Entrance); err != nil {
		if !errors.Is(err, world.ErrEntranceNotFound) {
			return fmt.Errorf("place player: %w", err)
		}
		log.Warn("default entrance missing, player left at world origin",
			zap.String("world", w.Name()),
			zap.String("entrance", cfg.Player.Entrance),
		)
	}
	printOK(fmt.Sprintf("default world %s on layer %d", w.Name(), w.Layer()))
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
