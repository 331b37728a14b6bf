package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/component"
	"github.com/dtsim/server/internal/config"
	coresys "github.com/dtsim/server/internal/core/system"
	"github.com/dtsim/server/internal/gm"
	"github.com/dtsim/server/internal/maps"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/net"
	"github.com/dtsim/server/internal/persist"
	"github.com/dtsim/server/internal/scene"
	"github.com/dtsim/server/internal/scripting"
	"github.com/dtsim/server/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printBanner(name, role string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             dtsim  v0.1.0                 \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        simulation game manager            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mmachine:\033[0m %s \033[90m(role: %s)\033[0m\n\n", name, role)
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

func run() error {
	cfg := config.Default()
	if p := os.Getenv("DTSIM_CONFIG"); p != "" {
		loaded, err := config.Load(p)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.Role)
	authority := cfg.Server.Role != config.RoleClient

	// 1. Clock and scene
	clock := coresys.NewClock()
	if err := clock.SetTime(0, cfg.Simulation.TimeScale); err != nil {
		return fmt.Errorf("time scale: %w", err)
	}
	clock.SetPaused(cfg.Simulation.StartPaused)
	graph := scene.NewGraph(cfg.Simulation.SceneDir, log)

	// 2. Actor types
	printSection("actors")
	lib := actor.NewLibrary()
	if err := component.RegisterActorTypes(lib); err != nil {
		return fmt.Errorf("actor types: %w", err)
	}
	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	if err := scripting.RegisterActorType(lib, luaEngine); err != nil {
		return fmt.Errorf("actor types: %w", err)
	}
	printStat("actor types", len(lib.Types()))
	printOK("lua scripts loaded")
	fmt.Println()

	// 3. Maps
	printSection("maps")
	project := maps.NewProject(cfg.Maps.Dir, lib, graph, log)
	names, err := project.MapNames()
	if err != nil {
		return fmt.Errorf("list maps: %w", err)
	}
	printStat("maps", len(names))
	runner := coresys.NewRunner(clock)
	if cfg.Maps.Watch {
		watcher, err := project.Watch()
		if err != nil {
			return fmt.Errorf("watch maps: %w", err)
		}
		defer watcher.Close()
		runner.Register(system.NewMapWatchSystem(project, watcher.Changes()))
		printOK("watching " + project.Dir())
	}
	fmt.Println()

	// 4. Game manager
	g := gm.New(gm.Options{
		Logger:        log,
		Clock:         clock,
		Scene:         graph,
		Machine:       message.NewMachineInfo(cfg.Server.Name),
		Loader:        project,
		StatsInterval: cfg.Simulation.StatsInterval,
	})
	if err := g.AddComponent(component.NewProcessor(lib, authority, log), gm.Highest); err != nil {
		return fmt.Errorf("processor: %w", err)
	}

	// 5. Recorder
	printSection("recorder")
	stream, closeStream, err := openLogStream(cfg, log)
	if err != nil {
		return err
	}
	defer closeStream()
	recorder := component.NewServerLogger(stream, log)
	recorder.SetLogName(cfg.Recorder.LogName)
	if err := g.AddComponent(recorder, gm.Normal); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	runner.Register(system.NewRecorderFlushSystem(recorder, cfg.Recorder.FlushEvery, log))
	printOK("store: " + cfg.Recorder.Store)
	if cfg.Recorder.Enabled {
		g.SendMessage(g.MessageFactory().CreateMessage(message.LogReqChangeStateRecord))
		printOK("recording to " + cfg.Recorder.LogName)
	}
	fmt.Println()

	// 6. Network
	var netServer *net.Server
	if cfg.Network.Enabled && cfg.Server.Role != config.RoleStandalone {
		printSection("network")
		opts := net.Options{
			InQueueSize:  cfg.Network.InQueueSize,
			OutQueueSize: cfg.Network.OutQueueSize,
			MaxPerSecond: cfg.Network.PacketsPerSecond,
		}
		if cfg.Server.Role == config.RoleServer {
			netServer, err = net.NewServer(cfg.Network.BindAddress, opts, log)
			if err != nil {
				return fmt.Errorf("network: %w", err)
			}
			go netServer.AcceptLoop()
		}
		network := component.NewNetwork(netServer, component.NetworkOptions{
			Authority:  authority,
			MaxPerTick: cfg.Network.MaxPacketsPerTick,
		}, log)
		if err := g.AddComponent(network, gm.Higher); err != nil {
			return fmt.Errorf("network: %w", err)
		}
		if cfg.Server.Role == config.RoleClient {
			sess, err := net.Dial(cfg.Network.ServerAddress, cfg.Network.DialTimeout, opts, log)
			if err != nil {
				return fmt.Errorf("connect %s: %w", cfg.Network.ServerAddress, err)
			}
			network.AddSession(sess)
			printOK("connected to " + cfg.Network.ServerAddress)
		} else {
			printOK("listening on " + netServer.Addr().String())
		}
		fmt.Println()
	}

	// 7. Frame systems
	runner.Register(system.NewPreFrameSystem(g))
	runner.Register(system.NewFrameSynchSystem(g))
	runner.Register(system.NewPostFrameSystem(g))

	if len(cfg.Maps.Initial) > 0 {
		if err := g.ChangeMapSet(cfg.Maps.Initial, cfg.Maps.Billboards); err != nil {
			return fmt.Errorf("initial maps: %w", err)
		}
	}

	// 8. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.FrameRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("frame loop started (frame: %s, scale: %.2f)", cfg.Simulation.FrameRate, clock.Scale()))
	fmt.Println()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			runner.Tick(now.Sub(last))
			last = now
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			g.Shutdown()
			if netServer != nil {
				netServer.Shutdown()
			}
			log.Info("game manager stopped", zap.Uint64("frames", clock.Frame()))
			return nil
		}
	}
}

// openLogStream returns the message log store selected by the recorder
// config and a func releasing it.
func openLogStream(cfg *config.Config, log *zap.Logger) (component.LogStream, func(), error) {
	if cfg.Recorder.Store != "postgres" {
		return persist.NewMemoryLogStore(), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	printOK("PostgreSQL connected")
	if err := persist.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	return persist.NewMessageLogRepo(db), db.Close, nil
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
