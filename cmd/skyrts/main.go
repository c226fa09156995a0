package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skyrts/backend/internal/config"
	"github.com/skyrts/backend/internal/engine"
	"github.com/skyrts/backend/internal/metrics"
	gonet "github.com/skyrts/backend/internal/net"
	"github.com/skyrts/backend/internal/persist"
	"github.com/skyrts/backend/internal/system"
	"github.com/skyrts/backend/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(scenario string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              skyrts backend               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      deterministic RTS for RL agents      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mscenario:\033[0m %s\n\n", scenario)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
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
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Backend.Scenario)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Backend options and scenario check
	printSection("backend")
	style, err := system.ParseActionStyle(cfg.Backend.ActionStyle)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	scen, err := engine.OpenScenario(cfg.Backend.Scenario, log)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", cfg.Backend.Scenario, err)
	}
	desc, err := scen.Init()
	if err != nil {
		return fmt.Errorf("scenario %s: %w", cfg.Backend.Scenario, err)
	}
	if c, ok := scen.(interface{ Close() }); ok {
		c.Close()
	}
	printOK(fmt.Sprintf("scenario %s: %d factions, %d unit types", cfg.Backend.Scenario, desc.FactionCount(), len(desc.UnitTypes)))
	opts := backendOptions(cfg, style)
	fmt.Println()

	// 4. Metrics
	var rec engine.Recorder
	var gauge gonet.Gauge
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		printSection("metrics")
		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		rec, gauge = collector, collector.ActiveSessions
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.BindAddress, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		printOK(fmt.Sprintf("prometheus on %s%s", cfg.Metrics.BindAddress, cfg.Metrics.Path))
		fmt.Println()
	}

	// 5. Connect to PostgreSQL and run migrations
	var snaps engine.SnapshotStore
	var episodes engine.EpisodeLog
	if cfg.Database.Enabled {
		printSection("database")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		snaps, episodes = persist.NewSnapshotRepo(db), persist.NewEpisodeRepo(db)
		printOK(fmt.Sprintf("postgres connected, schema v%d", db.Schema))
		fmt.Println()
	}

	// 6. Create network server
	netServer := gonet.NewServer(cfg.Network, gauge, log)
	if err := netServer.Listen(cfg.Network.BindAddress); err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go func() {
		if err := netServer.Serve(); err != nil {
			log.Error("net server", zap.Error(err))
			stop()
		}
	}()

	host := engine.NewHost(netServer, engine.HostOptions{
		Backend:          opts,
		Scenario:         cfg.Backend.Scenario,
		SnapshotName:     cfg.Backend.SnapshotName,
		PollInterval:     cfg.Network.PollInterval,
		MaxFramesPerPoll: cfg.Network.MaxFramesPerPoll,
	}, rec, snaps, episodes, log)

	printSection("ready")
	printReady(fmt.Sprintf("listening on ws://%s%s", netServer.Addr(), cfg.Network.Path))
	printReady(fmt.Sprintf("game loop running (poll: %s, dt: %.4fs)", cfg.Network.PollInterval, opts.DeltaT))
	fmt.Println()

	// 7. Game loop, until a signal arrives
	host.Run(ctx)
	log.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := netServer.Shutdown(shutCtx); err != nil {
		log.Warn("net server shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		metricsSrv.Shutdown(shutCtx)
	}
	log.Info("stopped")
	return nil
}

func backendOptions(cfg *config.Config, style system.ActionStyle) engine.Options {
	return engine.Options{
		Bounds:      world.Bounds{W: cfg.World.Width, H: cfg.World.Height},
		CellSize:    cfg.World.CellSize,
		ObsCellSize: cfg.World.ObsCellSize,
		DeltaT:      cfg.World.DeltaT(),
		Seed:        cfg.Backend.Seed,
		Style:       style,
		Rules: system.TriggerRules{
			VictoryRadius: cfg.World.VictoryRadius,
			DefeatRadius:  cfg.World.DefeatRadius,
			VictoryReward: cfg.World.VictoryReward,
			DefeatReward:  cfg.World.DefeatReward,
		},
		ReplayMode:       cfg.Backend.ReplayMode,
		StrictIDs:        cfg.Backend.StrictIDs,
		ReclaimThreshold: cfg.Backend.ReclaimThreshold,
	}
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
