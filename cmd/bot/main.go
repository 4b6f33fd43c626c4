// cmd/bot/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/bot"
	"github.com/quietlabs/edgebot/internal/broadcast"
	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/config"
	"github.com/quietlabs/edgebot/internal/engine"
	"github.com/quietlabs/edgebot/internal/events"
	"github.com/quietlabs/edgebot/internal/executor"
	"github.com/quietlabs/edgebot/internal/feed"
	"github.com/quietlabs/edgebot/internal/learning"
	"github.com/quietlabs/edgebot/internal/logger"
	"github.com/quietlabs/edgebot/internal/metrics"
	"github.com/quietlabs/edgebot/internal/monitor"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/store"
	"github.com/quietlabs/edgebot/internal/strategy"
	"github.com/quietlabs/edgebot/internal/types"
	"github.com/quietlabs/edgebot/internal/venue"
)

func main() {
	configPath := flag.String("config", "configs/edgebot.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "edgebot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		LogDir:      cfg.LogDir,
		Development: cfg.DebugLogging,
		MaxSizeMB:   50,
		MaxBackups:  5,
		MaxAgeDays:  14,
		Compress:    true,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	registry := strategy.NewRegistry(log)
	copyTrade := strategy.NewCopyTrade(strategy.DefaultCopyTradeConfig(), log)
	if err := registry.Register(strategy.NewGraduation(strategy.DefaultGraduationConfig(), log)); err != nil {
		return err
	}
	if err := registry.Register(copyTrade); err != nil {
		return err
	}

	positions := position.NewManager(log)
	capitalMgr := capital.NewManager(cfg.TotalCapital, log)
	governor := risk.NewGovernor(risk.Config{
		MaxPositionSize:        cfg.Risk.MaxPositionSize,
		DailyLossLimit:         cfg.Risk.DailyLossLimit,
		MaxDrawdownPercent:     cfg.Risk.MaxDrawdownPercent,
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		CooldownAfterLoss:      time.Duration(cfg.Risk.CooldownAfterLossS) * time.Second,
		AutoPauseOnDrawdown:    cfg.Risk.AutoPauseOnDrawdown,
	}, log)

	router := buildRouter(cfg, log)
	prom := metrics.New()
	router.SetObserver(prom.RecordSubmission)
	queue := executor.NewExitQueue(cfg.ExitQueueSize, log)
	bus := events.NewBus(log, 256)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = bus.Shutdown(shutdownCtx)
	}()

	recorder, err := buildRecorder(cfg, st, prom, bus, log)
	if err != nil {
		return err
	}

	entryCfg := executor.DefaultEntryConfig()
	entryCfg.ThreatThreshold = cfg.ThreatThreshold
	entryCfg.ConsensusTimeout = time.Duration(cfg.ConsensusTimeoutS) * time.Second

	var consensus venue.ConsensusClient
	if cfg.Endpoints.ConsensusURL != "" {
		consensus = venue.NewHTTPConsensusClient(cfg.Endpoints.ConsensusURL, entryCfg.ConsensusTimeout)
	}
	var threat venue.ThreatScorer
	if cfg.Endpoints.ThreatURL != "" {
		threat = venue.NewHTTPThreatScorer(cfg.Endpoints.ThreatURL)
	}

	entry := executor.NewEntryExecutor(entryCfg, positions, router, capitalMgr, governor, consensus, threat, log)
	exit := executor.NewExitExecutor(queue, positions, router, capitalMgr, governor, recorder, log)

	monitorCfg := monitor.DefaultConfig()
	monitorCfg.Interval = time.Duration(cfg.MonitorIntervalMs) * time.Millisecond
	reconciler := monitor.NewReconciler(positions, router, queue, log)
	prices := venue.NewHTTPPriceSource(cfg.Endpoints.PriceURL)
	mon := monitor.New(monitorCfg, positions, prices, queue, governor, capitalMgr, reconciler, log)

	var feedListener *feed.Listener
	if cfg.FeedURL != "" {
		feedListener = feed.NewListener(cfg.FeedURL, copyTrade, log)
	}

	runner := bot.NewRunner(bot.Deps{
		Store:     st,
		Registry:  registry,
		Matcher:   engine.NewMatcher(log),
		Entry:     entry,
		Exit:      exit,
		Queue:     queue,
		Monitor:   mon,
		Positions: positions,
		Capital:   capitalMgr,
		Governor:  governor,
		Bus:       bus,
		Metrics:   prom,
		Feed:      feedListener,
		Providers: buildProviders(cfg),
	}, time.Duration(cfg.ScanIntervalMs)*time.Millisecond, cfg.MetricsAddr, log)

	log.Info("Starting edgebot",
		zap.Float64("total_capital", cfg.TotalCapital),
		zap.String("metrics_addr", cfg.MetricsAddr))

	return runner.Run(ctx)
}

func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.PostgresURL == "" {
		log.Warn("No postgres_url configured, using in-memory store")
		return store.NewMemory(), nil
	}
	st, err := store.NewPostgres(cfg.PostgresURL, log)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := st.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return st, nil
}

func buildRouter(cfg *config.Config, log *zap.Logger) *broadcast.Router {
	timeout := time.Duration(cfg.SubmitTimeoutS) * time.Second
	primary := broadcast.NewGatewaySubmitter("primary", cfg.Endpoints.PrimaryGatewayURL, timeout)

	var fallback broadcast.Submitter
	if cfg.Endpoints.FallbackGatewayURL != "" {
		fallback = broadcast.NewGatewaySubmitter("fallback", cfg.Endpoints.FallbackGatewayURL, timeout)
	}
	return broadcast.NewRouter(primary, fallback, timeout, log)
}

func buildProviders(cfg *config.Config) []venue.SnapshotProvider {
	var providers []venue.SnapshotProvider
	if cfg.Endpoints.CurveSnapshotURL != "" {
		providers = append(providers, venue.NewHTTPProvider(types.VenueBondingCurve, cfg.Endpoints.CurveSnapshotURL))
	}
	if cfg.Endpoints.DexSnapshotURL != "" {
		providers = append(providers, venue.NewHTTPProvider(types.VenueDEX, cfg.Endpoints.DexSnapshotURL))
	}
	return providers
}

// buildRecorder chains every closed-trade sink: postgres, optional CSV,
// prometheus counters and the event bus.
func buildRecorder(cfg *config.Config, st store.Store, prom *metrics.Metrics, bus *events.Bus, log *zap.Logger) (learning.Recorder, error) {
	recorders := learning.MultiRecorder{
		learning.NewStoreRecorder(st),
		prom,
		bot.NewClosedTradePublisher(bus),
	}
	if cfg.Endpoints.LearningCSVPath != "" {
		csv, err := learning.NewCSVRecorder(cfg.Endpoints.LearningCSVPath, log)
		if err != nil {
			return nil, fmt.Errorf("open learning csv: %w", err)
		}
		recorders = append(recorders, csv)
	}
	return recorders, nil
}
