// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quietlabs/edgebot/internal/capital"
	"github.com/quietlabs/edgebot/internal/engine"
	"github.com/quietlabs/edgebot/internal/events"
	"github.com/quietlabs/edgebot/internal/executor"
	"github.com/quietlabs/edgebot/internal/feed"
	"github.com/quietlabs/edgebot/internal/metrics"
	"github.com/quietlabs/edgebot/internal/monitor"
	"github.com/quietlabs/edgebot/internal/position"
	"github.com/quietlabs/edgebot/internal/risk"
	"github.com/quietlabs/edgebot/internal/signal"
	"github.com/quietlabs/edgebot/internal/store"
	"github.com/quietlabs/edgebot/internal/strategy"
	"github.com/quietlabs/edgebot/internal/types"
	"github.com/quietlabs/edgebot/internal/venue"
)

// Deps carries everything the runner orchestrates. Optional fields are
// documented; the rest are required.
type Deps struct {
	Store     store.Store
	Registry  *strategy.Registry
	Matcher   *engine.Matcher
	Entry     *executor.EntryExecutor
	Exit      *executor.ExitExecutor
	Queue     *executor.ExitQueue
	Monitor   *monitor.Monitor
	Positions *position.Manager
	Capital   *capital.Manager
	Governor  *risk.Governor
	Bus       *events.Bus
	Metrics   *metrics.Metrics // may be nil
	Feed      *feed.Listener   // may be nil when no wallet feed is configured
	Providers []venue.SnapshotProvider
}

// Runner drives the detection-to-execution pipeline: one scan loop producing
// edges and entering positions, one monitor loop producing exit commands and
// one executor loop consuming them.
type Runner struct {
	deps         Deps
	scanInterval time.Duration
	metricsAddr  string
	logger       *zap.Logger
}

// NewRunner creates the pipeline runner. metricsAddr may be empty to disable
// the scrape endpoint.
func NewRunner(deps Deps, scanInterval time.Duration, metricsAddr string, logger *zap.Logger) *Runner {
	return &Runner{
		deps:         deps,
		scanInterval: scanInterval,
		metricsAddr:  metricsAddr,
		logger:       logger.Named("runner"),
	}
}

// Run starts all loops and blocks until the context ends or a loop fails.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.rebalance(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return r.scanLoop(groupCtx) })
	group.Go(func() error { return r.deps.Monitor.Run(groupCtx) })
	group.Go(func() error { return r.deps.Exit.Run(groupCtx) })

	if r.deps.Feed != nil {
		group.Go(func() error { return r.deps.Feed.Run(groupCtx) })
	}
	if r.deps.Metrics != nil && r.metricsAddr != "" {
		group.Go(func() error { return r.deps.Metrics.Serve(groupCtx, r.metricsAddr, r.logger) })
	}

	r.logger.Info("Pipeline started",
		zap.Duration("scan_interval", r.scanInterval),
		zap.Int("snapshot_providers", len(r.deps.Providers)))

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// rebalance splits capital across the currently active strategy configs.
func (r *Runner) rebalance(ctx context.Context) error {
	configs, err := r.deps.Store.ListStrategyConfigs(ctx, true)
	if err != nil {
		return err
	}
	ids := make([]string, len(configs))
	for i, cfg := range configs {
		ids[i] = cfg.ID
	}
	r.deps.Capital.Rebalance(ids)
	return nil
}

func (r *Runner) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.scanCycle(ctx)
		}
	}
}

// scanCycle runs one detection pass: fetch snapshots, scan strategies, match
// signals into edges, execute each edge. Entry failures are contained per
// edge; the cycle always completes.
func (r *Runner) scanCycle(ctx context.Context) {
	snapshots := r.fetchSnapshots(ctx)
	signals := r.collectSignals(ctx, snapshots)

	configs, err := r.deps.Store.ListStrategyConfigs(ctx, true)
	if err != nil {
		r.logger.Error("Strategy config load failed, skipping cycle", zap.Error(err))
		return
	}

	edges := r.deps.Matcher.Match(signals, configs, time.Now().UTC())

	for i := range edges {
		edge := &edges[i]
		cfg := configByID(configs, edge.StrategyID)
		if cfg == nil {
			continue
		}

		if err := r.deps.Entry.Execute(ctx, edge, cfg); err != nil {
			r.logger.Warn("Edge execution errored",
				zap.String("edge", edge.ID),
				zap.Error(err))
		}

		_ = r.deps.Bus.Publish(events.NewEdgeEvent(*edge))
		if r.deps.Metrics != nil {
			r.deps.Metrics.ObserveEdge(*edge)
		}
		if edge.Status == types.EdgeExecuted {
			_ = r.deps.Bus.Publish(events.NewPositionOpened(
				r.openPositionID(edge.TokenMint, edge.StrategyID), edge.StrategyID, edge.TokenMint))
		}
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveScan(len(signals))
		r.deps.Metrics.SetGauges(
			r.deps.Positions.ActiveCount(),
			r.deps.Queue.Len(),
			r.deps.Governor.DailyLoss(),
			r.deps.Capital.TotalReserved(),
		)
	}
}

// fetchSnapshots polls every provider once. A provider failure skips its
// venue for this cycle only.
func (r *Runner) fetchSnapshots(ctx context.Context) map[types.VenueType]*venue.Snapshot {
	snapshots := make(map[types.VenueType]*venue.Snapshot, len(r.deps.Providers))
	for _, provider := range r.deps.Providers {
		snap, err := provider.Fetch(ctx)
		if err != nil {
			r.logger.Warn("Snapshot fetch failed",
				zap.String("venue", string(provider.Venue())),
				zap.Error(err))
			continue
		}
		snapshots[provider.Venue()] = snap
	}
	return snapshots
}

// collectSignals scans every active strategy. Each strategy is handed the
// snapshot of its first accepted venue with data; event-buffered strategies
// drain their own buffer and ignore it.
func (r *Runner) collectSignals(ctx context.Context, snapshots map[types.VenueType]*venue.Snapshot) []signal.Signal {
	var all []signal.Signal
	for _, s := range r.deps.Registry.GetActive() {
		var snap *venue.Snapshot
		for _, v := range s.AcceptedVenues() {
			if found, ok := snapshots[v]; ok {
				snap = found
				break
			}
		}
		all = append(all, s.Scan(ctx, snap)...)
	}
	return all
}

// openPositionID finds the freshly opened position for an executed edge.
func (r *Runner) openPositionID(tokenMint, strategyID string) string {
	for _, pos := range r.deps.Positions.Managed() {
		if pos.TokenMint == tokenMint && pos.StrategyID == strategyID {
			return pos.ID
		}
	}
	return ""
}

func configByID(configs []*store.StrategyConfig, id string) *store.StrategyConfig {
	for _, cfg := range configs {
		if cfg.ID == id {
			return cfg
		}
	}
	return nil
}
