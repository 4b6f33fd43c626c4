// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quietlabs/edgebot/internal/learning"
	"github.com/quietlabs/edgebot/internal/types"
)

// Metrics exposes the trading core's operational counters.
type Metrics struct {
	registry *prometheus.Registry

	signalsScanned  prometheus.Counter
	edgesDetected   prometheus.Counter
	edgesByOutcome  *prometheus.CounterVec
	exitsByReason   *prometheus.CounterVec
	realizedPnl     prometheus.Counter
	realizedLoss    prometheus.Counter
	submissions     *prometheus.CounterVec
	holdSeconds     prometheus.Histogram
	openPositions   prometheus.Gauge
	exitQueueDepth  prometheus.Gauge
	dailyLoss       prometheus.Gauge
	reservedCapital prometheus.Gauge
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		signalsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgebot_signals_scanned_total",
			Help: "Signals produced by all strategies.",
		}),
		edgesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgebot_edges_detected_total",
			Help: "Edges produced by the matching engine.",
		}),
		edgesByOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgebot_edges_outcome_total",
			Help: "Edges by terminal status.",
		}, []string{"status"}),
		exitsByReason: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgebot_exits_total",
			Help: "Closed positions by exit reason.",
		}, []string{"reason"}),
		realizedPnl: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgebot_realized_profit_sol_total",
			Help: "Cumulative realized profit in SOL.",
		}),
		realizedLoss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgebot_realized_loss_sol_total",
			Help: "Cumulative realized loss in SOL.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgebot_submissions_total",
			Help: "Transaction submissions by route and outcome.",
		}, []string{"route", "outcome"}),
		holdSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edgebot_position_hold_seconds",
			Help:    "Hold duration of closed positions.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgebot_open_positions",
			Help: "Positions currently holding capital.",
		}),
		exitQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgebot_exit_queue_depth",
			Help: "Exit commands waiting for the executor.",
		}),
		dailyLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgebot_daily_realized_loss_sol",
			Help: "Realized loss accumulated today.",
		}),
		reservedCapital: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgebot_reserved_capital_sol",
			Help: "Capital reserved by open positions.",
		}),
	}

	m.registry.MustRegister(
		m.signalsScanned, m.edgesDetected, m.edgesByOutcome,
		m.exitsByReason, m.submissions, m.realizedPnl, m.realizedLoss, m.holdSeconds,
		m.openPositions, m.exitQueueDepth, m.dailyLoss, m.reservedCapital,
	)
	return m
}

// ObserveScan records one scan cycle's signal count.
func (m *Metrics) ObserveScan(signals int) {
	m.signalsScanned.Add(float64(signals))
}

// ObserveEdge records an edge's terminal status.
func (m *Metrics) ObserveEdge(edge types.Edge) {
	m.edgesDetected.Inc()
	m.edgesByOutcome.WithLabelValues(string(edge.Status)).Inc()
}

// RecordSubmission counts one route attempt's outcome. Implements the
// broadcast router's observer hook.
func (m *Metrics) RecordSubmission(route, outcome string) {
	m.submissions.WithLabelValues(route, outcome).Inc()
}

// SetGauges refreshes the point-in-time gauges once per cycle.
func (m *Metrics) SetGauges(openPositions, queueDepth int, dailyLoss, reserved float64) {
	m.openPositions.Set(float64(openPositions))
	m.exitQueueDepth.Set(float64(queueDepth))
	m.dailyLoss.Set(dailyLoss)
	m.reservedCapital.Set(reserved)
}

// RecordTrade implements learning.Recorder so closed-position metrics ride
// the same sink chain as the learning records.
func (m *Metrics) RecordTrade(_ context.Context, rec learning.TradeRecord) error {
	m.exitsByReason.WithLabelValues(rec.ExitReason).Inc()
	m.holdSeconds.Observe(rec.HoldSeconds)
	if rec.RealizedPnl >= 0 {
		m.realizedPnl.Add(rec.RealizedPnl)
	} else {
		m.realizedLoss.Add(-rec.RealizedPnl)
	}
	return nil
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint until the context ends.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
