// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Ticks            prometheus.Counter
	TicksSkipped     prometheus.Counter
	PollErrors       prometheus.Counter
	Transitions      *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec

	// Histograms (seconds)
	TickDuration prometheus.Observer

	// Gauges
	LiveWatchesGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Ticks = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_poll_ticks_total", Help: "Number of poll ticks started"})
		TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_poll_ticks_skipped_total", Help: "Number of ticks skipped for lack of a valid token"})
		PollErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_poll_entity_errors_total", Help: "Number of per-entity poll failures"})
		Transitions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_transitions_total", Help: "Stream state transitions by kind"}, []string{"kind"})
		DispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_dispatch_failures_total", Help: "Notification dispatch failures by operation"}, []string{"op"})
		TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "herald_poll_tick_duration_seconds", Help: "Full tick duration seconds", Buckets: prometheus.DefBuckets})
		LiveWatchesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_live_watches", Help: "Currently live tracked broadcasters"})
	})
}

// The helpers below are nil-safe so core code can run (and be tested) without
// Init having been called.

func IncTick() {
	if Ticks != nil {
		Ticks.Inc()
	}
}

func IncTickSkipped() {
	if TicksSkipped != nil {
		TicksSkipped.Inc()
	}
}

func IncPollError() {
	if PollErrors != nil {
		PollErrors.Inc()
	}
}

func IncTransition(kind string) {
	if Transitions != nil {
		Transitions.WithLabelValues(kind).Inc()
	}
}

func IncDispatchFailure(op string) {
	if DispatchFailures != nil {
		DispatchFailures.WithLabelValues(op).Inc()
	}
}

func ObserveTickDuration(d time.Duration) {
	if TickDuration != nil {
		TickDuration.Observe(d.Seconds())
	}
}

func SetLiveWatches(n int) {
	if LiveWatchesGauge != nil {
		LiveWatchesGauge.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
