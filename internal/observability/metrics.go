// Package observability exposes Prometheus metrics for simulation runs.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal     *prometheus.CounterVec
	backtestDuration   prometheus.Histogram
	signalsGenerated   *prometheus.CounterVec
	tradesExecuted     *prometheus.CounterVec
	walkforwardWindows *prometheus.CounterVec
	montecarloTrials   prometheus.Counter
	barsProcessed      prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backcast_backtests_total",
				Help: "Total number of backtests run",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backcast_backtest_duration_seconds",
				Help:    "Backtest duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		signalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backcast_signals_generated_total",
				Help: "Total number of signals generated",
			},
			[]string{"strategy", "action"},
		),
		tradesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backcast_trades_executed_total",
				Help: "Total number of closed trades",
			},
			[]string{"exit_reason"},
		),
		walkforwardWindows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backcast_walkforward_windows_total",
				Help: "Total number of walk-forward windows analyzed",
			},
			[]string{"status"},
		),
		montecarloTrials: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backcast_montecarlo_trials_total",
				Help: "Total number of Monte Carlo trials completed",
			},
		),
		barsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backcast_bars_processed_total",
				Help: "Total number of bars fed through the engine",
			},
		),
	}

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.tradesExecuted)
	reg.MustRegister(r.walkforwardWindows)
	reg.MustRegister(r.montecarloTrials)
	reg.MustRegister(r.barsProcessed)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordSignal records a generated signal.
func (r *Registry) RecordSignal(strategy, action string) {
	r.signalsGenerated.WithLabelValues(strategy, action).Inc()
}

// RecordTrade records a closed trade.
func (r *Registry) RecordTrade(exitReason string) {
	r.tradesExecuted.WithLabelValues(exitReason).Inc()
}

// RecordWindow records a completed walk-forward window.
func (r *Registry) RecordWindow(status string) {
	r.walkforwardWindows.WithLabelValues(status).Inc()
}

// AddTrials adds completed Monte Carlo trials.
func (r *Registry) AddTrials(n int) {
	r.montecarloTrials.Add(float64(n))
}

// AddBars adds processed bars.
func (r *Registry) AddBars(n int) {
	r.barsProcessed.Add(float64(n))
}

// Serve exposes the registry over HTTP until the context is cancelled.
func (r *Registry) Serve(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
