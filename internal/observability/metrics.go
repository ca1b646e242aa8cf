package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the agent's Prometheus collectors. Each instance owns its
// registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	Cycles           prometheus.Counter
	ReasoningCalls   *prometheus.CounterVec
	ReasoningLatency *prometheus.HistogramVec
	Observations     *prometheus.CounterVec
	Actions          *prometheus.CounterVec
	MemoryEntries    prometheus.Gauge
	Screenshots      prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "gbagent_cycles_total",
			Help: "Completed decision cycles",
		}),
		ReasoningCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gbagent_reasoning_calls_total",
			Help: "Reasoning service attempts by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		ReasoningLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gbagent_reasoning_duration_seconds",
			Help:    "Reasoning call latency including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
		}, []string{"purpose"}),
		Observations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gbagent_observations_total",
			Help: "Observation results by kind",
		}, []string{"kind"}),
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gbagent_actions_total",
			Help: "Button presses by symbol and result",
		}, []string{"symbol", "result"}),
		MemoryEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "gbagent_memory_entries",
			Help: "Current number of memory entries",
		}),
		Screenshots: f.NewGauge(prometheus.GaugeOpts{
			Name: "gbagent_screenshot_index",
			Help: "Most recent screenshot index",
		}),
	}
}

func (m *Metrics) RecordReasoning(purpose, outcome string) {
	if m == nil {
		return
	}
	m.ReasoningCalls.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) RecordReasoningLatency(purpose string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReasoningLatency.WithLabelValues(purpose).Observe(d.Seconds())
}

func (m *Metrics) RecordObservation(kind string) {
	if m == nil {
		return
	}
	m.Observations.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordAction(symbol, result string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(symbol, result).Inc()
}

func (m *Metrics) RecordCycle(memoryEntries, screenshotIndex int) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.MemoryEntries.Set(float64(memoryEntries))
	m.Screenshots.Set(float64(screenshotIndex))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
