package core

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"admissions/pkg/domain"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes operation timings, outcome counters and the
// aggregate counters via expvar.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	inventory int
	revenue   float64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS   map[string]float64          `json:"durations_ms_total"`
	Results       map[string]map[string]int64 `json:"results_total"`
	FormInventory int                         `json:"form_inventory"`
	TotalRevenue  float64                     `json:"total_revenue"`
	RecordedAt    time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and publishes it
// under the supplied name. When name is empty, a unique identifier is generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("admissions_service_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, statusCounts := range r.results {
		cpy := make(map[string]int64, len(statusCounts))
		for status, count := range statusCounts {
			cpy[status] = count
		}
		results[op] = cpy
	}
	return ExpvarMetricsSnapshot{
		DurationsMS:   durations,
		Results:       results,
		FormInventory: r.inventory,
		TotalRevenue:  r.revenue,
		RecordedAt:    time.Now().UTC(),
	}
}

// Observe records a service operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	status := outcome(success)

	r.mu.Lock()
	r.durations[operation] += ms
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][status]++
	r.mu.Unlock()
}

// ObserveState records the current counters.
func (r *ExpvarMetricsRecorder) ObserveState(state domain.AppState) {
	r.mu.Lock()
	r.inventory = state.FormInventory
	r.revenue = state.TotalRevenue
	r.mu.Unlock()
}

// PrometheusRecorder exposes service metrics to a Prometheus registry.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	inventory  prometheus.Gauge
	revenue    prometheus.Gauge
	students   prometheus.Gauge
	stages     *prometheus.GaugeVec
}

// NewPrometheusRecorder registers the admission collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admissions",
			Name:      "operations_total",
			Help:      "Admission actions by operation and outcome.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "admissions",
			Name:      "operation_duration_seconds",
			Help:      "Latency of admission actions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		inventory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "admissions",
			Name:      "form_inventory",
			Help:      "Admission forms left in stock.",
		}),
		revenue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "admissions",
			Name:      "revenue_total",
			Help:      "Total confirmed payments.",
		}),
		students: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "admissions",
			Name:      "students",
			Help:      "Registered students.",
		}),
		stages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "admissions",
			Name:      "stage_completed",
			Help:      "Students that completed each stage.",
		}, []string{"stage"}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.latency, r.inventory, r.revenue, r.students, r.stages} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Observe records a service operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, outcome(success)).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveState refreshes the aggregate gauges.
func (r *PrometheusRecorder) ObserveState(state domain.AppState) {
	r.inventory.Set(float64(state.FormInventory))
	r.revenue.Set(state.TotalRevenue)
	r.students.Set(float64(len(state.Students)))
	for _, sc := range Overview(state).Stages {
		r.stages.WithLabelValues(string(sc.Stage)).Set(float64(sc.Count))
	}
}

// MultiRecorder fans observations out to several recorders.
type MultiRecorder []MetricsRecorder

// Observe forwards to every recorder.
func (m MultiRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}

// ObserveState forwards to every recorder that tracks state.
func (m MultiRecorder) ObserveState(state domain.AppState) {
	for _, r := range m {
		if obs, ok := r.(StateObserver); ok {
			obs.ObserveState(state)
		}
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
