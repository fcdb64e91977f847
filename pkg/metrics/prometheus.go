// Package metrics provides Prometheus metrics for the amplike likelihood engine.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric of the engine.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	blockBuckets   []float64
	constLabels    map[string]string
	registry       *prometheus.Registry

	// Input
	eventsLoaded prometheus.Counter
	loadErrors   *prometheus.CounterVec

	// Evaluation
	evaluations          prometheus.Counter
	evaluationFailures   prometheus.Counter
	degenerateAmplitudes prometheus.Counter
	excludedEvents       prometheus.Counter
	blockLatency         prometheus.Histogram

	// Computations
	computations       *prometheus.CounterVec
	computationLatency *prometheus.HistogramVec
	lastLikelihood     prometheus.Gauge
	threads            *prometheus.GaugeVec

	// Offload region
	offloadBytes   *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	queueCapacity  prometheus.Gauge
	workersRunning prometheus.Gauge

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Private registry so the Go runtime collectors are not exported.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "amplike",
		subsystem:      "likelihood",
		latencyBuckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		blockBuckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		registry:       prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// Registry returns the registry this manager registered on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: m.constLabels,
		}
	}

	m.eventsLoaded = auto.NewCounter(prometheus.CounterOpts(opts("events_loaded_total", "Total number of events loaded into stores")))
	m.loadErrors = auto.NewCounterVec(prometheus.CounterOpts(opts("load_errors_total", "Event loads that failed, by kind")), []string{"kind"})

	m.evaluations = auto.NewCounter(prometheus.CounterOpts(opts("amplitude_evaluations_total", "Total number of amplitude evaluations")))
	m.evaluationFailures = auto.NewCounter(prometheus.CounterOpts(opts("amplitude_failures_total", "Amplitude evaluations that failed")))
	m.degenerateAmplitudes = auto.NewCounter(prometheus.CounterOpts(opts("degenerate_amplitudes_total", "Zero-magnitude amplitudes met in the reduction")))
	m.excludedEvents = auto.NewCounter(prometheus.CounterOpts(opts("excluded_events_total", "Events excluded from a likelihood sum")))
	m.blockLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "block_seconds",
		Help:        "Time to evaluate and sum one block of events",
		ConstLabels: m.constLabels,
		Buckets:     m.blockBuckets,
	})

	m.computations = auto.NewCounterVec(prometheus.CounterOpts(opts("computations_total", "Likelihood computations by execution context and outcome")), []string{"context", "outcome"})
	m.computationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "computation_seconds",
		Help:        "Wall-clock time of one likelihood computation",
		ConstLabels: m.constLabels,
		Buckets:     m.latencyBuckets,
	}, []string{"context"})
	m.lastLikelihood = auto.NewGauge(prometheus.GaugeOpts(opts("last_value", "Most recent successful likelihood value")))
	m.threads = auto.NewGaugeVec(prometheus.GaugeOpts(opts("threads", "Configured degree of parallelism per execution context")), []string{"context"})

	m.offloadBytes = auto.NewCounterVec(prometheus.CounterOpts(opts("offload_transfer_bytes_total", "Bytes copied across the offload boundary")), []string{"direction"})
	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts(opts("offload_queue_depth", "Block tasks waiting in the offload queue")))
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts(opts("offload_queue_capacity", "Capacity of the offload block queue")))
	m.workersRunning = auto.NewGauge(prometheus.GaugeOpts(opts("offload_workers", "Offload region workers currently running")))

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts(opts("system_memory_bytes", "Heap bytes allocated at the last sample")))
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts(opts("system_goroutines", "Goroutines alive at the last sample")))
}

// RecordEventsLoaded adds n loaded events.
func RecordEventsLoaded(n int) { globalManager.eventsLoaded.Add(float64(n)) }

// RecordLoadError counts a failed load of the given kind.
func RecordLoadError(kind string) { globalManager.loadErrors.WithLabelValues(kind).Inc() }

// RecordEvaluations adds n amplitude evaluations.
func RecordEvaluations(n int) { globalManager.evaluations.Add(float64(n)) }

// RecordEvaluationFailure counts one failed amplitude evaluation.
func RecordEvaluationFailure() { globalManager.evaluationFailures.Inc() }

// RecordDegenerateAmplitude counts one zero-magnitude amplitude.
func RecordDegenerateAmplitude() { globalManager.degenerateAmplitudes.Inc() }

// RecordExcludedEvents adds n excluded events.
func RecordExcludedEvents(n int) { globalManager.excludedEvents.Add(float64(n)) }

// RecordBlockLatency observes the time spent on one block.
func RecordBlockLatency(seconds float64) { globalManager.blockLatency.Observe(seconds) }

// RecordComputation counts a computation and observes its latency.
func RecordComputation(context, outcome string, seconds float64) {
	globalManager.computations.WithLabelValues(context, outcome).Inc()
	globalManager.computationLatency.WithLabelValues(context).Observe(seconds)
}

// UpdateLastLikelihood sets the most recent likelihood value.
func UpdateLastLikelihood(v float64) { globalManager.lastLikelihood.Set(v) }

// UpdateThreads sets the degree of parallelism of an execution context.
func UpdateThreads(context string, n int) {
	globalManager.threads.WithLabelValues(context).Set(float64(n))
}

// RecordOffloadTransfer adds bytes copied "in" to or "out" of the offload region.
func RecordOffloadTransfer(direction string, bytes int) {
	globalManager.offloadBytes.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateQueueDepth sets the number of queued block tasks.
func UpdateQueueDepth(n int) { globalManager.queueDepth.Set(float64(n)) }

// UpdateQueueCapacity sets the block queue capacity.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// AddWorkersRunning adjusts the running offload worker gauge by delta.
func AddWorkersRunning(delta int) { globalManager.workersRunning.Add(float64(delta)) }

// UpdateSystemMemoryUsage sets the sampled heap size.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the sampled goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry holding the global metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the global metrics to path in the Prometheus text format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
