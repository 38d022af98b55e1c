// Package metrics provides the centralized Prometheus registry for the
// decision pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pickwise",
		Name:      "decisions_total",
		Help:      "Total number of decisions recorded, by sport and pick state",
	}, []string{"sport", "pick_state"})
	StructuralFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pickwise",
		Name:      "structural_failures_total",
		Help:      "Total number of decision requests rejected before simulation",
	}, []string{"sport", "reason"})
	SimulationFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pickwise",
		Name:      "simulation_failures_total",
		Help:      "Total number of simulation runs that failed or timed out",
	})
	ClampTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pickwise",
		Name:      "clamp_triggers_total",
		Help:      "Total number of reality check clamps applied, by sport",
	}, []string{"sport"})
	CalibrationPenaltiesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pickwise",
		Name:      "calibration_penalties_total",
		Help:      "Total number of calibration layer activations, by layer",
	}, []string{"layer"})
	GradingRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pickwise",
		Name:      "grading_records_total",
		Help:      "Total number of contests graded, by sport and miss severity",
	}, []string{"sport", "severity"})
	DecisionRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pickwise",
		Name:      "decision_retries_total",
		Help:      "Total number of pending decisions re-run by the retry sweep",
	})
)

// Gauge metrics
var (
	SnapshotAgeHours = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pickwise",
		Name:      "snapshot_age_hours",
		Help:      "Age of the active calibration snapshot per sport",
	}, []string{"sport"})
	SnapshotBootstrapMode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pickwise",
		Name:      "snapshot_bootstrap_mode",
		Help:      "Whether the active snapshot is in bootstrap mode (1) or not (0)",
	}, []string{"sport"})
	LiveFeedConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pickwise",
		Name:      "live_feed_connected",
		Help:      "Whether the live score stream is connected (1) or not (0)",
	})
)

// Histogram metrics
var (
	SimulationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pickwise",
		Name:      "simulation_duration_seconds",
		Help:      "Duration of simulation runs in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	DecisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pickwise",
		Name:      "decision_duration_seconds",
		Help:      "End-to-end duration of decision requests in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	SnapshotBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pickwise",
		Name:      "snapshot_build_duration_seconds",
		Help:      "Duration of feedback snapshot builds in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(DecisionsTotal)
		registry.MustRegister(StructuralFailuresTotal)
		registry.MustRegister(SimulationFailuresTotal)
		registry.MustRegister(ClampTriggersTotal)
		registry.MustRegister(CalibrationPenaltiesTotal)
		registry.MustRegister(GradingRecordsTotal)
		registry.MustRegister(DecisionRetriesTotal)

		registry.MustRegister(SnapshotAgeHours)
		registry.MustRegister(SnapshotBootstrapMode)
		registry.MustRegister(LiveFeedConnected)

		registry.MustRegister(SimulationDuration)
		registry.MustRegister(DecisionDuration)
		registry.MustRegister(SnapshotBuildDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordDecision records a terminal decision by sport and state.
func RecordDecision(sport, pickState string) {
	DecisionsTotal.WithLabelValues(sport, pickState).Inc()
}

// RecordStructuralFailure records a pre-simulation rejection.
func RecordStructuralFailure(sport, reason string) {
	StructuralFailuresTotal.WithLabelValues(sport, reason).Inc()
}

// RecordSimulationFailure records a failed or timed-out simulation.
func RecordSimulationFailure() {
	SimulationFailuresTotal.Inc()
}

// RecordClampTrigger records a reality check clamp.
func RecordClampTrigger(sport string) {
	ClampTriggersTotal.WithLabelValues(sport).Inc()
}

// RecordCalibrationPenalty records one calibration layer firing.
func RecordCalibrationPenalty(layer string) {
	CalibrationPenaltiesTotal.WithLabelValues(layer).Inc()
}

// RecordGrading records a graded contest.
func RecordGrading(sport, severity string) {
	GradingRecordsTotal.WithLabelValues(sport, severity).Inc()
}

// UpdateSnapshotAge updates the active snapshot age gauge for a sport.
func UpdateSnapshotAge(sport string, hours float64, bootstrap bool) {
	SnapshotAgeHours.WithLabelValues(sport).Set(hours)
	mode := 0.0
	if bootstrap {
		mode = 1.0
	}
	SnapshotBootstrapMode.WithLabelValues(sport).Set(mode)
}

// UpdateLiveFeedConnected updates the live feed connection gauge.
func UpdateLiveFeedConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	LiveFeedConnected.Set(value)
}
