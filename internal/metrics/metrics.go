// Package metrics exposes Prometheus collectors for suite runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "assay"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of finished suite runs",
	}, []string{
		"test_type",
		"status",
	})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "steps_total",
		Help:      "Count of executed steps",
	}, []string{
		"step_type",
		"result",
	})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "step_duration_seconds",
		Help:      "Duration of executed steps",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{
		"step_type",
	})

	loadRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "load_requests_total",
		Help:      "Count of requests issued by load and stress steps",
	}, []string{
		"result",
	})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "active_runs",
		Help:      "Number of suite runs in progress",
	})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "websocket_connections",
		Help:      "Number of open websocket connections",
	})

	wsDroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "websocket_dropped_messages_total",
		Help:      "Messages discarded because a client's send queue was full",
	})
)

func resultLabel(success bool) string {
	if success {
		return "pass"
	}
	return "fail"
}

// RecordRun counts a finished run.
func RecordRun(testType, status string) {
	runsTotal.WithLabelValues(testType, status).Inc()
}

// RecordStep counts a step and observes its duration.
func RecordStep(stepType string, success bool, d time.Duration) {
	stepsTotal.WithLabelValues(stepType, resultLabel(success)).Inc()
	stepDuration.WithLabelValues(stepType).Observe(d.Seconds())
}

// RecordLoadRequests adds the outcome of a load phase.
func RecordLoadRequests(total, errors int64) {
	if errors > 0 {
		loadRequestsTotal.WithLabelValues("error").Add(float64(errors))
	}
	if ok := total - errors; ok > 0 {
		loadRequestsTotal.WithLabelValues("success").Add(float64(ok))
	}
}

// RunStarted increments the active run gauge and returns a func that
// decrements it.
func RunStarted() func() {
	activeRuns.Inc()
	return activeRuns.Dec
}

// ConnectionOpened increments the websocket gauge and returns a func that
// decrements it.
func ConnectionOpened() func() {
	wsConnections.Inc()
	return wsConnections.Dec
}

// RecordDroppedMessage counts a message that could not be queued for a client.
func RecordDroppedMessage() {
	wsDroppedMessages.Inc()
}
