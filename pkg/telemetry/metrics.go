// Package telemetry records session operations, stream events and
// connection changes as Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-go/agents-lite/pkg/core"
)

// Observer receives session telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	// ObserveOperation records a completed public operation. err is nil on
	// success.
	ObserveOperation(op string, duration time.Duration, err error)
	ObserveSessionStart()
	ObserveSessionEnd()
	ObserveChatEvent(progress string)
	ObserveConnectionState(state string)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) ObserveOperation(string, time.Duration, error) {}
func (NopObserver) ObserveSessionStart()                          {}
func (NopObserver) ObserveSessionEnd()                            {}
func (NopObserver) ObserveChatEvent(string)                       {}
func (NopObserver) ObserveConnectionState(string)                 {}

// Metrics holds all Prometheus metrics for agent sessions.
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	SessionsActive       prometheus.Gauge
	ChatEventsTotal      *prometheus.CounterVec
	ConnectionStateTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "agents"
	}

	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of session operations",
		},
		[]string{"op", "status"},
	)

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Session operation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of connected streaming sessions",
		},
	)

	chatEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_events_total",
			Help:      "Total chat progress events received over signaling",
		},
		[]string{"progress"},
	)

	connectionStateTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_state_changes_total",
			Help:      "Total media connection state changes",
		},
		[]string{"state"},
	)

	registry.MustRegister(
		operationsTotal,
		operationDuration,
		sessionsActive,
		chatEventsTotal,
		connectionStateTotal,
	)

	return &Metrics{
		registry:             registry,
		OperationsTotal:      operationsTotal,
		OperationDuration:    operationDuration,
		SessionsActive:       sessionsActive,
		ChatEventsTotal:      chatEventsTotal,
		ConnectionStateTotal: connectionStateTotal,
	}
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation records an operation outcome and latency.
func (m *Metrics) ObserveOperation(op string, duration time.Duration, err error) {
	m.OperationsTotal.WithLabelValues(op, Status(err)).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveSessionStart records a session reaching the connected state.
func (m *Metrics) ObserveSessionStart() {
	m.SessionsActive.Inc()
}

// ObserveSessionEnd records a connected session going away.
func (m *Metrics) ObserveSessionEnd() {
	m.SessionsActive.Dec()
}

// ObserveChatEvent records an inbound chat progress event.
func (m *Metrics) ObserveChatEvent(progress string) {
	m.ChatEventsTotal.WithLabelValues(progress).Inc()
}

// ObserveConnectionState records a media connection state change.
func (m *Metrics) ObserveConnectionState(state string) {
	m.ConnectionStateTotal.WithLabelValues(state).Inc()
}

// Status maps an operation error to a status label: "ok", the core error
// type, "canceled", or "error".
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr.Type != "" {
		return string(coreErr.Type)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
