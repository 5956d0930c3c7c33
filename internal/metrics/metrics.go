// Package metrics exposes agentwrap's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the server updates. A nil *Metrics is a valid
// no-op receiver so tests can run without one.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	toolCalls prometheus.Counter
	agentRuns prometheus.Counter
}

// New builds the collector set on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwrap",
			Name:      "requests_total",
			Help:      "Chat completion requests by finish reason and mode.",
		}, []string{"finish_reason", "streaming"}),
		toolCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentwrap",
			Name:      "tool_calls_total",
			Help:      "Tool calls recorded across all requests.",
		}),
		agentRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentwrap",
			Name:      "agent_runs_total",
			Help:      "Agent processes launched.",
		}),
	}
}

// Handler serves the Prometheus exposition endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBridgeContexts registers a gauge sampling the live request contexts.
func (m *Metrics) ObserveBridgeContexts(count func() int) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "agentwrap",
		Name:      "bridge_contexts",
		Help:      "Request contexts currently registered on the bridge.",
	}, func() float64 { return float64(count()) })
}

// RecordRequest counts one completed chat completion request.
func (m *Metrics) RecordRequest(finishReason string, streaming bool) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(finishReason, strconv.FormatBool(streaming)).Inc()
}

// RecordToolCall counts one recorded tool call.
func (m *Metrics) RecordToolCall() {
	if m == nil {
		return
	}
	m.toolCalls.Inc()
}

// RecordAgentRun counts one launched agent process.
func (m *Metrics) RecordAgentRun() {
	if m == nil {
		return
	}
	m.agentRuns.Inc()
}
