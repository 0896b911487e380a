// Package metrics holds the prometheus collectors for the bridge.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "openapi_bridge"

// Collector owns a private registry so tests and multiple bridges never
// collide on the global default registerer.
type Collector struct {
	registry *prometheus.Registry

	toolCalls       *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	hookFailures    *prometheus.CounterVec
	specSource      *prometheus.GaugeVec
	compileErrors   prometheus.Counter
	toolsRegistered prometheus.Gauge
}

// NewCollector creates and registers every bridge metric.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)
	c.backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Outbound backend requests by method and status",
		},
		[]string{"method", "status"},
	)
	c.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Outbound backend request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	c.hookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sanitization_hook_failures_total",
			Help:      "Outbound hook failures; the request was sent unmodified",
		},
		[]string{"hook"},
	)
	c.specSource = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spec_source_tier",
			Help:      "1 for the tier the API description was loaded from",
		},
		[]string{"origin"},
	)
	c.compileErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compile_errors_total",
		Help:      "Operations excluded from the registry",
	})
	c.toolsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tools_registered",
		Help:      "Number of compiled tools",
	})

	reg.MustRegister(
		c.toolCalls,
		c.backendRequests,
		c.backendDuration,
		c.hookFailures,
		c.specSource,
		c.compileErrors,
		c.toolsRegistered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ToolInvoked counts one tool call; outcome is "ok" or a failure kind.
func (c *Collector) ToolInvoked(tool, outcome string) {
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// BackendRequest records one outbound request. status 0 means no response.
func (c *Collector) BackendRequest(method string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.backendRequests.WithLabelValues(method, label).Inc()
	c.backendDuration.WithLabelValues(method).Observe(d.Seconds())
}

// HookFailed counts a recovered outbound hook failure.
func (c *Collector) HookFailed(hook string) {
	c.hookFailures.WithLabelValues(hook).Inc()
}

// SpecLoaded marks the tier the description came from.
func (c *Collector) SpecLoaded(origin string) {
	c.specSource.Reset()
	c.specSource.WithLabelValues(origin).Set(1)
}

// CompileErrors adds n excluded operations.
func (c *Collector) CompileErrors(n int) {
	c.compileErrors.Add(float64(n))
}

// ToolsRegistered sets the compiled tool count.
func (c *Collector) ToolsRegistered(n int) {
	c.toolsRegistered.Set(float64(n))
}
