// Package observability exposes the relay's runtime telemetry as Prometheus metrics.
package observability

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat_relay"

// MonitoringStats is a point-in-time view used by logs and health endpoints.
type MonitoringStats struct {
	ConnectedSessions  int64  `json:"connected_sessions"`
	NamedSessions      int64  `json:"named_sessions"`
	EventsBroadcast    uint64 `json:"events_broadcast"`
	DroppedDeliveries  uint64 `json:"dropped_deliveries"`
	ProtocolViolations uint64 `json:"protocol_violations"`
}

// Metrics holds every collector of the relay plus atomic mirrors for MonitoringStats.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connectedSessions  prometheus.Gauge
	namedSessions      prometheus.Gauge
	eventsBroadcast    *prometheus.CounterVec
	droppedDeliveries  prometheus.Counter
	protocolViolations *prometheus.CounterVec
	rateLimitedFrames  prometheus.Counter
	processRSS         prometheus.Gauge
	processCPU         prometheus.Gauge
	queueLength        *prometheus.GaugeVec
	queueCapacity      *prometheus.GaugeVec

	connected  atomic.Int64
	named      atomic.Int64
	broadcast  atomic.Uint64
	dropped    atomic.Uint64
	violations atomic.Uint64
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NewMetrics creates and registers the relay metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "connected_sessions",
			Help:      "Number of live sessions, named or not.",
		}),
		namedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "named_sessions",
			Help:      "Number of sessions holding a display name.",
		}),
		eventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "events_total",
			Help:      "Total number of events handed to the fanout, by type.",
		}, []string{"type"}),
		droppedDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "dropped_deliveries_total",
			Help:      "Total number of per-recipient deliveries that failed and were dropped.",
		}),
		protocolViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "protocol_violations_total",
			Help:      "Total number of events rejected because of the session state or payload.",
		}, []string{"code"}),
		rateLimitedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "rate_limited_frames_total",
			Help:      "Total number of inbound frames dropped by the per-connection rate limiter.",
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "rss_bytes",
			Help:      "Resident set size of the relay process, sampled by the heartbeat.",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "cpu_percent",
			Help:      "CPU usage of the relay process, sampled by the heartbeat.",
		}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_length",
			Help:      "Number of items waiting in a pipeline queue.",
		}, []string{"queue"}),
		queueCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_capacity",
			Help:      "Capacity of a pipeline queue.",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.connectedSessions, m.namedSessions, m.eventsBroadcast, m.droppedDeliveries,
		m.protocolViolations, m.rateLimitedFrames, m.processRSS, m.processCPU,
		m.queueLength, m.queueCapacity,
	)
	return m
}

func (m *Metrics) SessionConnected() {
	if m == nil {
		return
	}
	m.connectedSessions.Set(float64(m.connected.Add(1)))
}

func (m *Metrics) SessionClosed(wasNamed bool) {
	if m == nil {
		return
	}
	m.connectedSessions.Set(float64(m.connected.Add(-1)))
	if wasNamed {
		m.namedSessions.Set(float64(m.named.Add(-1)))
	}
}

func (m *Metrics) SessionNamed() {
	if m == nil {
		return
	}
	m.namedSessions.Set(float64(m.named.Add(1)))
}

func (m *Metrics) EventBroadcast(eventType string) {
	if m == nil {
		return
	}
	m.broadcast.Add(1)
	m.eventsBroadcast.WithLabelValues(eventType).Inc()
}

func (m *Metrics) DeliveryDropped() {
	if m == nil {
		return
	}
	m.dropped.Add(1)
	m.droppedDeliveries.Inc()
}

func (m *Metrics) ProtocolViolation(code string) {
	if m == nil {
		return
	}
	m.violations.Add(1)
	m.protocolViolations.WithLabelValues(code).Inc()
}

func (m *Metrics) FrameRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedFrames.Inc()
}

func (m *Metrics) ProcessSample(rss uint64, cpuPercent float64) {
	if m == nil {
		return
	}
	m.processRSS.Set(float64(rss))
	m.processCPU.Set(cpuPercent)
}

func (m *Metrics) QueueSample(queue string, length, capacity int) {
	if m == nil {
		return
	}
	m.queueLength.WithLabelValues(queue).Set(float64(length))
	m.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}

func (m *Metrics) GetLatest() MonitoringStats {
	if m == nil {
		return MonitoringStats{}
	}
	return MonitoringStats{
		ConnectedSessions:  m.connected.Load(),
		NamedSessions:      m.named.Load(),
		EventsBroadcast:    m.broadcast.Load(),
		DroppedDeliveries:  m.dropped.Load(),
		ProtocolViolations: m.violations.Load(),
	}
}
