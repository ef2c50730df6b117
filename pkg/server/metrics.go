package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks connection and handshake outcomes.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// ConnectionsTotal counts accepted connections.
	ConnectionsTotal prometheus.Counter

	// ActiveConnections tracks connections currently being served.
	ActiveConnections prometheus.Gauge

	// HandshakesTotal counts handshakes by outcome.
	// Outcome values: "status", "login", "version_mismatch", "invalid_packet", "unsupported_state".
	HandshakesTotal *prometheus.CounterVec

	// StatusResponsesTotal counts status documents sent.
	StatusResponsesTotal prometheus.Counter

	// PingsTotal counts pong replies sent.
	PingsTotal prometheus.Counter

	// LoginsTotal counts login attempts by result.
	// Result values: "success_sent", "acknowledged", "unexpected_packet".
	LoginsTotal *prometheus.CounterVec

	// ErrorsTotal counts connections that ended on a read or write error.
	ErrorsTotal prometheus.Counter
}

// NewMetrics creates and registers metrics with the given registerer. If reg
// is nil, metrics are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orbit",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Total number of accepted connections",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orbit",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Current number of connections being served",
		}),
		HandshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orbit",
			Subsystem: "server",
			Name:      "handshakes_total",
			Help:      "Handshakes received, by outcome",
		}, []string{"outcome"}),
		StatusResponsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orbit",
			Subsystem: "server",
			Name:      "status_responses_total",
			Help:      "Status responses sent",
		}),
		PingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orbit",
			Subsystem: "server",
			Name:      "pings_total",
			Help:      "Pong replies sent",
		}),
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orbit",
			Subsystem: "server",
			Name:      "logins_total",
			Help:      "Login sequence steps, by result",
		}, []string{"result"}),
		ErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orbit",
			Subsystem: "server",
			Name:      "connection_errors_total",
			Help:      "Connections closed by a read or write error",
		}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.ConnectionsTotal,
			m.ActiveConnections,
			m.HandshakesTotal,
			m.StatusResponsesTotal,
			m.PingsTotal,
			m.LoginsTotal,
			m.ErrorsTotal,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}

	return m
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

func (m *Metrics) connClosed(failed bool) {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
	if failed {
		m.ErrorsTotal.Inc()
	}
}

func (m *Metrics) handshake(outcome string) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) statusSent() {
	if m == nil {
		return
	}
	m.StatusResponsesTotal.Inc()
}

func (m *Metrics) pongSent() {
	if m == nil {
		return
	}
	m.PingsTotal.Inc()
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}
