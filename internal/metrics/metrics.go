// Package metrics exposes relay counters in the Prometheus format.
//
// Every method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomrelay"

// Metrics holds the relay collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	connections       prometheus.Gauge
	rooms             prometheus.Gauge
	frames            prometheus.Counter
	nacks             *prometheus.CounterVec
	terminations      *prometheus.CounterVec
	broadcasts        *prometheus.CounterVec
	deliveries        prometheus.Counter
	deliveryFailures  prometheus.Counter
	handshakeRejected prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open WebSocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms with at least one joined connection.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames handed to the session handler.",
		}),
		nacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nacks_total",
			Help:      "Negative acknowledgements sent, by reason.",
		}, []string{"reason"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Connections closed by the server, by reason.",
		}, []string{"reason"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Room broadcasts, by event.",
		}, []string{"event"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Frames queued to room members.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Room deliveries that could not be queued.",
		}),
		handshakeRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_rejected_total",
			Help:      "WebSocket upgrades refused by the connect rate limit.",
		}),
	}

	m.registry.MustRegister(
		m.connections, m.rooms, m.frames, m.nacks, m.terminations,
		m.broadcasts, m.deliveries, m.deliveryFailures, m.handshakeRejected,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// SetRooms records the number of active rooms.
func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) Frame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

func (m *Metrics) Nack(reason string) {
	if m == nil {
		return
	}
	m.nacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) Terminated(reason string) {
	if m == nil {
		return
	}
	m.terminations.WithLabelValues(reason).Inc()
}

// Broadcast records one fan-out and its per-recipient outcome.
func (m *Metrics) Broadcast(event string, delivered, failed int) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(event).Inc()
	m.deliveries.Add(float64(delivered))
	m.deliveryFailures.Add(float64(failed))
}

func (m *Metrics) HandshakeRejected() {
	if m == nil {
		return
	}
	m.handshakeRejected.Inc()
}

// Connections returns the active connections gauge.
func (m *Metrics) Connections() prometheus.Gauge { return m.connections }

// Rooms returns the active rooms gauge.
func (m *Metrics) Rooms() prometheus.Gauge { return m.rooms }

// Frames returns the inbound frame counter.
func (m *Metrics) Frames() prometheus.Counter { return m.frames }

// Nacks returns the nack counter for reason.
func (m *Metrics) Nacks(reason string) prometheus.Counter { return m.nacks.WithLabelValues(reason) }

// Terminations returns the termination counter for reason.
func (m *Metrics) Terminations(reason string) prometheus.Counter {
	return m.terminations.WithLabelValues(reason)
}

// Broadcasts returns the broadcast counter for event.
func (m *Metrics) Broadcasts(event string) prometheus.Counter {
	return m.broadcasts.WithLabelValues(event)
}

// Deliveries returns the successful delivery counter.
func (m *Metrics) Deliveries() prometheus.Counter { return m.deliveries }

// DeliveryFailures returns the failed delivery counter.
func (m *Metrics) DeliveryFailures() prometheus.Counter { return m.deliveryFailures }

// HandshakesRejected returns the rejected handshake counter.
func (m *Metrics) HandshakesRejected() prometheus.Counter { return m.handshakeRejected }
