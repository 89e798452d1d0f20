// Package metrics provides Prometheus instrumentation for connection
// lifecycle events, exposed as listener and event-publisher adapters so the
// factory stays unaware of the metrics backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/miladsoleymani/amqpconn/connection"
	"github.com/miladsoleymani/amqpconn/transport"
)

// Metrics holds the connection lifecycle collectors.
type Metrics struct {
	ConnectionsCreated *prometheus.CounterVec
	ConnectionsClosed  *prometheus.CounterVec
	ConnectionFailures *prometheus.CounterVec
	ConnectionsActive  *prometheus.GaugeVec
	ConnectionsBlocked *prometheus.GaugeVec
	ChannelsCreated    *prometheus.CounterVec
}

// New registers the collectors on the default registerer under the given
// namespace ("amqpconn" when empty).
func New(namespace string) *Metrics {
	return NewWith(prometheus.DefaultRegisterer, namespace)
}

// NewWith registers the collectors on reg.
func NewWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "amqpconn"
	}
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_created_total",
				Help:      "Total number of broker connections established",
			},
			[]string{"factory"},
		),
		ConnectionsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_closed_total",
				Help:      "Total number of broker connections closed",
			},
			[]string{"factory"},
		),
		ConnectionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_failures_total",
				Help:      "Total number of failed connection attempts",
			},
			[]string{"factory"},
		),
		ConnectionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_active",
				Help:      "Number of currently open broker connections",
			},
			[]string{"factory"},
		),
		ConnectionsBlocked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_blocked",
				Help:      "Number of connections currently blocked by a broker resource alarm",
			},
			[]string{"factory"},
		),
		ChannelsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channels_created_total",
				Help:      "Total number of channels opened",
			},
			[]string{"factory"},
		),
	}
}

// ConnectionListener returns a connection.ConnectionListener feeding the
// collectors, labeled with the given factory name.
func (m *Metrics) ConnectionListener(factory string) connection.ConnectionListener {
	return &connListener{m: m, factory: factory}
}

type connListener struct {
	m       *Metrics
	factory string
}

func (l *connListener) OnCreate(connection.Connection) {
	l.m.ConnectionsCreated.WithLabelValues(l.factory).Inc()
	l.m.ConnectionsActive.WithLabelValues(l.factory).Inc()
}

func (l *connListener) OnClose(connection.Connection) {
	l.m.ConnectionsClosed.WithLabelValues(l.factory).Inc()
	l.m.ConnectionsActive.WithLabelValues(l.factory).Dec()
}

func (l *connListener) OnFailed(error) {
	l.m.ConnectionFailures.WithLabelValues(l.factory).Inc()
}

// ChannelListener returns a connection.ChannelListener counting opened
// channels.
func (m *Metrics) ChannelListener(factory string) connection.ChannelListener {
	return &chanListener{m: m, factory: factory}
}

type chanListener struct {
	m       *Metrics
	factory string
}

func (l *chanListener) OnCreate(transport.Channel) {
	l.m.ChannelsCreated.WithLabelValues(l.factory).Inc()
}

func (l *chanListener) OnClose(transport.Channel) {}

func (l *chanListener) OnFailed(error) {}

// EventPublisher decorates next so blocked/unblocked events also move the
// blocked gauge. A nil next only updates the gauge.
func (m *Metrics) EventPublisher(factory string, next connection.EventPublisher) connection.EventPublisher {
	return connection.EventPublisherFunc(func(event any) {
		switch event.(type) {
		case connection.BlockedEvent:
			m.ConnectionsBlocked.WithLabelValues(factory).Inc()
		case connection.UnblockedEvent:
			m.ConnectionsBlocked.WithLabelValues(factory).Dec()
		}
		if next != nil {
			next.Publish(event)
		}
	})
}
