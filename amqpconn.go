// Package amqpconn provides the top-level API for managed RabbitMQ
// connections. It re-exports the core types for convenience, so users can
// write:
//
//	t := amqpconn.NewTransport()
//	f, _ := amqpconn.NewFactory(t)
//	f.SetAddresses("rabbit-1:5672,rabbit-2:5672")
//	conn, err := f.CreateConnection()
package amqpconn

import (
	"github.com/miladsoleymani/amqpconn/connection"
	"github.com/miladsoleymani/amqpconn/transport"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Factory            = connection.Factory
	Connection         = connection.Connection
	ConnectionListener = connection.ConnectionListener
	ChannelListener    = connection.ChannelListener
	NameStrategy       = connection.NameStrategy
	EventPublisher     = connection.EventPublisher
	BlockedEvent       = connection.BlockedEvent
	UnblockedEvent     = connection.UnblockedEvent
	DialError          = connection.DialError

	Address  = transport.Address
	Resolver = transport.Resolver
	Executor = transport.Executor
)

// NewTransport creates an underlying client factory with default settings.
func NewTransport(opts ...transport.Option) *transport.Factory {
	return transport.NewFactory(opts...)
}

// NewFactory creates a connection factory over the given transport.
func NewFactory(t *transport.Factory, opts ...connection.Option) (*connection.Factory, error) {
	return connection.NewFactory(t, opts...)
}
