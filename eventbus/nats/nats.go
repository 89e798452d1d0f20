// Package nats forwards connection lifecycle events to a NATS subject.
package nats

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/miladsoleymani/amqpconn/eventbus"
)

// Publisher implements connection.EventPublisher by publishing each
// lifecycle event as JSON to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	opts    options

	mu     sync.Mutex
	closed bool
}

// New creates a Publisher connected to url. subject receives every
// forwarded event.
func New(url, subject string, fns ...Option) (*Publisher, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	if subject == "" {
		return nil, fmt.Errorf("amqpconn/eventbus/nats: subject is required")
	}

	nc, err := nats.Connect(url, nats.Name(opts.clientName))
	if err != nil {
		return nil, fmt.Errorf("amqpconn/eventbus/nats: connect to %q: %w", url, err)
	}

	return &Publisher{conn: nc, subject: subject, opts: opts}, nil
}

// Publish forwards one event. Events the bus does not encode and publish
// failures are logged, never escalated: lifecycle observation must not
// disturb the connection path that triggered it.
func (p *Publisher) Publish(event any) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	data, ok := eventbus.Marshal(event)
	if !ok {
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.opts.logger.Error().Err(err).Str("subject", p.subject).
			Msg("failed to publish lifecycle event")
	}
}

// Close drains the NATS connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.conn.Close()
	return nil
}

// Option configures the NATS publisher.
type Option func(*options)

type options struct {
	clientName string
	logger     zerolog.Logger
}

func defaults() options {
	return options{
		clientName: "amqpconn-eventbus",
		logger:     zerolog.Nop(),
	}
}

// WithClientName sets the NATS client name.
func WithClientName(name string) Option {
	return func(o *options) { o.clientName = name }
}

// WithLogger sets the logger for publish failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
