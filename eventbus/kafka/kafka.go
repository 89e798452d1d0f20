// Package kafka forwards connection lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/amqpconn/eventbus"
)

// Publisher implements connection.EventPublisher by writing each lifecycle
// event as JSON to a Kafka topic, keyed by connection name.
type Publisher struct {
	writer *kafka.Writer
	opts   options

	mu     sync.Mutex
	closed bool
}

// New creates a Publisher writing to topic on the given brokers.
func New(brokers []string, topic string, fns ...Option) (*Publisher, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("amqpconn/eventbus/kafka: at least one broker address is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("amqpconn/eventbus/kafka: topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: w, opts: opts}, nil
}

// Publish forwards one event. Events the bus does not encode and write
// failures are logged, never escalated.
func (p *Publisher) Publish(event any) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	env, ok := eventbus.Encode(event)
	if !ok {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.writeTimeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Connection),
		Value: data,
	})
	if err != nil {
		p.opts.logger.Error().Err(err).Str("topic", p.writer.Topic).
			Msg("failed to publish lifecycle event")
	}
}

// Close flushes and closes the Kafka writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// Option configures the Kafka publisher.
type Option func(*options)

type options struct {
	writeTimeout time.Duration
	logger       zerolog.Logger
}

func defaults() options {
	return options{
		writeTimeout: 10 * time.Second,
		logger:       zerolog.Nop(),
	}
}

// WithWriteTimeout bounds each event write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithLogger sets the logger for write failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
