package mock

import (
	"sync"

	"github.com/miladsoleymani/amqpconn/connection"
	"github.com/miladsoleymani/amqpconn/transport"
)

// ConnectionListener records the lifecycle events it receives. Optional
// hooks run before recording, so tests can panic or mutate the registry
// mid-broadcast.
type ConnectionListener struct {
	OnCreateHook func(conn connection.Connection)
	OnCloseHook  func(conn connection.Connection)

	mu      sync.Mutex
	created []connection.Connection
	closed  []connection.Connection
	failed  []error
}

func (l *ConnectionListener) OnCreate(conn connection.Connection) {
	if l.OnCreateHook != nil {
		l.OnCreateHook(conn)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, conn)
}

func (l *ConnectionListener) OnClose(conn connection.Connection) {
	if l.OnCloseHook != nil {
		l.OnCloseHook(conn)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, conn)
}

func (l *ConnectionListener) OnFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, err)
}

func (l *ConnectionListener) Created() []connection.Connection {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]connection.Connection, len(l.created))
	copy(out, l.created)
	return out
}

func (l *ConnectionListener) Closed() []connection.Connection {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]connection.Connection, len(l.closed))
	copy(out, l.closed)
	return out
}

func (l *ConnectionListener) Failed() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]error, len(l.failed))
	copy(out, l.failed)
	return out
}

// ChannelListener records channel lifecycle events.
type ChannelListener struct {
	mu      sync.Mutex
	created []transport.Channel
	closed  []transport.Channel
	failed  []error
}

func (l *ChannelListener) OnCreate(ch transport.Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, ch)
}

func (l *ChannelListener) OnClose(ch transport.Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, ch)
}

func (l *ChannelListener) OnFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, err)
}

func (l *ChannelListener) Created() []transport.Channel {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]transport.Channel, len(l.created))
	copy(out, l.created)
	return out
}

// RecoveryListener records recovery notifications.
type RecoveryListener struct {
	mu        sync.Mutex
	started   int
	completed int
}

func (l *RecoveryListener) RecoveryStarted(transport.Recoverable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started++
}

func (l *RecoveryListener) RecoveryCompleted(transport.Recoverable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed++
}

func (l *RecoveryListener) Started() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

func (l *RecoveryListener) Completed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}

// EventPublisher records published events.
type EventPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *EventPublisher) Publish(event any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *EventPublisher) Events() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.events))
	copy(out, p.events)
	return out
}

// Executor runs submitted tasks synchronously and counts them.
type Executor struct {
	mu        sync.Mutex
	submitted int
}

func (e *Executor) Submit(task func()) {
	e.mu.Lock()
	e.submitted++
	e.mu.Unlock()
	task()
}

func (e *Executor) Submitted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitted
}
