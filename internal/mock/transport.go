// Package mock provides test doubles for the transport and connection
// layers: a scriptable dialer, raw connections with recovery and
// flow-control triggers, and recording listeners.
package mock

import (
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/miladsoleymani/amqpconn/transport"
)

// Channel is a transport.Channel double.
type Channel struct {
	mu       sync.Mutex
	closed   bool
	CloseErr error
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.CloseErr
}

func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RawConnection is a transport.Raw double without recovery support.
type RawConnection struct {
	CloseErr   error
	ChannelErr error

	mu        sync.Mutex
	closed    bool
	deadlines []time.Time
	channels  []*Channel
	blocked   []transport.BlockedListener
}

func (r *RawConnection) Channel() (transport.Channel, error) {
	if r.ChannelErr != nil {
		return nil, r.ChannelErr
	}
	ch := &Channel{}
	r.mu.Lock()
	r.channels = append(r.channels, ch)
	r.mu.Unlock()
	return ch, nil
}

func (r *RawConnection) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.CloseErr
}

func (r *RawConnection) CloseDeadline(deadline time.Time) error {
	r.mu.Lock()
	r.deadlines = append(r.deadlines, deadline)
	r.mu.Unlock()
	return r.Close()
}

func (r *RawConnection) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *RawConnection) AddBlockedListener(l transport.BlockedListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked = append(r.blocked, l)
}

// TriggerBlocked simulates a broker flow-control notification.
func (r *RawConnection) TriggerBlocked(reason string) {
	for _, l := range r.blockedListeners() {
		l.Blocked(reason)
	}
}

// TriggerUnblocked simulates the flow-control alarm clearing.
func (r *RawConnection) TriggerUnblocked() {
	for _, l := range r.blockedListeners() {
		l.Unblocked()
	}
}

func (r *RawConnection) blockedListeners() []transport.BlockedListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transport.BlockedListener, len(r.blocked))
	copy(out, r.blocked)
	return out
}

// BlockedListenerCount reports how many flow-control listeners are attached.
func (r *RawConnection) BlockedListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blocked)
}

// Deadlines returns the deadlines passed to CloseDeadline.
func (r *RawConnection) Deadlines() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.deadlines))
	copy(out, r.deadlines)
	return out
}

// RecoveringConnection is a transport.Raw double that also implements
// transport.Recoverable.
type RecoveringConnection struct {
	RawConnection

	recoveryMu sync.Mutex
	recovery   []transport.RecoveryListener
}

func (r *RecoveringConnection) AddRecoveryListener(l transport.RecoveryListener) {
	r.recoveryMu.Lock()
	defer r.recoveryMu.Unlock()
	r.recovery = append(r.recovery, l)
}

// RecoveryListenerCount reports how many recovery listeners are attached.
func (r *RecoveringConnection) RecoveryListenerCount() int {
	r.recoveryMu.Lock()
	defer r.recoveryMu.Unlock()
	return len(r.recovery)
}

// TriggerRecoveryStarted simulates the underlying client beginning an
// automatic reconnect.
func (r *RecoveringConnection) TriggerRecoveryStarted() {
	for _, l := range r.recoveryListeners() {
		l.RecoveryStarted(r)
	}
}

// TriggerRecoveryCompleted simulates a finished automatic reconnect.
func (r *RecoveringConnection) TriggerRecoveryCompleted() {
	for _, l := range r.recoveryListeners() {
		l.RecoveryCompleted(r)
	}
}

func (r *RecoveringConnection) recoveryListeners() []transport.RecoveryListener {
	r.recoveryMu.Lock()
	defer r.recoveryMu.Unlock()
	out := make([]transport.RecoveryListener, len(r.recovery))
	copy(out, r.recovery)
	return out
}

// Dialer records dial attempts and scripts their outcomes. Next, when set,
// is returned for the following attempt; otherwise each attempt gets a
// fresh RawConnection. Err fails every attempt.
type Dialer struct {
	Next transport.Raw
	Err  error

	mu     sync.Mutex
	urls   []string
	names  []string
	dialed []transport.Raw
}

// Dial is a transport.DialFunc.
func (d *Dialer) Dial(url string, cfg amqp.Config) (transport.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if name, ok := cfg.Properties["connection_name"].(string); ok {
		d.names = append(d.names, name)
	} else {
		d.names = append(d.names, "")
	}
	if d.Err != nil {
		return nil, d.Err
	}
	raw := d.Next
	if raw == nil {
		raw = &RawConnection{}
	}
	d.dialed = append(d.dialed, raw)
	return raw, nil
}

// URLs returns the broker URLs dialed, in order.
func (d *Dialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.urls))
	copy(out, d.urls)
	return out
}

// Names returns the client connection names dialed with, in order.
func (d *Dialer) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Dialed returns the raw connections handed out.
func (d *Dialer) Dialed() []transport.Raw {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]transport.Raw, len(d.dialed))
	copy(out, d.dialed)
	return out
}
