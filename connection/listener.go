package connection

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/miladsoleymani/amqpconn/transport"
)

// ConnectionListener observes the lifecycle of managed connections.
// Implementations must be comparable (pointer receivers are typical) so they
// can be removed from a composite again.
type ConnectionListener interface {
	// OnCreate is called after a connection has been established and fully
	// decorated.
	OnCreate(conn Connection)

	// OnClose is called when a managed handle is closed.
	OnClose(conn Connection)

	// OnFailed is called when connection establishment fails.
	OnFailed(err error)
}

// ChannelListener observes the lifecycle of channels opened on managed
// connections.
type ChannelListener interface {
	OnCreate(ch transport.Channel)
	OnClose(ch transport.Channel)
	OnFailed(err error)
}

// CompositeConnectionListener fans every lifecycle event out to all
// registered listeners. Broadcasts iterate over a snapshot taken at
// broadcast start, so the registry may be mutated concurrently — even from
// inside a listener callback. A listener that panics is logged and skipped;
// the remaining listeners still receive the event.
type CompositeConnectionListener struct {
	logger zerolog.Logger

	mu        sync.Mutex
	delegates []ConnectionListener
}

// NewCompositeConnectionListener creates an empty composite.
func NewCompositeConnectionListener(logger zerolog.Logger) *CompositeConnectionListener {
	return &CompositeConnectionListener{logger: logger}
}

// Add registers a listener. Listeners are invoked in registration order.
func (c *CompositeConnectionListener) Add(l ConnectionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegates = append(c.delegates, l)
}

// Remove unregisters a listener, reporting whether it was present.
func (c *CompositeConnectionListener) Remove(l ConnectionListener) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.delegates {
		if d == l {
			c.delegates = append(c.delegates[:i], c.delegates[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all listeners.
func (c *CompositeConnectionListener) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegates = nil
}

// Replace swaps the full listener set.
func (c *CompositeConnectionListener) Replace(listeners []ConnectionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegates = make([]ConnectionListener, len(listeners))
	copy(c.delegates, listeners)
}

func (c *CompositeConnectionListener) snapshot() []ConnectionListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConnectionListener, len(c.delegates))
	copy(out, c.delegates)
	return out
}

// OnCreate broadcasts a created connection to all listeners.
func (c *CompositeConnectionListener) OnCreate(conn Connection) {
	for _, l := range c.snapshot() {
		c.invoke(func() { l.OnCreate(conn) })
	}
}

// OnClose broadcasts a closed connection to all listeners.
func (c *CompositeConnectionListener) OnClose(conn Connection) {
	for _, l := range c.snapshot() {
		c.invoke(func() { l.OnClose(conn) })
	}
}

// OnFailed broadcasts an establishment failure to all listeners.
func (c *CompositeConnectionListener) OnFailed(err error) {
	for _, l := range c.snapshot() {
		c.invoke(func() { l.OnFailed(err) })
	}
}

func (c *CompositeConnectionListener) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("connection listener panicked during broadcast")
		}
	}()
	fn()
}

// CompositeChannelListener is the channel-side twin of
// CompositeConnectionListener, with identical registry and broadcast
// semantics.
type CompositeChannelListener struct {
	logger zerolog.Logger

	mu        sync.Mutex
	delegates []ChannelListener
}

// NewCompositeChannelListener creates an empty composite.
func NewCompositeChannelListener(logger zerolog.Logger) *CompositeChannelListener {
	return &CompositeChannelListener{logger: logger}
}

func (c *CompositeChannelListener) Add(l ChannelListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegates = append(c.delegates, l)
}

func (c *CompositeChannelListener) Remove(l ChannelListener) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.delegates {
		if d == l {
			c.delegates = append(c.delegates[:i], c.delegates[i+1:]...)
			return true
		}
	}
	return false
}

func (c *CompositeChannelListener) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegates = nil
}

func (c *CompositeChannelListener) Replace(listeners []ChannelListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegates = make([]ChannelListener, len(listeners))
	copy(c.delegates, listeners)
}

func (c *CompositeChannelListener) snapshot() []ChannelListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChannelListener, len(c.delegates))
	copy(out, c.delegates)
	return out
}

func (c *CompositeChannelListener) OnCreate(ch transport.Channel) {
	for _, l := range c.snapshot() {
		c.invoke(func() { l.OnCreate(ch) })
	}
}

func (c *CompositeChannelListener) OnClose(ch transport.Channel) {
	for _, l := range c.snapshot() {
		c.invoke(func() { l.OnClose(ch) })
	}
}

func (c *CompositeChannelListener) OnFailed(err error) {
	for _, l := range c.snapshot() {
		c.invoke(func() { l.OnFailed(err) })
	}
}

func (c *CompositeChannelListener) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("channel listener panicked during broadcast")
		}
	}()
	fn()
}
