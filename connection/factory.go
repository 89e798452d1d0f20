// Package connection manages the lifecycle of named broker connections:
// establishment against one or more candidate endpoints, listener fan-out,
// recovery interception, flow-control events, and configuration cascade to
// an optional publisher sub-factory.
package connection

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/miladsoleymani/amqpconn/transport"
)

// DefaultCloseTimeout bounds how long a closing connection waits for the
// broker's close-ok.
const DefaultCloseTimeout = 30 * time.Second

// Option configures a Factory at construction time.
type Option func(*Factory)

// WithLogger sets the factory logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// WithName sets the factory name. Equivalent to calling SetName, so a
// publisher factory linked by an earlier option sees the suffixed name.
func WithName(name string) Option {
	return func(f *Factory) { f.SetName(name) }
}

// WithPublisherFactory links a publisher sub-factory. Link before applying
// configuration: values set earlier are not replayed onto the publisher.
func WithPublisherFactory(pub *Factory) Option {
	return func(f *Factory) { f.publisher = pub }
}

// Factory creates managed broker connections. All configuration setters may
// be called at any time; changes only affect connections created afterwards.
// Setters whose field exists on the optional publisher sub-factory cascade
// the value to it immediately after applying it locally.
type Factory struct {
	transport *transport.Factory
	logger    zerolog.Logger
	identity  string
	counter   atomic.Int64

	connListeners *CompositeConnectionListener
	chanListeners *CompositeChannelListener

	mu               sync.Mutex
	name             string
	addresses        []transport.Address
	shuffleAddresses bool
	resolver         transport.Resolver
	executor         transport.Executor
	closeTimeout     time.Duration
	nameStrategy     NameStrategy
	recoveryListener transport.RecoveryListener
	eventPublisher   EventPublisher
	publisher        *Factory

	stopped atomic.Bool
}

// NewFactory creates a Factory over the given transport factory, which owns
// the network identity (credentials, virtual host, host, port) of the
// connections it will open.
func NewFactory(t *transport.Factory, opts ...Option) (*Factory, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	f := &Factory{
		transport:    t,
		logger:       zerolog.Nop(),
		identity:     uuid.NewString()[:8],
		closeTimeout: DefaultCloseTimeout,
		nameStrategy: DefaultNameStrategy,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.connListeners = NewCompositeConnectionListener(f.logger)
	f.chanListeners = NewCompositeChannelListener(f.logger)
	f.recoveryListener = loggingRecoveryListener{logger: f.logger}
	return f, nil
}

// Transport returns the underlying transport factory.
func (f *Factory) Transport() *transport.Factory { return f.transport }

// Name returns the configured factory name.
func (f *Factory) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

func (f *Factory) String() string {
	if name := f.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("%s#%s", defaultLabel, f.identity)
}

// nextDefaultName backs DefaultNameStrategy.
func (f *Factory) nextDefaultName() string {
	label := f.Name()
	if label == "" {
		label = defaultLabel
	}
	return fmt.Sprintf("%s#%s:%d", label, f.identity, f.counter.Add(1)-1)
}

// SetPublisherFactory links a publisher sub-factory. Configuration applied
// before linking is not replayed; link first, configure after.
func (f *Factory) SetPublisherFactory(pub *Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publisher = pub
}

// HasPublisherFactory reports whether a publisher sub-factory is linked.
func (f *Factory) HasPublisherFactory() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publisher != nil
}

// PublisherFactory returns the linked publisher sub-factory, or nil.
func (f *Factory) PublisherFactory() *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publisher
}

// Pass-through settings below configure the local transport factory only.
// The publisher sub-factory owns an independent transport configured
// separately by the caller, so network identity never cascades.

func (f *Factory) SetUsername(username string) { f.transport.SetUsername(username) }
func (f *Factory) SetPassword(password string) { f.transport.SetPassword(password) }
func (f *Factory) SetHost(host string)         { f.transport.SetHost(host) }
func (f *Factory) SetPort(port int)            { f.transport.SetPort(port) }
func (f *Factory) SetVirtualHost(vhost string) { f.transport.SetVirtualHost(vhost) }

// SetHeartbeat sets the requested heartbeat interval on the transport.
func (f *Factory) SetHeartbeat(interval time.Duration) { f.transport.SetHeartbeat(interval) }

// SetConnectionTimeout bounds dial and handshake of each attempt.
func (f *Factory) SetConnectionTimeout(timeout time.Duration) {
	f.transport.SetConnectionTimeout(timeout)
}

// SetURI applies credentials, host, port and vhost from an AMQP URI; a
// malformed URI is logged and ignored.
func (f *Factory) SetURI(uri string) { f.transport.SetURI(uri) }

func (f *Factory) Username() string    { return f.transport.Username() }
func (f *Factory) Host() string        { return f.transport.Host() }
func (f *Factory) Port() int           { return f.transport.Port() }
func (f *Factory) VirtualHost() string { return f.transport.VirtualHost() }

// SetAddresses parses a comma-separated "host[:port]" list of candidate
// endpoints, overriding host/port when non-empty. Input with no usable
// endpoint unsets the list with an advisory instead of failing; connections
// then fall back to the host and port settings.
func (f *Factory) SetAddresses(spec string) {
	addrs := transport.ParseAddresses(spec, f.transport.Port())
	if len(addrs) == 0 {
		f.logger.Info().Msg("SetAddresses called with an empty value, using the host and port " +
			"or resolver settings for connections")
		f.mu.Lock()
		f.addresses = nil
		f.mu.Unlock()
		return
	}
	f.mu.Lock()
	f.addresses = addrs
	pub := f.publisher
	f.mu.Unlock()
	if pub != nil {
		pub.SetAddresses(spec)
	}
}

// Addresses returns a copy of the configured endpoint list.
func (f *Factory) Addresses() []transport.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Address, len(f.addresses))
	copy(out, f.addresses)
	return out
}

// SetShuffleAddresses enables trying the configured endpoints in random
// order on each connection attempt. The configured order is never mutated.
func (f *Factory) SetShuffleAddresses(shuffle bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shuffleAddresses = shuffle
}

// SetAddressResolver sets an endpoint resolver consulted at connect time. A
// resolver overrides both the address list and host/port.
func (f *Factory) SetAddressResolver(r transport.Resolver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolver = r
}

// SetExecutor supplies an executor passed through to the transport for
// notification dispatch on new connections. Nil is a configuration error.
func (f *Factory) SetExecutor(ex transport.Executor) error {
	if ex == nil {
		return ErrNilExecutor
	}
	f.mu.Lock()
	f.executor = ex
	pub := f.publisher
	f.mu.Unlock()
	if pub != nil {
		return pub.SetExecutor(ex)
	}
	return nil
}

// SetCloseTimeout sets how long closing connections wait for the broker's
// close-ok. Applies to connections created afterwards.
func (f *Factory) SetCloseTimeout(timeout time.Duration) {
	f.mu.Lock()
	f.closeTimeout = timeout
	pub := f.publisher
	f.mu.Unlock()
	if pub != nil {
		pub.SetCloseTimeout(timeout)
	}
}

// CloseTimeout returns the configured close timeout.
func (f *Factory) CloseTimeout() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeTimeout
}

// SetNameStrategy replaces the connection naming strategy. The publisher
// sub-factory receives the same strategy wrapped with the publisher suffix.
func (f *Factory) SetNameStrategy(s NameStrategy) error {
	if s == nil {
		return ErrNilNameStrategy
	}
	f.mu.Lock()
	f.nameStrategy = s
	pub := f.publisher
	f.mu.Unlock()
	if pub != nil {
		return pub.SetNameStrategy(PublisherNameStrategy(s))
	}
	return nil
}

// SetName names the factory; the default naming strategy includes it in
// connection names. The publisher sub-factory is named with the publisher
// suffix appended.
func (f *Factory) SetName(name string) {
	f.mu.Lock()
	f.name = name
	pub := f.publisher
	f.mu.Unlock()
	if pub != nil {
		pub.SetName(name + PublisherSuffix)
	}
}

// SetRecoveryListener replaces the user recovery listener attached to every
// recoverable connection created afterwards.
func (f *Factory) SetRecoveryListener(l transport.RecoveryListener) {
	f.mu.Lock()
	f.recoveryListener = l
	pub := f.publisher
	f.mu.Unlock()
	if pub != nil {
		pub.SetRecoveryListener(l)
	}
}

// SetEventPublisher sets the collaborator receiving blocked/unblocked
// events. The flow-control bridge is only attached to connections created
// while a publisher is configured.
func (f *Factory) SetEventPublisher(p EventPublisher) {
	f.mu.Lock()
	f.eventPublisher = p
	pub := f.publisher
	f.mu.Unlock()
	if pub != nil {
		pub.SetEventPublisher(p)
	}
}

// ConnectionListeners returns the factory's composite connection listener.
func (f *Factory) ConnectionListeners() *CompositeConnectionListener {
	return f.connListeners
}

// ChannelListeners returns the factory's composite channel listener.
func (f *Factory) ChannelListeners() *CompositeChannelListener {
	return f.chanListeners
}

// AddConnectionListener registers a lifecycle listener.
func (f *Factory) AddConnectionListener(l ConnectionListener) {
	f.connListeners.Add(l)
	if pub := f.PublisherFactory(); pub != nil {
		pub.AddConnectionListener(l)
	}
}

// RemoveConnectionListener unregisters a listener, reporting whether it was
// registered locally.
func (f *Factory) RemoveConnectionListener(l ConnectionListener) bool {
	removed := f.connListeners.Remove(l)
	if pub := f.PublisherFactory(); pub != nil {
		pub.RemoveConnectionListener(l)
	}
	return removed
}

// ClearConnectionListeners removes all connection listeners.
func (f *Factory) ClearConnectionListeners() {
	f.connListeners.Clear()
	if pub := f.PublisherFactory(); pub != nil {
		pub.ClearConnectionListeners()
	}
}

// SetConnectionListeners replaces the full connection listener set.
func (f *Factory) SetConnectionListeners(listeners []ConnectionListener) {
	f.connListeners.Replace(listeners)
	if pub := f.PublisherFactory(); pub != nil {
		pub.SetConnectionListeners(listeners)
	}
}

// AddChannelListener registers a channel lifecycle listener.
func (f *Factory) AddChannelListener(l ChannelListener) {
	f.chanListeners.Add(l)
	if pub := f.PublisherFactory(); pub != nil {
		pub.AddChannelListener(l)
	}
}

// SetChannelListeners replaces the full channel listener set. Unlike
// AddChannelListener this does not cascade.
func (f *Factory) SetChannelListeners(listeners []ChannelListener) {
	f.chanListeners.Replace(listeners)
}

// CreateConnection establishes one new managed connection: a name is
// obtained from the naming strategy, exactly one establishment strategy runs
// (resolver, then address list, then host/port), the recovery interceptor
// and flow-control bridge are attached, and the handle is broadcast to the
// connection listeners. On failure the listeners are notified and a
// *DialError is returned; there is no internal retry and no pooling.
func (f *Factory) CreateConnection() (Connection, error) {
	f.mu.Lock()
	nameStrategy := f.nameStrategy
	resolver := f.resolver
	addresses := f.addresses
	shuffle := f.shuffleAddresses
	executor := f.executor
	closeTimeout := f.closeTimeout
	recoveryListener := f.recoveryListener
	eventPublisher := f.eventPublisher
	f.mu.Unlock()

	name := nameStrategy(f)

	raw, err := f.connect(name, resolver, addresses, shuffle, executor)
	if err != nil {
		f.connListeners.OnFailed(err)
		return nil, &DialError{Name: name, Err: err}
	}

	conn := newHandle(name, raw, closeTimeout, f.logger, f.chanListeners, f.connListeners.OnClose)

	if rec, ok := raw.(transport.Recoverable); ok {
		rec.AddRecoveryListener(forcedCloser{conn: conn, logger: f.logger})
		if recoveryListener != nil {
			rec.AddRecoveryListener(recoveryListener)
		}
	}
	if eventPublisher != nil {
		raw.AddBlockedListener(blockedBridge{conn: conn, publisher: eventPublisher})
	}

	f.logger.Info().Str("connection", name).Msg("created new connection")
	f.connListeners.OnCreate(conn)
	return conn, nil
}

func (f *Factory) connect(name string, resolver transport.Resolver,
	addresses []transport.Address, shuffle bool, executor transport.Executor) (transport.Raw, error) {

	if resolver != nil {
		addrs, err := resolver.Resolve()
		if err != nil {
			return nil, err
		}
		f.logger.Info().Str("connection", name).Msg("attempting to connect with resolver")
		return f.transport.Open(addrs, name, executor)
	}
	if len(addresses) > 0 {
		toConnect := addresses
		if shuffle && len(toConnect) > 1 {
			shuffled := make([]transport.Address, len(toConnect))
			copy(shuffled, toConnect)
			rand.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			toConnect = shuffled
		}
		f.logger.Info().Str("connection", name).
			Stringers("endpoints", stringers(toConnect)).Msg("attempting to connect")
		return f.transport.Open(toConnect, name, executor)
	}
	f.logger.Info().Str("connection", name).
		Str("host", f.transport.Host()).Int("port", f.transport.Port()).
		Msg("attempting to connect")
	return f.transport.Open(nil, name, executor)
}

func stringers(addrs []transport.Address) []fmt.Stringer {
	out := make([]fmt.Stringer, len(addrs))
	for i, a := range addrs {
		out[i] = a
	}
	return out
}

// Stop records that the owning application is shutting down and cascades to
// the publisher sub-factory. It gates how callers interpret subsequent
// connection failures; it does not block new connection attempts.
func (f *Factory) Stop() {
	f.stopped.Store(true)
	if pub := f.PublisherFactory(); pub != nil {
		pub.Stop()
	}
}

// Stopped reports whether Stop has been called.
func (f *Factory) Stopped() bool { return f.stopped.Load() }

// Destroy tears the factory down, publisher sub-factory first. It is
// idempotent; connections already handed out are unaffected.
func (f *Factory) Destroy() {
	if pub := f.PublisherFactory(); pub != nil {
		pub.Destroy()
	}
}
