package transport

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DialFunc opens one raw connection to a single broker URL. The default
// implementation delegates to amqp091.DialConfig; tests inject their own.
type DialFunc func(url string, cfg amqp.Config) (Raw, error)

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger used for dial attempts and notification
// dispatch failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// WithDialFunc replaces the low-level dialer. Intended for tests.
func WithDialFunc(dial DialFunc) Option {
	return func(f *Factory) { f.dial = dial }
}

// Factory owns the network identity of a broker client — credentials,
// virtual host, default host/port, heartbeat and connection timeout — and
// opens raw connections with it. It is the Go analog of the underlying
// client's own connection factory object; one Factory backs exactly one
// connection.Factory.
type Factory struct {
	logger zerolog.Logger
	dial   DialFunc

	mu                sync.Mutex
	username          string
	password          string
	host              string
	port              int
	vhost             string
	heartbeat         time.Duration
	connectionTimeout time.Duration
}

// NewFactory creates a Factory with guest credentials against
// localhost:5672, the defaults of the underlying client.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		logger:            zerolog.Nop(),
		dial:              defaultDial,
		username:          "guest",
		password:          "guest",
		host:              "localhost",
		port:              DefaultPort,
		vhost:             "/",
		heartbeat:         10 * time.Second,
		connectionTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func defaultDial(url string, cfg amqp.Config) (Raw, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return &rawConn{conn: conn}, nil
}

func (f *Factory) SetUsername(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = username
}

func (f *Factory) SetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = password
}

func (f *Factory) SetHost(host string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.host = host
}

func (f *Factory) SetPort(port int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.port = port
}

func (f *Factory) SetVirtualHost(vhost string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vhost = vhost
}

// SetHeartbeat sets the requested heartbeat interval negotiated with the
// broker.
func (f *Factory) SetHeartbeat(interval time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeat = interval
}

// SetConnectionTimeout bounds the TCP dial and handshake of each attempt.
func (f *Factory) SetConnectionTimeout(timeout time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectionTimeout = timeout
}

// SetURI applies credentials, host, port and vhost from an AMQP URI. A
// malformed URI is logged and ignored, leaving the current settings intact.
func (f *Factory) SetURI(uri string) {
	parsed, err := amqp.ParseURI(uri)
	if err != nil {
		f.logger.Warn().Err(err).Msg("invalid AMQP URI ignored")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = parsed.Username
	f.password = parsed.Password
	f.host = parsed.Host
	f.port = parsed.Port
	f.vhost = parsed.Vhost
}

func (f *Factory) Username() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.username
}

func (f *Factory) Host() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.host
}

func (f *Factory) Port() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.port
}

func (f *Factory) VirtualHost() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vhost
}

// Open establishes a raw connection named name against the first reachable
// endpoint in addrs, tried in order. An empty addrs falls back to the
// factory's own host and port. The executor, when non-nil, runs the
// connection's notification-dispatch tasks.
func (f *Factory) Open(addrs []Address, name string, ex Executor) (Raw, error) {
	f.mu.Lock()
	username := f.username
	password := f.password
	vhost := f.vhost
	cfg := amqp.Config{
		Vhost:     f.vhost,
		Heartbeat: f.heartbeat,
		Dial:      amqp.DefaultDial(f.connectionTimeout),
	}
	if len(addrs) == 0 {
		host := f.host
		if host == "" {
			host = defaultHostname(f.logger)
		}
		addrs = []Address{{Host: host, Port: f.port}}
	}
	f.mu.Unlock()

	cfg.Properties = amqp.NewConnectionProperties()
	if name != "" {
		cfg.Properties.SetClientConnectionName(name)
	}

	var errs []error
	for _, addr := range addrs {
		uri := amqp.URI{
			Scheme:   "amqp",
			Host:     addr.Host,
			Port:     addr.Port,
			Username: username,
			Password: password,
			Vhost:    vhost,
		}
		raw, err := f.dial(uri.String(), cfg)
		if err != nil {
			f.logger.Debug().Err(err).Stringer("endpoint", addr).Msg("endpoint unreachable")
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		if rc, ok := raw.(*rawConn); ok {
			rc.executor = ex
			rc.logger = f.logger
		}
		return raw, nil
	}
	return nil, errors.Join(errs...)
}

// defaultHostname resolves the local machine name, falling back to
// "localhost" when the OS cannot report one.
func defaultHostname(logger zerolog.Logger) string {
	name, err := os.Hostname()
	if err != nil {
		logger.Warn().Err(err).Msg("could not get host name, using localhost")
		return "localhost"
	}
	return name
}

// rawConn adapts *amqp091.Connection to the Raw interface and fans broker
// blocked/unblocked notifications out to registered listeners.
type rawConn struct {
	conn     *amqp.Connection
	executor Executor
	logger   zerolog.Logger

	mu          sync.Mutex
	blocked     []BlockedListener
	dispatching bool
}

func (r *rawConn) Channel() (Channel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *rawConn) Close() error { return r.conn.Close() }

func (r *rawConn) CloseDeadline(deadline time.Time) error {
	return r.conn.CloseDeadline(deadline)
}

func (r *rawConn) IsClosed() bool { return r.conn.IsClosed() }

func (r *rawConn) AddBlockedListener(l BlockedListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked = append(r.blocked, l)
	if r.dispatching {
		return
	}
	r.dispatching = true
	notifications := r.conn.NotifyBlocked(make(chan amqp.Blocking, 1))
	dispatch := func() {
		for b := range notifications {
			r.mu.Lock()
			listeners := make([]BlockedListener, len(r.blocked))
			copy(listeners, r.blocked)
			r.mu.Unlock()
			for _, l := range listeners {
				if b.Active {
					l.Blocked(b.Reason)
				} else {
					l.Unblocked()
				}
			}
		}
	}
	if r.executor != nil {
		r.executor.Submit(dispatch)
	} else {
		go dispatch()
	}
}
