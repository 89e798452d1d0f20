package connection

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/miladsoleymani/amqpconn/transport"
)

// Connection is a managed handle over one established broker connection.
// Every successful CreateConnection call yields an independent handle;
// closing one never affects another.
type Connection interface {
	// Channel opens a new channel on the connection and broadcasts it to
	// the factory's channel listeners.
	Channel() (transport.Channel, error)

	// Close closes the connection, waiting up to the configured close
	// timeout for the broker's close-ok. Closing an already-closed handle
	// returns ErrClosed.
	Close() error

	IsOpen() bool

	// Name is the name the connection was established under.
	Name() string

	// Raw exposes the underlying transport connection.
	Raw() transport.Raw
}

type handle struct {
	name         string
	raw          transport.Raw
	closeTimeout time.Duration
	logger       zerolog.Logger
	channels     *CompositeChannelListener
	onClose      func(Connection)

	mu     sync.Mutex
	closed bool
}

func newHandle(name string, raw transport.Raw, closeTimeout time.Duration,
	logger zerolog.Logger, channels *CompositeChannelListener, onClose func(Connection)) *handle {

	return &handle{
		name:         name,
		raw:          raw,
		closeTimeout: closeTimeout,
		logger:       logger,
		channels:     channels,
		onClose:      onClose,
	}
}

func (h *handle) Name() string { return h.name }

func (h *handle) Raw() transport.Raw { return h.raw }

func (h *handle) String() string { return h.name }

func (h *handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed && !h.raw.IsClosed()
}

func (h *handle) Channel() (transport.Channel, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.mu.Unlock()

	ch, err := h.raw.Channel()
	if err != nil {
		h.channels.OnFailed(err)
		return nil, err
	}
	h.channels.OnCreate(ch)
	return ch, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.closed = true
	h.mu.Unlock()

	var err error
	if h.closeTimeout > 0 {
		err = h.raw.CloseDeadline(time.Now().Add(h.closeTimeout))
	} else {
		err = h.raw.Close()
	}
	if h.onClose != nil {
		h.onClose(h)
	}
	h.logger.Debug().Str("connection", h.name).Msg("closed connection")
	return err
}
