package connection_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/amqpconn/connection"
	"github.com/miladsoleymani/amqpconn/internal/mock"
	"github.com/miladsoleymani/amqpconn/transport"
)

func newTestFactory(t *testing.T, dialer *mock.Dialer, opts ...connection.Option) *connection.Factory {
	t.Helper()
	f, err := connection.NewFactory(
		transport.NewFactory(transport.WithDialFunc(dialer.Dial)), opts...)
	require.NoError(t, err)
	return f
}

func TestNewFactory_NilTransport(t *testing.T) {
	_, err := connection.NewFactory(nil)
	assert.ErrorIs(t, err, connection.ErrNilTransport)
}

func TestCreateConnection(t *testing.T) {
	dialer := &mock.Dialer{}
	f := newTestFactory(t, dialer)

	listener := &mock.ConnectionListener{}
	f.AddConnectionListener(listener)

	conn, err := f.CreateConnection()
	require.NoError(t, err)
	require.True(t, conn.IsOpen())

	require.Len(t, listener.Created(), 1)
	assert.Same(t, conn, listener.Created()[0])

	names := dialer.Names()
	require.Len(t, names, 1)
	assert.Equal(t, conn.Name(), names[0])
	assert.True(t, strings.HasSuffix(names[0], ":0"))
}

func TestCreateConnection_NamesUnique(t *testing.T) {
	dialer := &mock.Dialer{}
	f := newTestFactory(t, dialer)

	for i := 0; i < 10; i++ {
		_, err := f.CreateConnection()
		require.NoError(t, err)
	}

	seen := make(map[string]struct{})
	for _, name := range dialer.Names() {
		_, dup := seen[name]
		require.False(t, dup, "duplicate connection name %q", name)
		seen[name] = struct{}{}
	}
}

func TestCreateConnection_Failure(t *testing.T) {
	refused := errors.New("connection refused")
	dialer := &mock.Dialer{Err: refused}
	f := newTestFactory(t, dialer)

	listener := &mock.ConnectionListener{}
	f.AddConnectionListener(listener)

	conn, err := f.CreateConnection()
	require.Error(t, err)
	assert.Nil(t, conn)

	var dialErr *connection.DialError
	require.ErrorAs(t, err, &dialErr)
	assert.ErrorIs(t, err, refused)

	require.Len(t, listener.Failed(), 1)
	assert.Empty(t, listener.Created())
}

func TestCreateConnection_ListenerPanicDoesNotFail(t *testing.T) {
	dialer := &mock.Dialer{}
	f := newTestFactory(t, dialer)

	first := &mock.ConnectionListener{}
	second := &mock.ConnectionListener{OnCreateHook: func(connection.Connection) {
		panic("observer bug")
	}}
	third := &mock.ConnectionListener{}
	f.AddConnectionListener(first)
	f.AddConnectionListener(second)
	f.AddConnectionListener(third)

	conn, err := f.CreateConnection()
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.Len(t, first.Created(), 1)
	assert.Len(t, third.Created(), 1)
}

func TestEstablishmentPrecedence_ResolverWins(t *testing.T) {
	dialer := &mock.Dialer{}
	f := newTestFactory(t, dialer)
	f.SetHost("hostport.example")
	f.SetAddresses("listed.example:5672")
	f.SetAddressResolver(transport.ResolverFunc(func() ([]transport.Address, error) {
		return []transport.Address{{Host: "resolved.example", Port: 5672}}, nil
	}))

	_, err := f.CreateConnection()
	require.NoError(t, err)

	urls := dialer.URLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "resolved.example")
}

func TestEstablishmentPrecedence_AddressesOverHostPort(t *testing.T) {
	dialer := &mock.Dialer{}
	f := newTestFactory(t, dialer)
	f.SetHost("hostport.example")
	f.SetAddresses("listed.example:5672")

	_, err := f.CreateConnection()
	require.NoError(t, err)

	urls := dialer.URLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "listed.example")
}

func TestEstablishment_ResolverError(t *testing.T) {
	boom := errors.New("resolver unavailable")
	dialer := &mock.Dialer{}
	f := newTestFactory(t, dialer)
	f.SetAddressResolver(transport.ResolverFunc(func() ([]transport.Address, error) {
		return nil, boom
	}))

	_, err := f.CreateConnection()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, dialer.URLs())
}

func TestSetAddresses_EmptyUnsetsList(t *testing.T) {
	dialer := &mock.Dialer{}
	f := newTestFactory(t, dialer)

	f.SetAddresses("host1:5672,host2:5673")
	require.Len(t, f.Addresses(), 2)

	f.SetAddresses("")
	assert.Empty(t, f.Addresses())

	f.SetHost("fallback.example")
	_, err := f.CreateConnection()
	require.NoError(t, err)
	assert.Contains(t, dialer.URLs()[0], "fallback.example")
}

func TestShuffle_DoesNotMutateConfiguredOrder(t *testing.T) {
	dialer := &mock.Dialer{Err: errors.New("refused")}
	f := newTestFactory(t, dialer)
	f.SetAddresses("a:5673,b:5674,c:5675")
	f.SetShuffleAddresses(true)

	want := f.Addresses()
	for i := 0; i < 5; i++ {
		_, _ = f.CreateConnection()
	}
	assert.Equal(t, want, f.Addresses())

	// With shuffle disabled the configured order is dialed as-is.
	f.SetShuffleAddresses(false)
	before := len(dialer.URLs())
	_, _ = f.CreateConnection()
	urls := dialer.URLs()[before:]
	require.Len(t, urls, 3)
	assert.Contains(t, urls[0], "a:5673")
	assert.Contains(t, urls[1], "b:5674")
	assert.Contains(t, urls[2], "c:5675")
}

func TestRecovery_ForcesHandleClosed(t *testing.T) {
	raw := &mock.RecoveringConnection{}
	dialer := &mock.Dialer{Next: raw}
	f := newTestFactory(t, dialer)

	conn, err := f.CreateConnection()
	require.NoError(t, err)
	// Internal forced closer plus the default user recovery listener.
	assert.Equal(t, 2, raw.RecoveryListenerCount())

	raw.TriggerRecoveryCompleted()

	assert.False(t, conn.IsOpen())
	_, err = conn.Channel()
	assert.ErrorIs(t, err, connection.ErrClosed)
}

func TestRecovery_UserListenerAttached(t *testing.T) {
	raw := &mock.RecoveringConnection{}
	dialer := &mock.Dialer{Next: raw}
	f := newTestFactory(t, dialer)

	user := &mock.RecoveryListener{}
	f.SetRecoveryListener(user)

	_, err := f.CreateConnection()
	require.NoError(t, err)

	raw.TriggerRecoveryStarted()
	raw.TriggerRecoveryCompleted()

	assert.Equal(t, 1, user.Started())
	assert.Equal(t, 1, user.Completed())
}

func TestRecovery_NotAttachedToPlainConnections(t *testing.T) {
	raw := &mock.RawConnection{}
	dialer := &mock.Dialer{Next: raw}
	f := newTestFactory(t, dialer)

	conn, err := f.CreateConnection()
	require.NoError(t, err)
	assert.True(t, conn.IsOpen())
}

func TestBlockedBridge(t *testing.T) {
	raw := &mock.RawConnection{}
	dialer := &mock.Dialer{Next: raw}
	f := newTestFactory(t, dialer)

	publisher := &mock.EventPublisher{}
	f.SetEventPublisher(publisher)

	conn, err := f.CreateConnection()
	require.NoError(t, err)
	require.Equal(t, 1, raw.BlockedListenerCount())

	raw.TriggerBlocked("memory alarm")
	raw.TriggerUnblocked()

	events := publisher.Events()
	require.Len(t, events, 2)

	blocked, ok := events[0].(connection.BlockedEvent)
	require.True(t, ok)
	assert.Same(t, conn, blocked.Connection)
	assert.Equal(t, "memory alarm", blocked.Reason)

	unblocked, ok := events[1].(connection.UnblockedEvent)
	require.True(t, ok)
	assert.Same(t, conn, unblocked.Connection)
}

func TestBlockedBridge_NotAttachedWithoutPublisher(t *testing.T) {
	raw := &mock.RawConnection{}
	dialer := &mock.Dialer{Next: raw}
	f := newTestFactory(t, dialer)

	_, err := f.CreateConnection()
	require.NoError(t, err)
	assert.Zero(t, raw.BlockedListenerCount())
}

func TestSetExecutor_NilRejected(t *testing.T) {
	f := newTestFactory(t, &mock.Dialer{})
	assert.ErrorIs(t, f.SetExecutor(nil), connection.ErrNilExecutor)
	assert.NoError(t, f.SetExecutor(&mock.Executor{}))
}

func TestSetNameStrategy_NilRejected(t *testing.T) {
	f := newTestFactory(t, &mock.Dialer{})
	assert.ErrorIs(t, f.SetNameStrategy(nil), connection.ErrNilNameStrategy)
}

func newLinkedFactories(t *testing.T, dialer, pubDialer *mock.Dialer) (*connection.Factory, *connection.Factory) {
	t.Helper()
	pub, err := connection.NewFactory(
		transport.NewFactory(transport.WithDialFunc(pubDialer.Dial)))
	require.NoError(t, err)
	f, err := connection.NewFactory(
		transport.NewFactory(transport.WithDialFunc(dialer.Dial)),
		connection.WithPublisherFactory(pub))
	require.NoError(t, err)
	return f, pub
}

func TestCascade_CloseTimeout(t *testing.T) {
	f, pub := newLinkedFactories(t, &mock.Dialer{}, &mock.Dialer{})

	f.SetCloseTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, pub.CloseTimeout())
}

func TestCascade_Name(t *testing.T) {
	f, pub := newLinkedFactories(t, &mock.Dialer{}, &mock.Dialer{})

	f.SetName("orders")
	assert.Equal(t, "orders", f.Name())
	assert.Equal(t, "orders.publisher", pub.Name())
}

func TestCascade_NameStrategy(t *testing.T) {
	pubDialer := &mock.Dialer{}
	f, pub := newLinkedFactories(t, &mock.Dialer{}, pubDialer)

	require.NoError(t, f.SetNameStrategy(func(*connection.Factory) string {
		return "fixed-name"
	}))

	_, err := pub.CreateConnection()
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed-name.publisher"}, pubDialer.Names())
}

func TestCascade_Addresses(t *testing.T) {
	f, pub := newLinkedFactories(t, &mock.Dialer{}, &mock.Dialer{})

	f.SetAddresses("host1:5672,host2:5673")
	assert.Equal(t, f.Addresses(), pub.Addresses())
}

func TestCascade_ConnectionListeners(t *testing.T) {
	pubDialer := &mock.Dialer{}
	f, pub := newLinkedFactories(t, &mock.Dialer{}, pubDialer)

	listener := &mock.ConnectionListener{}
	f.AddConnectionListener(listener)

	_, err := pub.CreateConnection()
	require.NoError(t, err)
	assert.Len(t, listener.Created(), 1, "listener must observe publisher connections too")

	f.RemoveConnectionListener(listener)
	_, err = pub.CreateConnection()
	require.NoError(t, err)
	assert.Len(t, listener.Created(), 1)
}

func TestCascade_EventPublisher(t *testing.T) {
	raw := &mock.RawConnection{}
	pubDialer := &mock.Dialer{Next: raw}
	f, pub := newLinkedFactories(t, &mock.Dialer{}, pubDialer)

	events := &mock.EventPublisher{}
	f.SetEventPublisher(events)

	_, err := pub.CreateConnection()
	require.NoError(t, err)
	assert.Equal(t, 1, raw.BlockedListenerCount())
}

func TestCascade_RecoveryListener(t *testing.T) {
	raw := &mock.RecoveringConnection{}
	pubDialer := &mock.Dialer{Next: raw}
	f, pub := newLinkedFactories(t, &mock.Dialer{}, pubDialer)

	user := &mock.RecoveryListener{}
	f.SetRecoveryListener(user)

	_, err := pub.CreateConnection()
	require.NoError(t, err)
	raw.TriggerRecoveryCompleted()
	assert.Equal(t, 1, user.Completed())
}

func TestStop_Cascades(t *testing.T) {
	f, pub := newLinkedFactories(t, &mock.Dialer{}, &mock.Dialer{})

	assert.False(t, f.Stopped())
	f.Stop()
	assert.True(t, f.Stopped())
	assert.True(t, pub.Stopped())
}

func TestDestroy_Idempotent(t *testing.T) {
	f, pub := newLinkedFactories(t, &mock.Dialer{}, &mock.Dialer{})

	require.NotPanics(t, func() {
		f.Destroy()
		f.Destroy()
	})
	_ = pub

	assert.True(t, f.HasPublisherFactory())
}

func TestPublisherFactoryAccessors(t *testing.T) {
	f, pub := newLinkedFactories(t, &mock.Dialer{}, &mock.Dialer{})
	assert.True(t, f.HasPublisherFactory())
	assert.Same(t, pub, f.PublisherFactory())

	solo := newTestFactory(t, &mock.Dialer{})
	assert.False(t, solo.HasPublisherFactory())
	assert.Nil(t, solo.PublisherFactory())
}
