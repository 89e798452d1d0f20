package eventbus_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/amqpconn/connection"
	"github.com/miladsoleymani/amqpconn/eventbus"
	"github.com/miladsoleymani/amqpconn/internal/mock"
	"github.com/miladsoleymani/amqpconn/transport"
)

func testConnection(t *testing.T) connection.Connection {
	t.Helper()
	dialer := &mock.Dialer{}
	f, err := connection.NewFactory(
		transport.NewFactory(transport.WithDialFunc(dialer.Dial)),
		connection.WithName("orders"))
	require.NoError(t, err)
	conn, err := f.CreateConnection()
	require.NoError(t, err)
	return conn
}

func TestEncode_Blocked(t *testing.T) {
	conn := testConnection(t)

	env, ok := eventbus.Encode(connection.BlockedEvent{Connection: conn, Reason: "memory alarm"})
	require.True(t, ok)
	assert.Equal(t, eventbus.TypeBlocked, env.Type)
	assert.Equal(t, conn.Name(), env.Connection)
	assert.Equal(t, "memory alarm", env.Reason)
	assert.False(t, env.Time.IsZero())
}

func TestEncode_Unblocked(t *testing.T) {
	conn := testConnection(t)

	env, ok := eventbus.Encode(connection.UnblockedEvent{Connection: conn})
	require.True(t, ok)
	assert.Equal(t, eventbus.TypeUnblocked, env.Type)
	assert.Empty(t, env.Reason)
}

func TestEncode_UnknownEvent(t *testing.T) {
	_, ok := eventbus.Encode("not an event")
	assert.False(t, ok)

	_, ok = eventbus.Marshal(42)
	assert.False(t, ok)
}

func TestMarshal(t *testing.T) {
	conn := testConnection(t)

	data, ok := eventbus.Marshal(connection.BlockedEvent{Connection: conn, Reason: "disk alarm"})
	require.True(t, ok)

	var env eventbus.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, eventbus.TypeBlocked, env.Type)
	assert.Equal(t, "disk alarm", env.Reason)
	assert.Equal(t, conn.Name(), env.Connection)
}
