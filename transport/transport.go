// Package transport wraps the underlying AMQP client library behind small
// capability interfaces: a Factory that owns network identity and opens raw
// connections, and the Raw connection surface those connections expose.
// Higher layers never touch amqp091 types directly, which keeps them
// testable against the doubles in internal/mock.
package transport

import "time"

// Executor runs background tasks spawned on behalf of a connection, such as
// notification dispatch. When no executor is supplied the transport falls
// back to plain goroutines; the executor's lifecycle is owned by the caller.
type Executor interface {
	Submit(task func())
}

// Channel is the minimal channel surface needed by lifecycle listeners.
// *amqp091.Channel satisfies it.
type Channel interface {
	Close() error
	IsClosed() bool
}

// BlockedListener receives broker flow-control notifications for one
// connection: Blocked when the broker throttles traffic due to a resource
// alarm, Unblocked when the alarm clears.
type BlockedListener interface {
	Blocked(reason string)
	Unblocked()
}

// RecoveryListener observes a Recoverable connection's automatic recovery.
type RecoveryListener interface {
	RecoveryStarted(r Recoverable)
	RecoveryCompleted(r Recoverable)
}

// Recoverable is implemented by raw connections that transparently reconnect
// after a dropped socket. Listeners are invoked in registration order.
type Recoverable interface {
	AddRecoveryListener(l RecoveryListener)
}

// Raw is an established broker connection as exposed by the underlying
// client. It may additionally implement Recoverable.
type Raw interface {
	// Channel opens a new channel on the connection.
	Channel() (Channel, error)

	// Close closes the connection and all of its channels.
	Close() error

	// CloseDeadline closes the connection, waiting at most until deadline
	// for the broker's close-ok.
	CloseDeadline(deadline time.Time) error

	IsClosed() bool

	// AddBlockedListener registers a flow-control observer. Listeners added
	// after a notification has been delivered only see subsequent ones.
	AddBlockedListener(l BlockedListener)
}
