package connection

// EventPublisher receives the factory's lifecycle events. It is an optional
// collaborator: when none is configured, no flow-control bridge is attached
// to new connections.
type EventPublisher interface {
	Publish(event any)
}

// EventPublisherFunc adapts a plain function to the EventPublisher interface.
type EventPublisherFunc func(event any)

func (f EventPublisherFunc) Publish(event any) { f(event) }

// BlockedEvent is published when the broker blocks a connection due to a
// resource alarm.
type BlockedEvent struct {
	Connection Connection
	Reason     string
}

// UnblockedEvent is published when the broker unblocks a connection.
type UnblockedEvent struct {
	Connection Connection
}

// blockedBridge translates broker flow-control notifications for one
// connection into published events. It holds no state beyond its two
// collaborators and is attached once per connection at creation time.
type blockedBridge struct {
	conn      Connection
	publisher EventPublisher
}

func (b blockedBridge) Blocked(reason string) {
	b.publisher.Publish(BlockedEvent{Connection: b.conn, Reason: reason})
}

func (b blockedBridge) Unblocked() {
	b.publisher.Publish(UnblockedEvent{Connection: b.conn})
}
