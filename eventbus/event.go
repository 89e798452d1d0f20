// Package eventbus defines the wire form of connection lifecycle events and
// hosts publisher adapters that forward them to external brokers.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/miladsoleymani/amqpconn/connection"
)

// Event types carried in an Envelope.
const (
	TypeBlocked   = "connection.blocked"
	TypeUnblocked = "connection.unblocked"
)

// Envelope is the wire form of a connection lifecycle event.
type Envelope struct {
	Type       string    `json:"type"`
	Connection string    `json:"connection"`
	Reason     string    `json:"reason,omitempty"`
	Time       time.Time `json:"time"`
}

// Encode converts a factory event into its wire form. The second return is
// false for event types the bus does not forward.
func Encode(event any) (Envelope, bool) {
	now := time.Now().UTC()
	switch e := event.(type) {
	case connection.BlockedEvent:
		return Envelope{
			Type:       TypeBlocked,
			Connection: e.Connection.Name(),
			Reason:     e.Reason,
			Time:       now,
		}, true
	case connection.UnblockedEvent:
		return Envelope{
			Type:       TypeUnblocked,
			Connection: e.Connection.Name(),
			Time:       now,
		}, true
	}
	return Envelope{}, false
}

// Marshal encodes an event to JSON, reporting false for unknown types.
func Marshal(event any) ([]byte, bool) {
	env, ok := Encode(event)
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, false
	}
	return data, true
}
