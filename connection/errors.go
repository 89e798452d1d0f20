package connection

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operations are attempted on a closed
	// connection handle.
	ErrClosed = errors.New("amqpconn: connection is closed")

	// ErrNilTransport is returned when a factory is created without an
	// underlying transport factory.
	ErrNilTransport = errors.New("amqpconn: transport factory is nil")

	// ErrNilExecutor is returned when a nil executor is configured.
	ErrNilExecutor = errors.New("amqpconn: executor must not be nil")

	// ErrNilNameStrategy is returned when a nil naming strategy is configured.
	ErrNilNameStrategy = errors.New("amqpconn: name strategy must not be nil")
)

// DialError is the single error type returned for a failed connection
// establishment, wrapping the underlying client's I/O or timeout failure.
type DialError struct {
	// Name is the connection name the attempt was made under.
	Name string
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("amqpconn: establish connection %q: %v", e.Name, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }
