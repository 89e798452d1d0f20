package connection

import (
	"github.com/rs/zerolog"

	"github.com/miladsoleymani/amqpconn/transport"
)

// forcedCloser is attached to every recoverable raw connection before any
// user recovery listener. When the underlying client finishes a transparent
// reconnect, the socket under the managed handle has been swapped; the
// handle is force-closed so the staleness is observable and callers request
// a fresh connection instead of silently reusing the old handle.
type forcedCloser struct {
	conn   Connection
	logger zerolog.Logger
}

func (f forcedCloser) RecoveryStarted(transport.Recoverable) {
	f.logger.Debug().Str("connection", f.conn.Name()).Msg("connection recovery started")
}

func (f forcedCloser) RecoveryCompleted(transport.Recoverable) {
	if err := f.conn.Close(); err != nil {
		f.logger.Error().Err(err).Str("connection", f.conn.Name()).
			Msg("failed to close auto-recovered connection")
	}
}

// loggingRecoveryListener is the default user recovery listener.
type loggingRecoveryListener struct {
	logger zerolog.Logger
}

func (l loggingRecoveryListener) RecoveryStarted(transport.Recoverable) {
	l.logger.Debug().Msg("connection recovery started")
}

func (l loggingRecoveryListener) RecoveryCompleted(transport.Recoverable) {
	l.logger.Debug().Msg("connection recovery complete")
}
