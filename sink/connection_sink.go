package sink

import (
	"context"
	"log/slog"

	"chatwire/domain/event"
	"chatwire/wire"
)

// FrameSender is the outbound half of a live connection.
type FrameSender interface {
	Send(frame []byte)
}

// ConnectionSink adapts one live connection into an event sink: every
// consumed event is encoded as a wire frame and queued on the connection.
// Consume never blocks; the connection drops frames it cannot queue.
type ConnectionSink struct {
	conn FrameSender
	log  *slog.Logger
}

func NewConnectionSink(conn FrameSender, log *slog.Logger) ConnectionSink {
	return ConnectionSink{conn: conn, log: log}
}

func (s ConnectionSink) Consume(_ context.Context, e event.Event) error {
	frame, err := wire.Encode(e)
	if err != nil {
		s.log.Error("Failed to encode outbound event", "event", e.Name(), "error", err)
		return err
	}
	s.conn.Send(frame)
	return nil
}
