package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"chatwire/domain"
	"chatwire/domain/event"
	"chatwire/wire"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	frames [][]byte
}

func (r *recordingSender) Send(frame []byte) {
	r.frames = append(r.frames, frame)
}

func TestConnectionSink_EncodesMessageEvent(t *testing.T) {
	req := require.New(t)
	sender := &recordingSender{}
	s := NewConnectionSink(sender, slog.Default())

	msg := domain.Message{
		ID:          1,
		SenderID:    "alice",
		RecipientID: "bob",
		Text:        "hi",
		CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	req.NoError(s.Consume(context.Background(), event.MessageStored{Message: msg}))
	req.Len(sender.frames, 1)

	var env wire.Envelope
	req.NoError(json.Unmarshal(sender.frames[0], &env))
	req.Equal(wire.EventMessage, env.Event)

	var payload wire.Message
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal(msg, payload.ToDomain())
}

func TestConnectionSink_EncodesRoster(t *testing.T) {
	req := require.New(t)
	sender := &recordingSender{}
	s := NewConnectionSink(sender, slog.Default())

	req.NoError(s.Consume(context.Background(), event.RosterSnapshot{IDs: []string{"alice"}}))
	req.Len(sender.frames, 1)

	var env wire.Envelope
	req.NoError(json.Unmarshal(sender.frames[0], &env))
	req.Equal(wire.EventOnlineUsers, env.Event)
}
