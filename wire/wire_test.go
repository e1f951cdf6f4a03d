package wire

import (
	"encoding/json"
	"testing"
	"time"

	"chatwire/domain"
	"chatwire/domain/event"
	cherr "chatwire/errors"

	"github.com/stretchr/testify/require"
)

func TestDecode_SendMessage(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"event":"send-message","payload":{"recipientId":"bob","text":"hi"}}`)

	env, err := Decode(frame)
	req.NoError(err)
	req.Equal(EventSendMessage, env.Event)

	payload, err := ParseSendMessage(env)
	req.NoError(err)
	req.Equal("bob", payload.RecipientID)
	req.Equal("hi", payload.Text)
}

func TestDecode_MissingRecipient(t *testing.T) {
	req := require.New(t)
	env, err := Decode([]byte(`{"event":"send-message","payload":{"text":"hi"}}`))
	req.NoError(err)

	_, err = ParseSendMessage(env)
	req.Error(err)
	req.True(cherr.IsValidation(err))
}

func TestDecode_UnknownEvent(t *testing.T) {
	req := require.New(t)
	env, err := Decode([]byte(`{"event":"edit-message","payload":{}}`))
	req.NoError(err)

	_, err = ParseSendMessage(env)
	req.ErrorIs(err, cherr.ErrUnknownEvent)
}

func TestDecode_MalformedFrame(t *testing.T) {
	req := require.New(t)
	_, err := Decode([]byte(`{"event":`))
	req.Error(err)
}

func TestEncode_MessageStored(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := domain.Message{ID: 7, SenderID: "alice", RecipientID: "bob", Text: "hello", CreatedAt: at}

	frame, err := Encode(event.MessageStored{Message: msg})
	req.NoError(err)

	var env Envelope
	req.NoError(json.Unmarshal(frame, &env))
	req.Equal(EventMessage, env.Event)

	var payload Message
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal(msg, payload.ToDomain())
}

func TestEncode_RosterSnapshot(t *testing.T) {
	req := require.New(t)
	frame, err := Encode(event.RosterSnapshot{IDs: []string{"alice", "bob"}})
	req.NoError(err)

	var env Envelope
	req.NoError(json.Unmarshal(frame, &env))
	req.Equal(EventOnlineUsers, env.Event)

	var payload OnlineUsers
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal([]string{"alice", "bob"}, payload.IDs)
}
