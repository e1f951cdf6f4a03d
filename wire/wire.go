// Package wire defines the tagged JSON events exchanged over the realtime
// channel. Payloads are validated at the boundary, before anything reaches
// the message router.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"chatwire/domain"
	"chatwire/domain/event"
	cherr "chatwire/errors"

	"github.com/go-playground/validator/v10"
)

const (
	EventSendMessage = "send-message"
	EventMessage     = "message"
	EventOnlineUsers = "online-users"
	EventError       = "error"
)

var validate = validator.New()

// Envelope wraps every frame in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendMessage is the only inbound client event. Exactly one of Text and
// Image is expected; the router enforces that, the wire layer only checks
// shape.
type SendMessage struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Message is the outbound copy of a persisted message. The same shape is
// used for recipient fan-out and for the sender acknowledgment.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type OnlineUsers struct {
	IDs []string `json:"ids"`
}

type Error struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Decode parses a raw frame into its envelope. The payload stays raw
// until the event name selects a concrete type.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, cherr.ErrUnknownEvent
	}
	return env, nil
}

// ParseSendMessage extracts and validates a send-message payload.
func ParseSendMessage(env Envelope) (SendMessage, error) {
	if env.Event != EventSendMessage {
		return SendMessage{}, cherr.ErrUnknownEvent
	}
	var payload SendMessage
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return SendMessage{}, fmt.Errorf("%w: %v", cherr.ErrInvalidPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return SendMessage{}, fmt.Errorf("%w: %v", cherr.ErrInvalidPayload, err)
	}
	return payload, nil
}

// Encode turns an internal event into its outbound frame.
func Encode(e event.Event) ([]byte, error) {
	var payload any
	switch evt := e.(type) {
	case event.MessageStored:
		payload = FromDomain(evt.Message)
	case event.RosterSnapshot:
		payload = OnlineUsers{IDs: evt.IDs}
	case event.SendFailed:
		payload = Error{Code: evt.Code, Reason: evt.Reason}
	default:
		return nil, fmt.Errorf("%w: %T", cherr.ErrUnknownEvent, e)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Name(), Payload: raw})
}

func FromDomain(m domain.Message) Message {
	return Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Image:       m.Image,
		CreatedAt:   m.CreatedAt,
	}
}

func (m Message) ToDomain() domain.Message {
	return domain.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Image:       m.Image,
		CreatedAt:   m.CreatedAt,
	}
}
