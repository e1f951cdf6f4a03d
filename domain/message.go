// Package domain contains core concepts of the chat system.
// This file defines Message values and the conversation key.
// Messages are immutable once persisted by the store.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConversationKey identifies a one-to-one thread. It is the unordered
// pair of participant ids, normalized so both sides compute the same key.
// Each id is length-prefixed: an id containing the separator cannot
// produce the same key as a different pair, and no key is a prefix of
// another, which the store relies on for its prefix scans.
type ConversationKey string

func NewConversationKey(a, b string) ConversationKey {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return ConversationKey(fmt.Sprintf("%d.%s|%d.%s", len(a), a, len(b), b))
}

// Message is a persisted chat message. ID is assigned by the store and is
// monotonic within a conversation; it is the authority for ordering and
// deduplication. Exactly one of Text and Image is set.
type Message struct {
	ID          int64
	SenderID    string
	RecipientID string
	Text        string
	Image       string
	CreatedAt   time.Time
}

func (m Message) Key() ConversationKey {
	return NewConversationKey(m.SenderID, m.RecipientID)
}

// IsImage reports whether the body is an image reference rather than text.
func (m Message) IsImage() bool {
	return m.Image != ""
}
