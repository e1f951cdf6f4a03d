package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"chatwire/contract"
	"chatwire/domain"
	"chatwire/domain/event"
	cherr "chatwire/errors"
	"chatwire/moderation"
)

// Router validates, sequences and fans out sends. Persistence happens
// before any fan-out: the store assigns the canonical id, so a message
// seen live and the same message fetched from history can never disagree
// on identity or order. Delivery is at-most-once; nothing is queued or
// retried for offline recipients.
type Router struct {
	log       *slog.Logger
	store     contract.IConversationStore
	presence  contract.IPresence
	moderator *moderation.Moderator
}

func NewRouter(log *slog.Logger, store contract.IConversationStore, presence contract.IPresence, moderator *moderation.Moderator) *Router {
	return &Router{log: log, store: store, presence: presence, moderator: moderator}
}

// Deliver runs the full pipeline for one send: validate, censor, persist,
// fan out. The returned message carries the canonical id and doubles as
// the acknowledgment for the sender's own connection.
func (r *Router) Deliver(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	normalized, err := normalizeBody(cmd)
	if err != nil {
		return domain.Message{}, err
	}

	if normalized.Text != "" && r.moderator != nil {
		normalized.Text = r.moderator.Censor(normalized.Text)
	}

	msg, err := r.store.Append(normalized)
	if err != nil {
		// No fan-out of an unpersisted message: the store is the
		// ordering authority.
		return domain.Message{}, fmt.Errorf("%w: %v", cherr.ErrStoreAppend, err)
	}

	r.presence.PushToUser(ctx, msg.RecipientID, event.MessageStored{Message: msg})
	r.log.Debug("Message delivered",
		"conversation", msg.Key(),
		"message_id", msg.ID,
	)
	return msg, nil
}
