package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatwire/domain"

	"github.com/dgraph-io/badger/v4"
)

// ConversationRepository is the durable ordered log of messages, one
// BadgerDB keyspace per conversation. It assigns the canonical message id
// from a per-conversation Badger sequence, which makes the store the
// single ordering authority for both live fan-out and history fetches.
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu   sync.Mutex
	seqs map[domain.ConversationKey]*badger.Sequence
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) *ConversationRepository {
	return &ConversationRepository{
		db:   db,
		log:  log,
		seqs: make(map[domain.ConversationKey]*badger.Sequence),
	}
}

// storedMessage is the JSON shape persisted as the Badger value.
type storedMessage struct {
	ID          int64  `json:"id"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
	At          int64  `json:"at"`
}

// Append persists a message and assigns its canonical id and timestamp.
// The key is formatted as "msg:{conversation_key}:{id_padded}" so that a
// forward prefix scan yields the conversation oldest first:
//  1. The 19-digit zero padding makes lexicographical order match id order.
//  2. Ids come from a per-conversation sequence, so they are monotonic
//     within the conversation even under concurrent senders.
func (r *ConversationRepository) Append(cmd domain.SendMessageCommand) (domain.Message, error) {
	seq, err := r.sequence(cmd.Key())
	if err != nil {
		return domain.Message{}, fmt.Errorf("sequence for %s: %w", cmd.Key(), err)
	}

	next, err := seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next id for %s: %w", cmd.Key(), err)
	}

	msg := domain.Message{
		ID:          int64(next) + 1,
		SenderID:    cmd.SenderID,
		RecipientID: cmd.RecipientID,
		Text:        cmd.Text,
		Image:       cmd.Image,
		CreatedAt:   time.Now().UTC(),
	}

	value, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}

	key := fmt.Sprintf("msg:%s:%019d", cmd.Key(), msg.ID)
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// FetchHistory returns the full conversation between two users, oldest
// first. Thanks to the padded id in the key, no sort is needed.
func (r *ConversationRepository) FetchHistory(userA, userB string) ([]domain.Message, error) {
	convKey := domain.NewConversationKey(userA, userB)
	prefix := []byte(fmt.Sprintf("msg:%s:", convKey))

	var values [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				values = append(values, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	for _, value := range values {
		var stored storedMessage
		if err = json.Unmarshal(value, &stored); err != nil {
			return nil, err
		}
		messages = append(messages, toMessage(stored))
	}
	return messages, nil
}

// sequence lazily opens the id sequence for a conversation. Bandwidth 1
// trades write throughput for gapless ids within a process lifetime.
func (r *ConversationRepository) sequence(key domain.ConversationKey) (*badger.Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq, ok := r.seqs[key]; ok {
		return seq, nil
	}
	seq, err := r.db.GetSequence([]byte("seq:"+string(key)), 1)
	if err != nil {
		return nil, err
	}
	r.seqs[key] = seq
	return seq, nil
}

// Close releases all leased sequences. Must run before the DB closes.
func (r *ConversationRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, seq := range r.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", key, err))
		}
	}
	r.seqs = make(map[domain.ConversationKey]*badger.Sequence)
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// DecodeStored parses a persisted Badger value back into a message. The
// store inspection tooling reads values directly, outside the repository.
func DecodeStored(value []byte) (domain.Message, error) {
	var stored storedMessage
	if err := json.Unmarshal(value, &stored); err != nil {
		return domain.Message{}, err
	}
	return toMessage(stored), nil
}

func fromMessage(m domain.Message) storedMessage {
	return storedMessage{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		Image:       m.Image,
		At:          m.CreatedAt.UnixNano(),
	}
}

func toMessage(s storedMessage) domain.Message {
	return domain.Message{
		ID:          s.ID,
		SenderID:    s.SenderID,
		RecipientID: s.RecipientID,
		Text:        s.Text,
		Image:       s.Image,
		CreatedAt:   time.Unix(0, s.At).UTC(),
	}
}
