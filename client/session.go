// Package client is the user-side counterpart of the realtime channel: it
// owns one authenticated connection, the roster mirror and the view of
// the currently selected conversation, and reconciles optimistic sends
// against server acknowledgments.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chatwire/domain"
	"chatwire/projection"
	"chatwire/wire"

	"github.com/google/uuid"
)

var ErrNoPeerSelected = errors.New("no peer selected")

// HistoryFetcher performs the one-shot historical fetch for a
// conversation with the given peer.
type HistoryFetcher interface {
	Fetch(ctx context.Context, peerID string) ([]domain.Message, error)
}

// FrameSender pushes one outbound frame onto the live connection.
type FrameSender interface {
	Send(ctx context.Context, frame []byte) error
}

type Config struct {
	// MinLoadingDuration keeps the loading state visible at least this
	// long after selecting a peer, so fast fetches do not flash. Zero
	// shows history the moment it arrives.
	MinLoadingDuration time.Duration
}

// Session serializes everything that happens to the local state: frames
// from the read loop, sends from the UI, and resolving history fetches
// all pass through one mutex.
type Session struct {
	log     *slog.Logger
	cfg     Config
	selfID  string
	fetcher HistoryFetcher
	sender  FrameSender

	mu     sync.Mutex
	view   *projection.ConversationView
	roster *projection.Roster
	// pending holds provisional ids of unacknowledged sends, oldest
	// first. Acks and failure notices resolve them in order, matching
	// the server's per-connection processing order.
	pending []string

	onNotice func(code, reason string)
}

func NewSession(log *slog.Logger, cfg Config, selfID string, fetcher HistoryFetcher, sender FrameSender) *Session {
	return &Session{
		log:     log,
		cfg:     cfg,
		selfID:  selfID,
		fetcher: fetcher,
		sender:  sender,
		view:    projection.NewConversationView(selfID),
		roster:  projection.NewRoster(),
	}
}

func (s *Session) View() *projection.ConversationView { return s.view }

func (s *Session) Roster() *projection.Roster { return s.roster }

// OnNotice registers the callback for user-visible failure notices.
func (s *Session) OnNotice(fn func(code, reason string)) {
	s.onNotice = fn
}

// SelectPeer switches the conversation and starts the historical fetch.
// A fetch still in flight for the previous peer resolves against a stale
// epoch and is discarded by the view.
func (s *Session) SelectPeer(ctx context.Context, peerID string) {
	s.mu.Lock()
	epoch := s.view.SelectPeer(peerID)
	s.pending = nil
	s.mu.Unlock()

	started := time.Now()
	go func() {
		history, err := s.fetcher.Fetch(ctx, peerID)
		if err != nil {
			s.log.Error("History fetch failed", "peer", peerID, "error", err)
			s.notify("history", err.Error())
			history = nil
		}

		if wait := s.cfg.MinLoadingDuration - time.Since(started); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		s.mu.Lock()
		s.view.ApplyHistory(epoch, history)
		s.mu.Unlock()
	}()
}

// Send queues a message for the selected peer: the view gets an
// optimistic echo immediately, the server a send-message frame. The echo
// is replaced by the canonical message on ack, or dropped on failure.
func (s *Session) Send(ctx context.Context, text, image string) error {
	s.mu.Lock()
	peerID := s.view.PeerID()
	if peerID == "" {
		s.mu.Unlock()
		return ErrNoPeerSelected
	}

	provisionalID := uuid.NewString()
	s.view.AppendProvisional(provisionalID, peerID, text, image)
	s.pending = append(s.pending, provisionalID)
	s.mu.Unlock()

	payload, err := json.Marshal(wire.SendMessage{RecipientID: peerID, Text: text, Image: image})
	if err != nil {
		return err
	}
	frame, err := json.Marshal(wire.Envelope{Event: wire.EventSendMessage, Payload: payload})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, frame)
}

// HandleFrame processes one inbound frame from the read loop.
func (s *Session) HandleFrame(frame []byte) {
	env, err := wire.Decode(frame)
	if err != nil {
		s.log.Warn("Dropping malformed frame", "error", err)
		return
	}

	switch env.Event {
	case wire.EventMessage:
		var msg wire.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			s.log.Warn("Dropping malformed message payload", "error", err)
			return
		}
		s.applyMessage(msg.ToDomain())
	case wire.EventOnlineUsers:
		var roster wire.OnlineUsers
		if err := json.Unmarshal(env.Payload, &roster); err != nil {
			s.log.Warn("Dropping malformed roster payload", "error", err)
			return
		}
		s.mu.Lock()
		s.roster.Rebuild(roster.IDs)
		s.mu.Unlock()
	case wire.EventError:
		var failure wire.Error
		if err := json.Unmarshal(env.Payload, &failure); err != nil {
			return
		}
		s.resolveFailure()
		s.notify(failure.Code, failure.Reason)
	default:
		s.log.Warn("Ignoring unknown event", "event", env.Event)
	}
}

// applyMessage routes a pushed message: our own messages are acks that
// resolve the oldest pending echo, everything else is live traffic. The
// popped provisional id travels into the view so the echo is replaced by
// identity, not by body: the server may have rewritten the text.
func (s *Session) applyMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.SenderID == s.selfID {
		var provisionalID string
		if len(s.pending) > 0 {
			provisionalID = s.pending[0]
			s.pending = s.pending[1:]
		}
		s.view.ApplyAck(provisionalID, msg)
		return
	}
	s.view.ApplyLive(msg)
}

// resolveFailure drops the echo of the oldest unacknowledged send. The
// server processes frames of one connection in order, so a failure notice
// always refers to the oldest outstanding one.
func (s *Session) resolveFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return
	}
	failed := s.pending[0]
	s.pending = s.pending[1:]
	s.view.DropProvisional(failed)
}

func (s *Session) notify(code, reason string) {
	if s.onNotice != nil {
		s.onNotice(code, reason)
	}
}
