// Package projection builds the client's local state from fetched history
// and live events. It handles ordering, deduplication and optimistic echo
// reconciliation. Does not emit events or interact with UI directly.
package projection

import (
	"sort"
	"time"

	"chatwire/domain"
)

type Phase int

const (
	// Idle means no conversation is selected.
	Idle Phase = iota
	// Loading means the historical fetch for the selected peer is in
	// flight; live events are buffered, not shown.
	Loading
	// Ready means the view shows history plus live tail.
	Ready
)

// ViewMessage is one rendered message. A non-empty ProvisionalID marks an
// optimistic echo that has not been acknowledged by the server yet.
type ViewMessage struct {
	domain.Message
	ProvisionalID string
}

// ConversationView is the ordered, duplicate-free projection of the one
// conversation currently selected. Selecting a peer discards the previous
// view entirely; each selection gets a new epoch, and a historical fetch
// that resolves after the epoch moved on is thrown away.
//
// The view is not goroutine-safe: the owning session serializes access.
type ConversationView struct {
	selfID string

	phase  Phase
	epoch  int
	peerID string
	key    domain.ConversationKey

	messages []ViewMessage
	// pending buffers live events arriving while history is in flight;
	// they are merged once loading completes.
	pending []domain.Message

	onScroll func()
}

func NewConversationView(selfID string) *ConversationView {
	return &ConversationView{selfID: selfID, phase: Idle}
}

// OnScroll registers the scroll-to-latest signal, fired on every visible
// mutation of the view.
func (v *ConversationView) OnScroll(fn func()) {
	v.onScroll = fn
}

// SelectPeer discards the current view and enters Loading for the new
// peer. The returned epoch ties the in-flight history fetch to this
// selection; a fetch resolving under an older epoch is stale.
func (v *ConversationView) SelectPeer(peerID string) int {
	v.epoch++
	v.phase = Loading
	v.peerID = peerID
	v.key = domain.NewConversationKey(v.selfID, peerID)
	v.messages = nil
	v.pending = nil
	return v.epoch
}

// ApplyHistory installs the fetched base sequence, then merges whatever
// live events were buffered while the fetch was in flight. Stale epochs
// are discarded wholesale.
func (v *ConversationView) ApplyHistory(epoch int, history []domain.Message) {
	if epoch != v.epoch || v.phase != Loading {
		return
	}

	v.messages = make([]ViewMessage, 0, len(history)+len(v.pending))
	for _, msg := range history {
		v.messages = append(v.messages, ViewMessage{Message: msg})
	}
	for _, msg := range v.pending {
		v.insert(msg)
	}
	v.pending = nil
	v.phase = Ready
	v.scroll()
}

// ApplyLive feeds one pushed message into the view. Events for any other
// conversation are discarded; during Loading they are buffered for the
// post-history merge.
func (v *ConversationView) ApplyLive(msg domain.Message) {
	if v.phase == Idle || msg.Key() != v.key {
		return
	}
	if v.phase == Loading {
		v.pending = append(v.pending, msg)
		return
	}
	if v.insert(msg) {
		v.scroll()
	}
}

// AppendProvisional adds an optimistic echo for a message the session just
// sent, before the server acknowledged it.
func (v *ConversationView) AppendProvisional(provisionalID string, peerID, text, image string) {
	if v.phase != Ready || peerID != v.peerID {
		return
	}
	v.messages = append(v.messages, ViewMessage{
		Message: domain.Message{
			SenderID:    v.selfID,
			RecipientID: peerID,
			Text:        text,
			Image:       image,
			CreatedAt:   time.Now().UTC(),
		},
		ProvisionalID: provisionalID,
	})
	v.scroll()
}

// ApplyAck replaces an optimistic echo with the canonical persisted
// message. The echo is resolved by provisional id first: the server may
// have rewritten the body (trimming, censoring), so a body comparison
// alone would strand the echo. Body match is only the fallback when the
// caller could not attribute the ack, and without any matching echo the
// ack degrades to a live append, so a second tab still converges.
func (v *ConversationView) ApplyAck(provisionalID string, msg domain.Message) {
	if v.phase != Ready || msg.Key() != v.key {
		return
	}
	for i, vm := range v.messages {
		if vm.ProvisionalID == "" {
			continue
		}
		if vm.ProvisionalID == provisionalID ||
			(provisionalID == "" && vm.Text == msg.Text && vm.Image == msg.Image) {
			v.messages[i] = ViewMessage{Message: msg}
			v.reorder()
			v.scroll()
			return
		}
	}
	if v.insert(msg) {
		v.scroll()
	}
}

// DropProvisional removes an echo whose send failed, so the user does not
// see a message the server never stored.
func (v *ConversationView) DropProvisional(provisionalID string) {
	for i, vm := range v.messages {
		if vm.ProvisionalID == provisionalID {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			v.scroll()
			return
		}
	}
}

func (v *ConversationView) Phase() Phase { return v.phase }

func (v *ConversationView) PeerID() string { return v.peerID }

// Messages returns the current view content, oldest first.
func (v *ConversationView) Messages() []ViewMessage {
	out := make([]ViewMessage, len(v.messages))
	copy(out, v.messages)
	return out
}

// insert appends the message unless its store id is already present.
// Returns whether the view changed.
func (v *ConversationView) insert(msg domain.Message) bool {
	for _, vm := range v.messages {
		if vm.ProvisionalID == "" && vm.ID == msg.ID {
			return false
		}
	}
	v.messages = append(v.messages, ViewMessage{Message: msg})
	v.reorder()
	return true
}

// reorder restores store-id order among acknowledged messages and keeps
// unacknowledged echoes at the tail in send order. Echoes sort after
// everything acknowledged so the ordering stays transitive even when a
// replayed live event lands between two echoes.
func (v *ConversationView) reorder() {
	sort.SliceStable(v.messages, func(i, j int) bool {
		a, b := v.messages[i], v.messages[j]
		if (a.ProvisionalID == "") != (b.ProvisionalID == "") {
			return a.ProvisionalID == ""
		}
		if a.ProvisionalID != "" {
			return false
		}
		return a.ID < b.ID
	})
}

func (v *ConversationView) scroll() {
	if v.onScroll != nil {
		v.onScroll()
	}
}
