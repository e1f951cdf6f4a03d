// Package runtime hosts the server-side core: the presence registry, the
// roster broadcaster and the message router. It holds no transport or
// storage logic of its own.
package runtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"chatwire/contract"
	"chatwire/domain/event"

	"github.com/google/uuid"
)

// Registry is the process-wide source of truth for presence. It maps each
// user id to their set of live connection sinks; a user is online iff that
// set is non-empty. One user may hold several concurrent connections
// (multiple tabs), and presence only transitions on the first register and
// the last unregister.
//
// The connection map is the only mutable shared state in the core. It is
// mutated exclusively through Register and Unregister, never
// read-modify-written from outside.
type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	conns map[string]map[uuid.UUID]contract.EventSink

	transitionMu sync.Mutex
	onTransition []func()
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		conns: make(map[string]map[uuid.UUID]contract.EventSink),
	}
}

// OnTransition subscribes to online/offline transitions. Subscribers are
// invoked after the mutation, outside the registry lock, and must not
// block; the roster broadcaster coalesces these signals.
func (r *Registry) OnTransition(fn func()) {
	r.transitionMu.Lock()
	defer r.transitionMu.Unlock()
	r.onTransition = append(r.onTransition, fn)
}

// Register adds a connection to the user's active set. The first
// connection for a user marks them online and notifies subscribers.
func (r *Registry) Register(userID string, connID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[uuid.UUID]contract.EventSink)
		r.conns[userID] = set
	}
	wentOnline := len(set) == 0
	set[connID] = sink
	r.mu.Unlock()

	r.log.Debug("Connection registered", "user_id", userID, "conn_id", connID.String())
	if wentOnline {
		r.notifyTransition()
	}
}

// Unregister removes a connection from the user's active set. Removing a
// connection that is not present is a no-op, which guards against
// duplicate disconnect signals. The last connection for a user marks them
// offline and notifies subscribers.
func (r *Registry) Unregister(userID string, connID uuid.UUID) {
	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, present := set[connID]; !present {
		r.mu.Unlock()
		return
	}
	delete(set, connID)
	wentOffline := len(set) == 0
	if wentOffline {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	r.log.Debug("Connection unregistered", "user_id", userID, "conn_id", connID.String())
	if wentOffline {
		r.notifyTransition()
	}
}

// OnlineIDs returns the snapshot set of user ids with at least one active
// connection, sorted for deterministic broadcasts.
func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// PushToUser emits the event to every active connection of the user. When
// the user is offline the event is dropped: there is no queue, offline
// users catch up through a history fetch after reconnecting.
func (r *Registry) PushToUser(ctx context.Context, userID string, e event.Event) {
	for _, snk := range r.sinksFor(userID) {
		if err := snk.Consume(ctx, e); err != nil {
			r.log.Warn("Sink rejected event", "user_id", userID, "event", e.Name(), "error", err)
		}
	}
}

// Broadcast emits the event to every connection of every online user.
func (r *Registry) Broadcast(ctx context.Context, e event.Event) {
	r.mu.RLock()
	var sinks []contract.EventSink
	for _, set := range r.conns {
		for _, snk := range set {
			sinks = append(sinks, snk)
		}
	}
	r.mu.RUnlock()

	for _, snk := range sinks {
		if err := snk.Consume(ctx, e); err != nil {
			r.log.Warn("Sink rejected broadcast", "event", e.Name(), "error", err)
		}
	}
}

func (r *Registry) sinksFor(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.conns[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(set))
	for _, snk := range set {
		sinks = append(sinks, snk)
	}
	return sinks
}

func (r *Registry) notifyTransition() {
	r.transitionMu.Lock()
	subscribers := r.onTransition
	r.transitionMu.Unlock()

	for _, fn := range subscribers {
		fn()
	}
}
