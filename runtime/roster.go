package runtime

import (
	"context"
	"log/slog"

	"chatwire/domain/event"
)

// RosterBroadcaster turns presence transitions into full-roster pushes.
// Register/Unregister call Notify, which is non-blocking and coalescing:
// back-to-back transitions collapse into a single broadcast, because
// correctness only depends on eventual roster convergence, never on which
// specific transition triggered a given snapshot.
type RosterBroadcaster struct {
	log      *slog.Logger
	registry *Registry
	notify   chan struct{}
}

func NewRosterBroadcaster(log *slog.Logger, registry *Registry) *RosterBroadcaster {
	b := &RosterBroadcaster{
		log:      log,
		registry: registry,
		notify:   make(chan struct{}, 1),
	}
	registry.OnTransition(b.Notify)
	return b
}

// Notify schedules a roster broadcast. Never blocks the caller.
func (b *RosterBroadcaster) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Run consumes transition signals and broadcasts the current online set
// wholesale to every connected client, until the context ends.
func (b *RosterBroadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.log.Debug("Stopping roster broadcaster")
			return nil
		case <-b.notify:
			ids := b.registry.OnlineIDs()
			b.registry.Broadcast(ctx, event.RosterSnapshot{IDs: ids})
			b.log.Debug("Roster broadcast", "online", len(ids))
		}
	}
}
