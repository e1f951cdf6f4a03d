//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chatwire/domain"
	"chatwire/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live delivery target, typically a single websocket
// connection. Consume must not block the caller longer than the sink's
// own buffering allows; slow sinks drop, they do not backpressure.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// IPresence is the process-wide source of truth for who is online.
// A user is online iff at least one connection is registered for them.
type IPresence interface {
	Register(userID string, connID uuid.UUID, sink EventSink)
	Unregister(userID string, connID uuid.UUID)
	OnlineIDs() []string
	PushToUser(ctx context.Context, userID string, e event.Event)
}

// IConversationStore is the durable ordered log of messages. Append
// assigns the canonical id and timestamp; it is the ordering authority.
type IConversationStore interface {
	Append(cmd domain.SendMessageCommand) (domain.Message, error)
	FetchHistory(userA, userB string) ([]domain.Message, error)
}

// ITokenVerifier is the session identity provider boundary: it resolves
// an opaque token to a user id or fails the handshake.
type ITokenVerifier interface {
	Verify(token string) (string, error)
}

// IRouter validates, persists and fans out a send. The returned message
// carries the canonical id and doubles as the sender acknowledgment.
type IRouter interface {
	Deliver(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
}
