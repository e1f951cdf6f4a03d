//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"chatwire/contract"
	"chatwire/domain"
)

type IChatService interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	History(userA, userB string) ([]domain.Message, error)
}

// ChatService is the thin application facade over the router and the
// conversation store, shared by the websocket boundary and the history
// endpoint.
type ChatService struct {
	router contract.IRouter
	store  contract.IConversationStore
}

func NewChatService(router contract.IRouter, store contract.IConversationStore) *ChatService {
	return &ChatService{router: router, store: store}
}

func (s *ChatService) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.router.Deliver(ctx, cmd)
}

func (s *ChatService) History(userA, userB string) ([]domain.Message, error) {
	return s.store.FetchHistory(userA, userB)
}
