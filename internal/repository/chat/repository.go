package chat

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// Create opens a chat and stores its first message in one transaction.
	Create(ctx context.Context, customerID, firstMessage string) (*domain.Chat, *domain.ChatMessage, error)
	Get(ctx context.Context, id string) (*domain.Chat, error)
	// Claim assigns an open chat to repID, recording note as a system message.
	// Status and rep change in the same statement.
	Claim(ctx context.Context, chatID, repID, note string) (*domain.Chat, *domain.ChatMessage, error)
	// Close moves an open or assigned chat to closed. For an already closed
	// chat it returns the chat and a nil message.
	Close(ctx context.Context, chatID, note string) (*domain.Chat, *domain.ChatMessage, error)
	ListByStatus(ctx context.Context, status domain.ChatStatus) ([]domain.Chat, error)
	ListForCustomer(ctx context.Context, customerID string) ([]domain.Chat, error)
	ListForRep(ctx context.Context, repID string) ([]domain.Chat, error)
	// AppendMessage stores msg unless the chat is closed.
	AppendMessage(ctx context.Context, msg domain.ChatMessage) (*domain.ChatMessage, error)
	Messages(ctx context.Context, chatID string) ([]domain.ChatMessage, error)
	MessageByID(ctx context.Context, id string) (*domain.ChatMessage, error)
}
