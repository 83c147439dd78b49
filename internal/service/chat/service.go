// Package chat runs the support chat workflow: customers open chats,
// representatives claim them, and either side exchanges messages until close.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/authz"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/realtime"
	chatrepo "storefront/internal/repository/chat"
)

const MaxContentRunes = 2000

// Subscriber attaches a viewer to a chat's live messages.
type Subscriber interface {
	Subscribe(chatID string, fn realtime.Handler) func()
}

// Recorder receives chat metrics. metrics.AppMetrics satisfies it.
type Recorder interface {
	RecordChatMessage(ctx context.Context, sender domain.SenderType)
	RecordChatClaimed(ctx context.Context)
}

type Service struct {
	repo      chatrepo.Repository
	publisher realtime.Publisher
	broker    Subscriber
	recorder  Recorder
	logger    zerolog.Logger
}

func New(repo chatrepo.Repository, publisher realtime.Publisher, broker Subscriber, recorder Recorder, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = logging.Component(*logger, "chat")
	}
	return &Service{repo: repo, publisher: publisher, broker: broker, recorder: recorder, logger: lg}
}

// Start opens a chat for the customer with its first message.
func (s *Service) Start(ctx context.Context, customerID, firstMessage string) (*domain.Chat, *domain.ChatMessage, error) {
	if customerID == "" {
		return nil, nil, fmt.Errorf("%w: customer required", domain.ErrValidation)
	}
	content, err := cleanContent(firstMessage)
	if err != nil {
		return nil, nil, err
	}
	chat, msg, err := s.repo.Create(ctx, customerID, content)
	if err != nil {
		return nil, nil, err
	}
	s.announce(ctx, *msg)
	return chat, msg, nil
}

// Claim assigns an open chat to the representative. Losing a race yields
// ErrChatAlreadyClaimed; a rep already serving a chat gets ErrRepBusy.
func (s *Service) Claim(ctx context.Context, chatID, repID string) (*domain.Chat, error) {
	if _, err := uuid.Parse(chatID); err != nil {
		return nil, domain.ErrNotFound
	}
	current, err := s.repo.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	// The repository claim is conditional and settles races; this only
	// rejects claims the current state already rules out.
	if err := current.Assign(repID); err != nil {
		s.logger.Debug().Err(err).Str("chat_id", chatID).Str("rep_id", repID).Msg("claim rejected")
		return nil, err
	}
	chat, note, err := s.repo.Claim(ctx, chatID, repID, "A representative joined the chat.")
	if err != nil {
		s.logger.Debug().Err(err).Str("chat_id", chatID).Str("rep_id", repID).Msg("claim rejected")
		return nil, err
	}
	if s.recorder != nil {
		s.recorder.RecordChatClaimed(ctx)
	}
	s.announce(ctx, *note)
	return chat, nil
}

// Close ends the chat. Closing a closed chat returns it unchanged.
func (s *Service) Close(ctx context.Context, chatID string, p authz.Principal) (*domain.Chat, error) {
	chat, err := s.Get(ctx, chatID, p)
	if err != nil {
		return nil, err
	}
	if !canClose(chat, p) {
		return nil, domain.ErrForbidden
	}
	if chat.Status == domain.ChatClosed {
		return chat, nil
	}
	if err := chat.Close(time.Now()); err != nil {
		return nil, err
	}
	chat, note, err := s.repo.Close(ctx, chatID, "The chat was closed.")
	if err != nil {
		return nil, err
	}
	if note != nil {
		s.announce(ctx, *note)
	}
	return chat, nil
}

// Send appends a message from p to the chat.
func (s *Service) Send(ctx context.Context, chatID string, p authz.Principal, content string) (*domain.ChatMessage, error) {
	body, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	chat, err := s.Get(ctx, chatID, p)
	if err != nil {
		return nil, err
	}
	sender, ok := senderFor(chat, p)
	if !ok {
		return nil, domain.ErrForbidden
	}
	if chat.Status == domain.ChatClosed {
		return nil, domain.ErrChatClosed
	}
	msg, err := s.repo.AppendMessage(ctx, domain.ChatMessage{
		ChatID:     chatID,
		SenderID:   p.CustomerID,
		SenderType: sender,
		Content:    body,
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, *msg)
	return msg, nil
}

// Get returns the chat when p may view it.
func (s *Service) Get(ctx context.Context, chatID string, p authz.Principal) (*domain.Chat, error) {
	if _, err := uuid.Parse(chatID); err != nil {
		return nil, domain.ErrNotFound
	}
	chat, err := s.repo.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !canView(chat, p) {
		return nil, domain.ErrNotFound
	}
	return chat, nil
}

// Messages returns the transcript in display order.
func (s *Service) Messages(ctx context.Context, chatID string, p authz.Principal) ([]domain.ChatMessage, error) {
	if _, err := s.Get(ctx, chatID, p); err != nil {
		return nil, err
	}
	msgs, err := s.repo.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

// ListOpen always reads through to storage.
func (s *Service) ListOpen(ctx context.Context) ([]domain.Chat, error) {
	return s.repo.ListByStatus(ctx, domain.ChatOpen)
}

func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]domain.Chat, error) {
	return s.repo.ListForCustomer(ctx, customerID)
}

func (s *Service) ListForRep(ctx context.Context, repID string) ([]domain.Chat, error) {
	return s.repo.ListForRep(ctx, repID)
}

// Subscribe attaches fn to the chat after checking p may view it.
func (s *Service) Subscribe(ctx context.Context, chatID string, p authz.Principal, fn realtime.Handler) (func(), error) {
	if _, err := s.Get(ctx, chatID, p); err != nil {
		return nil, err
	}
	return s.broker.Subscribe(chatID, fn), nil
}

// announce pushes a stored message to live viewers. Push failures are logged;
// viewers catch up on their next reload.
func (s *Service) announce(ctx context.Context, msg domain.ChatMessage) {
	if s.recorder != nil {
		s.recorder.RecordChatMessage(ctx, msg.SenderType)
	}
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, msg); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", msg.ChatID).Str("message_id", msg.ID).Msg("push failed")
	}
}

func cleanContent(content string) (string, error) {
	body := strings.TrimSpace(content)
	n := utf8.RuneCountInString(body)
	if n == 0 {
		return "", fmt.Errorf("%w: message is empty", domain.ErrValidation)
	}
	if n > MaxContentRunes {
		return "", fmt.Errorf("%w: message longer than %d characters", domain.ErrValidation, MaxContentRunes)
	}
	return body, nil
}

func isAssignedRep(c *domain.Chat, p authz.Principal) bool {
	return c.RepID != nil && *c.RepID == p.CustomerID
}

func canView(c *domain.Chat, p authz.Principal) bool {
	if !p.Authenticated() {
		return false
	}
	if c.CustomerID == p.CustomerID || isAssignedRep(c, p) {
		return true
	}
	return p.HasAnyRole(domain.RoleAdmin, domain.RoleCustomerService)
}

func canClose(c *domain.Chat, p authz.Principal) bool {
	return c.CustomerID == p.CustomerID || isAssignedRep(c, p) || p.HasRole(domain.RoleAdmin)
}

// senderFor decides how p's messages are labelled. Unassigned reps must claim
// the chat before writing to it.
func senderFor(c *domain.Chat, p authz.Principal) (domain.SenderType, bool) {
	switch {
	case c.CustomerID == p.CustomerID:
		return domain.SenderCustomer, true
	case isAssignedRep(c, p), p.HasRole(domain.RoleAdmin):
		return domain.SenderRep, true
	}
	return "", false
}
