package domain

import (
	"fmt"
	"sort"
	"time"
)

type ChatStatus string

const (
	ChatOpen     ChatStatus = "open"
	ChatAssigned ChatStatus = "assigned"
	ChatClosed   ChatStatus = "closed"
)

// chatTransitions lists the legal next states. closed->closed is accepted as a
// no-op so closing twice is harmless; nothing ever returns to open.
var chatTransitions = map[ChatStatus]map[ChatStatus]bool{
	ChatOpen: {
		ChatAssigned: true,
		ChatClosed:   true,
	},
	ChatAssigned: {
		ChatClosed: true,
	},
	ChatClosed: {
		ChatClosed: true,
	},
}

// CanTransition reports whether moving from s to next is allowed.
func (s ChatStatus) CanTransition(next ChatStatus) bool {
	return chatTransitions[s][next]
}

type Chat struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerId"`
	RepID      *string    `json:"repId,omitempty"`
	Status     ChatStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	ClosedAt   *time.Time `json:"closedAt,omitempty"`
}

// Assign moves an open chat to assigned and sets the representative in the
// same step. It never leaves the chat half-updated.
func (c *Chat) Assign(repID string) error {
	if repID == "" {
		return fmt.Errorf("%w: rep id required", ErrValidation)
	}
	if c.Status == ChatAssigned {
		return ErrChatAlreadyClaimed
	}
	if !c.Status.CanTransition(ChatAssigned) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, ChatAssigned)
	}
	c.Status = ChatAssigned
	c.RepID = &repID
	return nil
}

// Close moves the chat to the terminal state. Closing a closed chat is a no-op.
func (c *Chat) Close(at time.Time) error {
	if !c.Status.CanTransition(ChatClosed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, ChatClosed)
	}
	if c.Status != ChatClosed {
		c.Status = ChatClosed
		c.ClosedAt = &at
	}
	return nil
}

type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderRep      SenderType = "rep"
	SenderSystem   SenderType = "system"
)

// ChatMessage is append-only. Seq is a server-assigned insertion counter used
// to break ties between equal timestamps.
type ChatMessage struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chatId"`
	SenderID   string     `json:"senderId"`
	SenderType SenderType `json:"senderType"`
	Content    string     `json:"content"`
	Seq        int64      `json:"seq"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// SortMessages orders messages by creation time, then insertion sequence, then id.
func SortMessages(msgs []ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.ID < b.ID
	})
}
