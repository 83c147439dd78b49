// Package realtime fans chat messages out to the viewers subscribed to a chat.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"storefront/internal/domain"
)

// Handler receives one pushed message. It must not block.
type Handler func(domain.ChatMessage)

// Publisher announces a newly stored message.
type Publisher interface {
	Publish(ctx context.Context, msg domain.ChatMessage) error
}

type subscription struct {
	fn     Handler
	active atomic.Bool
}

// Broker is an in-process fan-out keyed by chat id. It is the Publisher when
// the API runs as a single instance.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*subscription
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[uint64]*subscription{}}
}

// Subscribe registers fn for messages of chatID and returns its unsubscribe
// function. Unsubscribe may be called any number of times; deliveries racing
// with it are dropped.
func (b *Broker) Subscribe(chatID string, fn Handler) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[chatID] == nil {
		b.subs[chatID] = map[uint64]*subscription{}
	}
	b.subs[chatID][id] = sub
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.mu.Lock()
			delete(b.subs[chatID], id)
			if len(b.subs[chatID]) == 0 {
				delete(b.subs, chatID)
			}
			b.mu.Unlock()
		})
	}
}

func (b *Broker) Publish(_ context.Context, msg domain.ChatMessage) error {
	b.Deliver(msg)
	return nil
}

// Deliver hands msg to every current subscriber of its chat.
func (b *Broker) Deliver(msg domain.ChatMessage) {
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs[msg.ChatID]))
	for _, s := range b.subs[msg.ChatID] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if s.active.Load() {
			s.fn(msg)
		}
	}
}

// Subscribers reports how many viewers are attached to chatID.
func (b *Broker) Subscribers(chatID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[chatID])
}
