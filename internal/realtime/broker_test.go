package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestBroker_DeliversOnlyToChat(t *testing.T) {
	b := NewBroker()
	var gotA, gotB []string
	unsubA := b.Subscribe("chat-a", func(m domain.ChatMessage) { gotA = append(gotA, m.ID) })
	defer unsubA()
	unsubB := b.Subscribe("chat-b", func(m domain.ChatMessage) { gotB = append(gotB, m.ID) })
	defer unsubB()

	require.NoError(t, b.Publish(context.Background(), domain.ChatMessage{ID: "1", ChatID: "chat-a"}))
	require.NoError(t, b.Publish(context.Background(), domain.ChatMessage{ID: "2", ChatID: "chat-b"}))

	assert.Equal(t, []string{"1"}, gotA)
	assert.Equal(t, []string{"2"}, gotB)
}

func TestBroker_IndependentViewers(t *testing.T) {
	b := NewBroker()
	var customer, rep int
	unsubCustomer := b.Subscribe("c", func(domain.ChatMessage) { customer++ })
	unsubRep := b.Subscribe("c", func(domain.ChatMessage) { rep++ })
	assert.Equal(t, 2, b.Subscribers("c"))

	b.Deliver(domain.ChatMessage{ChatID: "c"})
	unsubCustomer()
	b.Deliver(domain.ChatMessage{ChatID: "c"})
	unsubRep()

	assert.Equal(t, 1, customer)
	assert.Equal(t, 2, rep)
	assert.Equal(t, 0, b.Subscribers("c"))
}

func TestBroker_UnsubscribeIdempotent(t *testing.T) {
	b := NewBroker()
	calls := 0
	unsub := b.Subscribe("c", func(domain.ChatMessage) { calls++ })
	unsub()
	unsub()
	b.Deliver(domain.ChatMessage{ChatID: "c"})
	assert.Equal(t, 0, calls)
}

func TestBroker_ConcurrentSubscribeDeliver(t *testing.T) {
	b := NewBroker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := b.Subscribe("c", func(domain.ChatMessage) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			b.Deliver(domain.ChatMessage{ChatID: "c"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Subscribers("c"))
}
