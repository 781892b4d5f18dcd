package presence

import (
	"context"
	"testing"
	"time"

	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverSetSemantics(t *testing.T) {
	o := NewObserver(1)
	o.SetChat(10)

	assert.True(t, o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, DisplayName: "Bob", IsTyping: true}))
	assert.False(t, o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, DisplayName: "Bob", IsTyping: true}))
	assert.True(t, o.Apply(model.TypingEvent{ChatID: 10, UserID: 3, DisplayName: "Ann", IsTyping: true}))
	assert.Equal(t, []string{"Ann", "Bob"}, o.Names())

	assert.True(t, o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, IsTyping: false}))
	assert.False(t, o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, IsTyping: false}))
	assert.Equal(t, []string{"Ann"}, o.Names())
}

func TestObserverNamesAreDistinct(t *testing.T) {
	o := NewObserver(1)
	o.SetChat(10)

	o.Apply(model.TypingEvent{ChatID: 10, UserID: 4, DisplayName: "Sam", IsTyping: true})
	o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, DisplayName: "Bob", IsTyping: true})
	o.Apply(model.TypingEvent{ChatID: 10, UserID: 3, DisplayName: "Bob", IsTyping: true})
	assert.Equal(t, []string{"Bob", "Sam"}, o.Names())

	o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, IsTyping: false})
	assert.Equal(t, []string{"Bob", "Sam"}, o.Names())
}

func TestObserverIgnoresSelfAndOtherChats(t *testing.T) {
	o := NewObserver(1)
	o.SetChat(10)

	assert.False(t, o.Apply(model.TypingEvent{ChatID: 10, UserID: 1, DisplayName: "Me", IsTyping: true}))
	assert.False(t, o.Apply(model.TypingEvent{ChatID: 11, UserID: 2, DisplayName: "Bob", IsTyping: true}))
	assert.Empty(t, o.Names())
}

func TestObserverResetAndSwitch(t *testing.T) {
	o := NewObserver(1)
	o.SetChat(10)
	o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, DisplayName: "Bob", IsTyping: true})

	assert.True(t, o.Reset())
	assert.False(t, o.Reset())
	assert.Empty(t, o.Names())

	o.Apply(model.TypingEvent{ChatID: 10, UserID: 2, DisplayName: "Bob", IsTyping: true})
	o.SetChat(11)
	assert.Empty(t, o.Names())
}

func TestMemoryTransportRelays(t *testing.T) {
	tr := NewMemoryTransport()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan model.TypingEvent, 1)
	go tr.Listen(ctx, func(ev model.TypingEvent) { got <- ev })

	require.Eventually(t, func() bool {
		tr.mu.RLock()
		defer tr.mu.RUnlock()
		return len(tr.handlers) == 1
	}, time.Second, 5*time.Millisecond)

	ev := model.TypingEvent{ChatID: 10, UserID: 2, DisplayName: "Bob", IsTyping: true}
	require.NoError(t, tr.Publish(ctx, ev))

	select {
	case received := <-got:
		assert.Equal(t, ev, received)
	case <-time.After(time.Second):
		t.Fatal("typing event was not delivered")
	}
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "typing:42", Channel(42))
}
