package presence

import (
	"slices"
	"sync"

	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/samber/lo"
)

// Observer is the client-side view of who is typing in the active chat.
type Observer struct {
	mu     sync.RWMutex
	selfID uint
	chatID uint
	typing map[uint]string
}

func NewObserver(selfID uint) *Observer {
	return &Observer{selfID: selfID, typing: make(map[uint]string)}
}

// SetChat switches the active chat and forgets typing state of the previous one.
func (o *Observer) SetChat(chatID uint) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.chatID != chatID {
		o.chatID = chatID
		clear(o.typing)
	}
}

// Apply folds one event into the set and reports whether the set changed.
func (o *Observer) Apply(ev model.TypingEvent) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ev.UserID == o.selfID || ev.ChatID != o.chatID {
		return false
	}

	name, present := o.typing[ev.UserID]
	if ev.IsTyping {
		if present && name == ev.DisplayName {
			return false
		}
		o.typing[ev.UserID] = ev.DisplayName
		return true
	}

	if !present {
		return false
	}
	delete(o.typing, ev.UserID)
	return true
}

// Names returns distinct display names of users currently typing, sorted.
func (o *Observer) Names() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := lo.Uniq(lo.Values(o.typing))
	slices.Sort(names)
	return names
}

// Reset drops all typing state; called after a reconnect since events are not replayed.
// Reports whether anything was dropped.
func (o *Observer) Reset() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.typing) == 0 {
		return false
	}
	clear(o.typing)
	return true
}
