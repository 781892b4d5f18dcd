// Package presence carries ephemeral typing signals. Events are relayed to
// subscribers and dropped; nothing here writes to durable storage.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tush00nka/bbbab_chatsync/internal/metrics"
	"tush00nka/bbbab_chatsync/internal/model"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const channelPrefix = "typing:"

// Transport is the publish/subscribe channel for typing events.
type Transport interface {
	Publish(ctx context.Context, ev model.TypingEvent) error
	// Listen delivers every event published on any chat until ctx is done.
	Listen(ctx context.Context, handle func(model.TypingEvent)) error
}

// MemoryTransport relays events inside one process.
type MemoryTransport struct {
	mu       sync.RWMutex
	handlers map[int]func(model.TypingEvent)
	nextID   int
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{handlers: make(map[int]func(model.TypingEvent))}
}

func (t *MemoryTransport) Publish(_ context.Context, ev model.TypingEvent) error {
	metrics.ObserveTyping(ev.IsTyping)

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.handlers {
		h(ev)
	}
	return nil
}

func (t *MemoryTransport) Listen(ctx context.Context, handle func(model.TypingEvent)) error {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.handlers[id] = handle
	t.mu.Unlock()

	<-ctx.Done()

	t.mu.Lock()
	delete(t.handlers, id)
	t.mu.Unlock()
	return nil
}

// RedisTransport fans typing events out to every gateway instance.
type RedisTransport struct {
	rdb *redis.Client
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func Channel(chatID uint) string {
	return channelPrefix + strconv.FormatUint(uint64(chatID), 10)
}

func (t *RedisTransport) Publish(ctx context.Context, ev model.TypingEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	metrics.ObserveTyping(ev.IsTyping)
	if err := t.rdb.Publish(ctx, Channel(ev.ChatID), payload).Err(); err != nil {
		return fmt.Errorf("publish typing: %w", err)
	}
	return nil
}

func (t *RedisTransport) Listen(ctx context.Context, handle func(model.TypingEvent)) error {
	pubsub := t.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe typing: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.TypingEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed typing event")
				continue
			}
			if ev.ChatID == 0 {
				id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, channelPrefix), 10, 64)
				if err != nil {
					continue
				}
				ev.ChatID = uint(id)
			}
			handle(ev)
		}
	}
}
