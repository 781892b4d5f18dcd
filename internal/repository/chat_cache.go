package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const participantsTTL = 10 * time.Minute

// cachedChatRepository держит состав участников чата в redis-множестве.
// Проверка участия выполняется на каждом действии шлюза, поэтому кешируется.
type cachedChatRepository struct {
	ChatRepository
	rdb *redis.Client
}

// NewCachedChatRepository оборачивает репозиторий чатов кешем участников
func NewCachedChatRepository(base ChatRepository, rdb *redis.Client) ChatRepository {
	return &cachedChatRepository{ChatRepository: base, rdb: rdb}
}

func participantsKey(chatID uint) string {
	return fmt.Sprintf("chat:%d:participants", chatID)
}

func (r *cachedChatRepository) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, participantsKey(chatID), userID).Result()
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		log.Warn().Err(err).Uint("chat_id", chatID).Msg("Participant cache unavailable, using database")
	}

	// отрицательный ответ кеша проверяется в базе: набор мог быть сохранен
	// конкурентным чтением уже после инвалидации и не знать о новом участнике
	ids, err := r.ChatRepository.ParticipantIDs(ctx, chatID)
	if err != nil {
		return false, err
	}
	member := lo.Contains(ids, userID)
	if member {
		r.store(ctx, chatID, ids)
	}
	return member, nil
}

func (r *cachedChatRepository) ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error) {
	key := participantsKey(chatID)

	members, err := r.rdb.SMembers(ctx, key).Result()
	if err == nil && len(members) > 0 {
		ids := make([]uint, 0, len(members))
		for _, m := range members {
			id, convErr := strconv.ParseUint(m, 10, 64)
			if convErr != nil {
				continue
			}
			ids = append(ids, uint(id))
		}
		return ids, nil
	}

	ids, err := r.ChatRepository.ParticipantIDs(ctx, chatID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, chatID, ids)
	return ids, nil
}

func (r *cachedChatRepository) AddParticipant(ctx context.Context, chatID, userID uint, role string) error {
	if err := r.ChatRepository.AddParticipant(ctx, chatID, userID, role); err != nil {
		return err
	}
	r.invalidate(ctx, chatID)
	return nil
}

func (r *cachedChatRepository) Delete(ctx context.Context, chatID uint) error {
	if err := r.ChatRepository.Delete(ctx, chatID); err != nil {
		return err
	}
	r.invalidate(ctx, chatID)
	return nil
}

func (r *cachedChatRepository) store(ctx context.Context, chatID uint, ids []uint) {
	if len(ids) == 0 {
		return
	}
	key := participantsKey(chatID)
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, participantsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Uint("chat_id", chatID).Msg("Failed to cache participants")
	}
}

func (r *cachedChatRepository) invalidate(ctx context.Context, chatID uint) {
	if err := r.rdb.Del(ctx, participantsKey(chatID)).Err(); err != nil {
		log.Warn().Err(err).Uint("chat_id", chatID).Msg("Failed to invalidate participants cache")
	}
}
