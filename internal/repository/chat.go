package repository

import (
	"context"
	"time"

	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	Delete(ctx context.Context, chatID uint) error
	GetByID(ctx context.Context, chatID uint) (*model.Chat, error)
	AddParticipant(ctx context.Context, chatID, userID uint, role string) error
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error)
	MissingMemberships(ctx context.Context, userID uint, chatIDs []uint) ([]uint, error)
	ListForUser(ctx context.Context, userID uint) ([]model.Chat, error)
	FindDirect(ctx context.Context, user1ID, user2ID uint) (*model.Chat, error)
	CreateDirect(ctx context.Context, chat *model.Chat, initiatorID, peerID uint) error
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Omit("Participants").Create(chat).Error
}

// Delete удаляет чат физически вместе с участниками
func (r *chatRepository) Delete(ctx context.Context, chatID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.ChatParticipant{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Chat{}, chatID).Error
	})
}

func (r *chatRepository) GetByID(ctx context.Context, chatID uint) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).First(&chat, chatID).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

func (r *chatRepository) AddParticipant(ctx context.Context, chatID, userID uint, role string) error {
	return r.db.WithContext(ctx).Create(&model.ChatParticipant{
		ChatID:   chatID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}).Error
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *chatRepository) ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("chat_id = ?", chatID).
		Order("joined_at").
		Pluck("user_id", &ids).Error
	return ids, err
}

// MissingMemberships возвращает чаты из списка, в которых пользователь не состоит
func (r *chatRepository) MissingMemberships(ctx context.Context, userID uint, chatIDs []uint) ([]uint, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}

	var member []uint
	err := r.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("user_id = ? AND chat_id IN ?", userID, chatIDs).
		Pluck("chat_id", &member).Error
	if err != nil {
		return nil, err
	}

	return lo.Without(chatIDs, member...), nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uint) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants cp ON cp.chat_id = chats.id AND cp.user_id = ?", userID).
		Preload("Participants").
		Order("chats.updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *chatRepository) FindDirect(ctx context.Context, user1ID, user2ID uint) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants a ON a.chat_id = chats.id AND a.user_id = ?", user1ID).
		Joins("JOIN chat_participants b ON b.chat_id = chats.id AND b.user_id = ?", user2ID).
		Where("chats.is_group = ?", false).
		First(&chat).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

// CreateDirect создает личный чат и обоих участников в одной транзакции
func (r *chatRepository) CreateDirect(ctx context.Context, chat *model.Chat, initiatorID, peerID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(chat).Error; err != nil {
			return err
		}

		now := time.Now()
		participants := []model.ChatParticipant{
			{ChatID: chat.ID, UserID: initiatorID, Role: model.RoleAdmin, JoinedAt: now},
			{ChatID: chat.ID, UserID: peerID, Role: model.RoleMember, JoinedAt: now},
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}

		chat.Participants = participants
		return nil
	})
}
