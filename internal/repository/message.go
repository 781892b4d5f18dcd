package repository

import (
	"context"
	"errors"
	"time"

	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	CreateForwards(ctx context.Context, msgs []*model.Message) error
	GetByID(ctx context.Context, messageID uint) (*model.Message, error)
	FindByClientID(ctx context.Context, senderID uint, clientID string) (*model.Message, error)
	UpdateContent(ctx context.Context, messageID, senderID uint, content string) (*model.Message, error)
	DeleteForEveryone(ctx context.Context, messageID, senderID uint) error
	HideFor(ctx context.Context, messageID, userID uint) error
	ListRecent(ctx context.Context, chatID, viewerID uint, limit int) ([]model.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create сохраняет сообщение и поднимает updated_at чата в одной транзакции.
// Повтор client_id от того же отправителя возвращает уже сохраненную запись.
func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	prepareInsert(msg)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return err
		}
		return touchChat(tx, msg.ChatID, msg.CreatedAt)
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) && msg.ClientID != nil {
		existing, findErr := r.FindByClientID(ctx, msg.SenderID, *msg.ClientID)
		if findErr != nil {
			return err
		}
		*msg = *existing
		return nil
	}
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Preload("Sender").First(msg, msg.ID).Error
}

// CreateForwards пишет копии во все чаты одной операцией: либо все, либо ничего
func (r *messageRepository) CreateForwards(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, msg := range msgs {
			prepareInsert(msg)
		}
		if err := tx.Omit("Sender").Create(&msgs).Error; err != nil {
			return err
		}

		chatIDs := lo.Uniq(lo.Map(msgs, func(m *model.Message, _ int) uint { return m.ChatID }))
		return tx.Model(&model.Chat{}).
			Where("id IN ?", chatIDs).
			Update("updated_at", msgs[0].CreatedAt).Error
	})
}

func (r *messageRepository) GetByID(ctx context.Context, messageID uint) (*model.Message, error) {
	var msg model.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&msg, messageID).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (r *messageRepository) FindByClientID(ctx context.Context, senderID uint, clientID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).Preload("Sender").
		Where("sender_id = ? AND client_id = ?", senderID, clientID).
		First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// UpdateContent меняет текст только у собственного сообщения отправителя
func (r *messageRepository) UpdateContent(ctx context.Context, messageID, senderID uint, content string) (*model.Message, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND sender_id = ?", messageID, senderID).
		Updates(map[string]any{
			"content":    content,
			"is_edited":  true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, messageID)
}

// DeleteForEveryone удаляет строку сообщения и его записи в журналах
func (r *messageRepository) DeleteForEveryone(ctx context.Context, messageID, senderID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND sender_id = ?", messageID, senderID).Delete(&model.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		for _, table := range []any{&model.MessageReaction{}, &model.MessageRead{}, &model.StarredMessage{}} {
			if err := tx.Where("message_id = ?", messageID).Delete(table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// HideFor добавляет пользователя в deleted_for; повторный вызов ничего не меняет
func (r *messageRepository) HideFor(ctx context.Context, messageID, userID uint) error {
	uid := int64(userID)
	return r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND NOT (?::bigint = ANY(deleted_for))", messageID, uid).
		UpdateColumn("deleted_for", gorm.Expr("array_append(deleted_for, ?::bigint)", uid)).Error
}

// ListRecent возвращает последние limit сообщений чата по возрастанию времени
func (r *messageRepository) ListRecent(ctx context.Context, chatID, viewerID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).Preload("Sender").
		Where("chat_id = ? AND NOT (?::bigint = ANY(deleted_for))", chatID, int64(viewerID)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return lo.Reverse(messages), nil
}

func prepareInsert(msg *model.Message) {
	if msg.DeletedFor == nil {
		msg.DeletedFor = pq.Int64Array{}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.UpdatedAt = msg.CreatedAt
}

func touchChat(tx *gorm.DB, chatID uint, at time.Time) error {
	return tx.Model(&model.Chat{}).Where("id = ?", chatID).Update("updated_at", at).Error
}
