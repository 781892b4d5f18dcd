package repository

import (
	"context"
	"time"

	"tush00nka/bbbab_chatsync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository хранит реакции, прочтения и избранное; все операции идемпотентны
type LedgerRepository interface {
	UpsertReaction(ctx context.Context, messageID, userID uint, reactionType string) (*model.MessageReaction, error)
	DeleteReaction(ctx context.Context, messageID, userID uint) error
	Star(ctx context.Context, userID, messageID uint) error
	Unstar(ctx context.Context, userID, messageID uint) error
	MarkRead(ctx context.Context, messageID, userID uint) error
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) UpsertReaction(ctx context.Context, messageID, userID uint, reactionType string) (*model.MessageReaction, error) {
	now := time.Now()
	reaction := model.MessageReaction{
		MessageID:    messageID,
		UserID:       userID,
		ReactionType: reactionType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reaction_type", "updated_at"}),
	}).Create(&reaction).Error
	if err != nil {
		return nil, err
	}

	return &reaction, nil
}

func (r *ledgerRepository) DeleteReaction(ctx context.Context, messageID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&model.MessageReaction{}).Error
}

func (r *ledgerRepository) Star(ctx context.Context, userID, messageID uint) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.StarredMessage{
		UserID:    userID,
		MessageID: messageID,
		CreatedAt: time.Now(),
	}).Error
}

func (r *ledgerRepository) Unstar(ctx context.Context, userID, messageID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&model.StarredMessage{}).Error
}

func (r *ledgerRepository) MarkRead(ctx context.Context, messageID, userID uint) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.MessageRead{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    time.Now(),
	}).Error
}
