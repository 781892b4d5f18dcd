package repository

import (
	"context"

	"tush00nka/bbbab_chatsync/internal/model"

	"gorm.io/gorm"
)

// NotificationRepository только записывает уведомления; доставка push/email внешняя
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []model.Notification) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(notifications, 100).Error
}
