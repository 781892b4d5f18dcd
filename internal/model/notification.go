package model

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID        uint              `gorm:"primarykey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"user_id"`
	ChatID    uint              `json:"chat_id"`
	MessageID uint              `json:"message_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}
