package model

import "time"

type MessageReaction struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	MessageID    uint      `gorm:"uniqueIndex:idx_reaction_message_user;not null" json:"message_id"`
	UserID       uint      `gorm:"uniqueIndex:idx_reaction_message_user;not null" json:"user_id"`
	ReactionType string    `gorm:"size:50;not null" json:"reaction_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MessageRead struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	MessageID uint      `gorm:"uniqueIndex:idx_read_message_user;not null" json:"message_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_read_message_user;not null" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

type StarredMessage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_star_user_message;not null" json:"user_id"`
	MessageID uint      `gorm:"uniqueIndex:idx_star_user_message;not null" json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}
