package model

import (
	"time"

	"gorm.io/gorm"
)

// Роли участников чата
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Chat struct {
	gorm.Model
	Name         *string           `json:"name,omitempty"`
	AvatarURL    *string           `json:"avatar_url,omitempty"`
	IsGroup      bool              `json:"is_group"`
	CreatedByID  uint              `json:"created_by_id"`
	Participants []ChatParticipant `json:"participants,omitempty"`
}

// DisplayName возвращает название чата для уведомлений
func (c *Chat) DisplayName() string {
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	if !c.IsGroup {
		return "DM"
	}
	return "group"
}

type ChatParticipant struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	ChatID   uint      `gorm:"uniqueIndex:idx_chat_participant;not null" json:"chat_id"`
	UserID   uint      `gorm:"uniqueIndex:idx_chat_participant;index;not null" json:"user_id"`
	User     *User     `json:"user,omitempty"`
	Role     string    `gorm:"size:16;not null;default:member" json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
