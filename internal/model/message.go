package model

import (
	"time"

	"github.com/lib/pq"
)

// Статусы доставки сообщения, наблюдаемые клиентом
const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

type Message struct {
	ID              uint          `gorm:"primarykey" json:"id"`
	ChatID          uint          `gorm:"index;not null" json:"chat_id"`
	SenderID        uint          `gorm:"index;not null;uniqueIndex:idx_sender_client" json:"sender_id"`
	Sender          *User         `json:"sender,omitempty"`
	ClientID        *string       `gorm:"size:64;uniqueIndex:idx_sender_client" json:"client_id,omitempty"`
	Content         *string       `gorm:"type:text" json:"content,omitempty"`
	MediaURL        *string       `json:"media_url,omitempty"`
	MediaType       *string       `gorm:"size:16" json:"media_type,omitempty"`
	ReplyToID       *uint         `json:"reply_to,omitempty"`
	IsEdited        bool          `json:"is_edited"`
	IsForwarded     bool          `json:"is_forwarded"`
	ForwardedFromID *uint         `json:"forwarded_from_id,omitempty"`
	DeletedFor      pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"-"`
	CreatedAt       time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Status          string        `gorm:"-" json:"status,omitempty"`
}

// HasBody проверяет, что сообщение содержит текст или медиа
func (m *Message) HasBody() bool {
	return (m.Content != nil && *m.Content != "") || (m.MediaURL != nil && *m.MediaURL != "")
}

// HiddenFor проверяет, скрыл ли пользователь сообщение у себя
func (m *Message) HiddenFor(userID uint) bool {
	for _, id := range m.DeletedFor {
		if id == int64(userID) {
			return true
		}
	}
	return false
}
