package model

import "time"

// Статусы записи в исходящей очереди клиента
const (
	QueueStatusPending = "pending"
	QueueStatusSending = "sending"
	QueueStatusSent    = "sent"
	QueueStatusFailed  = "failed"
)

// QueuedMessage живет только на клиенте, пока сервер не подтвердит сообщение
type QueuedMessage struct {
	TempID       string    `json:"temp_id"`
	UserID       uint      `json:"user_id"`
	ChatID       uint      `json:"chat_id"`
	Content      *string   `json:"content,omitempty"`
	MediaURL     *string   `json:"media_url,omitempty"`
	MediaType    *string   `json:"media_type,omitempty"`
	ReplyToID    *uint     `json:"reply_to,omitempty"`
	Status       string    `json:"status"`
	RetryCount   int       `json:"retry_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TypingEvent никогда не сохраняется
type TypingEvent struct {
	ChatID      uint   `json:"chat_id"`
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsTyping    bool   `json:"is_typing"`
}
