package service

import (
	"context"

	"tush00nka/bbbab_chatsync/internal/model"
)

type ChatService interface {
	CreateGroup(ctx context.Context, creatorID uint, in GroupInput) (*GroupResult, error)
	CreateDirect(ctx context.Context, userID, peerID uint) (*model.Chat, bool, error)
	ListChats(ctx context.Context, userID uint) ([]model.Chat, error)
	RequireParticipant(ctx context.Context, chatID, userID uint) error
}

type MessageService interface {
	Send(ctx context.Context, senderID uint, in SendInput) (*model.Message, error)
	Edit(ctx context.Context, userID, messageID uint, content string) (*model.Message, error)
	Delete(ctx context.Context, userID, messageID uint, deleteFor string) error
	Forward(ctx context.Context, userID, messageID uint, toChatIDs []uint) ([]*model.Message, error)
	Fetch(ctx context.Context, userID, chatID uint) ([]model.Message, error)
}

type LedgerService interface {
	React(ctx context.Context, userID, messageID uint, reactionType string) (*model.MessageReaction, error)
	Unreact(ctx context.Context, userID, messageID uint) error
	Star(ctx context.Context, userID, messageID uint) error
	Unstar(ctx context.Context, userID, messageID uint) error
	MarkRead(ctx context.Context, userID, messageID uint) error
}

type NotificationService interface {
	MessageCreated(ctx context.Context, msg *model.Message)
}

// EventPublisher рассылает живые события подключенным клиентам; доставка не гарантируется
type EventPublisher interface {
	MessageCreated(msg *model.Message)
	MessageUpdated(msg *model.Message)
	MessageDeleted(chatID, messageID uint)
}

type noopPublisher struct{}

func (noopPublisher) MessageCreated(*model.Message) {}
func (noopPublisher) MessageUpdated(*model.Message) {}
func (noopPublisher) MessageDeleted(uint, uint) {}
