package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const maxGroupNameLength = 100

// GroupInput параметры создания группы
type GroupInput struct {
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	MemberIDs []uint  `json:"member_ids"`
}

// GroupResult результат создания группы; FailedMemberIDs не приводят к откату
type GroupResult struct {
	Chat            *model.Chat `json:"chat"`
	FailedMemberIDs []uint      `json:"failed_member_ids,omitempty"`
	Warning         string      `json:"warning,omitempty"`
}

// chatService реализация ChatService
type chatService struct {
	chatRepo repository.ChatRepository
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(chatRepo repository.ChatRepository) ChatService {
	return &chatService{chatRepo: chatRepo}
}

// CreateGroup создает чат, затем добавляет создателя администратором, затем остальных.
// Если администратора добавить не удалось, чат удаляется.
func (s *chatService) CreateGroup(ctx context.Context, creatorID uint, in GroupInput) (*GroupResult, error) {
	if creatorID == 0 {
		return nil, ErrUnauthorized
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Errorf(KindValidation, "group name cannot be empty")
	}
	if len([]rune(name)) > maxGroupNameLength {
		return nil, Errorf(KindValidation, "group name is longer than %d characters", maxGroupNameLength)
	}

	members := lo.Uniq(lo.Filter(in.MemberIDs, func(id uint, _ int) bool {
		return id != 0 && id != creatorID
	}))
	if len(members) == 0 {
		return nil, Errorf(KindValidation, "at least one other member is required")
	}

	chat := &model.Chat{
		Name:        &name,
		AvatarURL:   in.AvatarURL,
		IsGroup:     true,
		CreatedByID: creatorID,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, Wrap(err, "failed to create group")
	}

	if err := s.chatRepo.AddParticipant(ctx, chat.ID, creatorID, model.RoleAdmin); err != nil {
		// группа без администратора недопустима
		if delErr := s.chatRepo.Delete(context.WithoutCancel(ctx), chat.ID); delErr != nil {
			log.Error().Err(delErr).Uint("chat_id", chat.ID).Msg("Failed to roll back group without admin")
		}
		return nil, Wrap(err, "failed to add creator as admin")
	}
	chat.Participants = append(chat.Participants, model.ChatParticipant{
		ChatID: chat.ID, UserID: creatorID, Role: model.RoleAdmin,
	})

	result := &GroupResult{Chat: chat}
	for _, memberID := range members {
		if err := s.chatRepo.AddParticipant(ctx, chat.ID, memberID, model.RoleMember); err != nil {
			log.Warn().Err(err).Uint("chat_id", chat.ID).Uint("user_id", memberID).Msg("Failed to add group member")
			result.FailedMemberIDs = append(result.FailedMemberIDs, memberID)
			continue
		}
		chat.Participants = append(chat.Participants, model.ChatParticipant{
			ChatID: chat.ID, UserID: memberID, Role: model.RoleMember,
		})
	}

	if len(result.FailedMemberIDs) > 0 {
		result.Warning = fmt.Sprintf("%d member(s) could not be added", len(result.FailedMemberIDs))
	}

	return result, nil
}

// CreateDirect находит или создает личный чат двух пользователей
func (s *chatService) CreateDirect(ctx context.Context, userID, peerID uint) (*model.Chat, bool, error) {
	if userID == 0 {
		return nil, false, ErrUnauthorized
	}
	if peerID == 0 || peerID == userID {
		return nil, false, Errorf(KindValidation, "invalid peer")
	}

	chat, err := s.chatRepo.FindDirect(ctx, userID, peerID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, Wrap(err, "failed to look up direct chat")
	}

	chat = &model.Chat{CreatedByID: userID}
	if err := s.chatRepo.CreateDirect(ctx, chat, userID, peerID); err != nil {
		return nil, false, Wrap(err, "failed to create direct chat")
	}
	return chat, true, nil
}

// ListChats возвращает чаты пользователя, последние активные первыми
func (s *chatService) ListChats(ctx context.Context, userID uint) ([]model.Chat, error) {
	chats, err := s.chatRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, Wrap(err, "failed to list chats")
	}
	return chats, nil
}

func (s *chatService) RequireParticipant(ctx context.Context, chatID, userID uint) error {
	return requireParticipant(ctx, s.chatRepo, chatID, userID)
}

func requireParticipant(ctx context.Context, chatRepo repository.ChatRepository, chatID, userID uint) error {
	ok, err := chatRepo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return Wrap(err, "failed to check chat membership")
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}
