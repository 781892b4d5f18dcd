package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/repository"
)

const maxReactionLength = 50

type ledgerService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	ledgerRepo  repository.LedgerRepository
}

func NewLedgerService(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	ledgerRepo repository.LedgerRepository,
) LedgerService {
	return &ledgerService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		ledgerRepo:  ledgerRepo,
	}
}

// React заменяет прежнюю реакцию пользователя, а не добавляет вторую
func (s *ledgerService) React(ctx context.Context, userID, messageID uint, reactionType string) (*model.MessageReaction, error) {
	reactionType = strings.TrimSpace(reactionType)
	if n := utf8.RuneCountInString(reactionType); n == 0 || n > maxReactionLength {
		return nil, Errorf(KindValidation, "reactionType must be 1-%d characters", maxReactionLength)
	}
	if err := s.visible(ctx, userID, messageID); err != nil {
		return nil, err
	}

	reaction, err := s.ledgerRepo.UpsertReaction(ctx, messageID, userID, reactionType)
	if err != nil {
		return nil, Wrap(err, "failed to save reaction")
	}
	return reaction, nil
}

func (s *ledgerService) Unreact(ctx context.Context, userID, messageID uint) error {
	if err := s.visible(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.ledgerRepo.DeleteReaction(ctx, messageID, userID); err != nil {
		return Wrap(err, "failed to remove reaction")
	}
	return nil
}

func (s *ledgerService) Star(ctx context.Context, userID, messageID uint) error {
	if err := s.visible(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.ledgerRepo.Star(ctx, userID, messageID); err != nil {
		return Wrap(err, "failed to star message")
	}
	return nil
}

func (s *ledgerService) Unstar(ctx context.Context, userID, messageID uint) error {
	if err := s.visible(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.ledgerRepo.Unstar(ctx, userID, messageID); err != nil {
		return Wrap(err, "failed to unstar message")
	}
	return nil
}

// MarkRead повторная отметка ничего не меняет и не считается ошибкой
func (s *ledgerService) MarkRead(ctx context.Context, userID, messageID uint) error {
	if err := s.visible(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.ledgerRepo.MarkRead(ctx, messageID, userID); err != nil {
		return Wrap(err, "failed to mark message as read")
	}
	return nil
}

// visible проверяет, что сообщение существует и пользователь состоит в его чате
func (s *ledgerService) visible(ctx context.Context, userID, messageID uint) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMessageMissing
	}
	if err != nil {
		return Wrap(err, "failed to load message")
	}
	return requireParticipant(ctx, s.chatRepo, msg.ChatID, userID)
}
