package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/repository"

	"github.com/samber/lo"
)

const (
	MaxContentLength = 5000
	FetchLimit       = 100

	DeleteForMe       = "me"
	DeleteForEveryone = "everyone"
)

// SendInput полезная нагрузка действия send
type SendInput struct {
	ChatID    uint
	Content   *string
	MediaURL  *string
	MediaType *string
	ReplyToID *uint
	ClientID  *string
}

// messageService реализация MessageService
type messageService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	notifier    NotificationService
	publisher   EventPublisher
}

// NewMessageService создает новый экземпляр MessageService
func NewMessageService(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	notifier NotificationService,
	publisher EventPublisher,
) MessageService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &messageService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		notifier:    notifier,
		publisher:   publisher,
	}
}

// Send сохраняет сообщение участника чата и запускает рассылку уведомлений.
// Ошибки рассылки не отменяют отправку.
func (s *messageService) Send(ctx context.Context, senderID uint, in SendInput) (*model.Message, error) {
	content := normalizeOptional(in.Content)
	mediaURL := normalizeOptional(in.MediaURL)
	if content == nil && mediaURL == nil {
		return nil, Errorf(KindValidation, "content or media is required")
	}
	if content != nil && utf8.RuneCountInString(*content) > MaxContentLength {
		return nil, Errorf(KindValidation, "content is longer than %d characters", MaxContentLength)
	}
	if mediaURL != nil && normalizeOptional(in.MediaType) == nil {
		return nil, Errorf(KindValidation, "media_type is required with media_url")
	}

	if err := requireParticipant(ctx, s.chatRepo, in.ChatID, senderID); err != nil {
		return nil, err
	}

	clientID := normalizeOptional(in.ClientID)
	if clientID != nil {
		existing, err := s.messageRepo.FindByClientID(ctx, senderID, *clientID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, Wrap(err, "failed to check client id")
		}
	}

	if in.ReplyToID != nil {
		parent, err := s.messageRepo.GetByID(ctx, *in.ReplyToID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && parent.ChatID != in.ChatID) {
			return nil, Errorf(KindValidation, "reply_to must reference a message in the same chat")
		}
		if err != nil {
			return nil, Wrap(err, "failed to load reply target")
		}
	}

	msg := &model.Message{
		ChatID:    in.ChatID,
		SenderID:  senderID,
		ClientID:  clientID,
		Content:   content,
		MediaURL:  mediaURL,
		ReplyToID: in.ReplyToID,
	}
	if mediaURL != nil {
		msg.MediaType = normalizeOptional(in.MediaType)
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, Wrap(err, "failed to save message")
	}
	msg.Status = model.MessageStatusSent

	s.notifier.MessageCreated(ctx, msg)
	s.publisher.MessageCreated(msg)

	return msg, nil
}

// Edit меняет текст сообщения; чужое и отсутствующее сообщение неразличимы (NotFound)
func (s *messageService) Edit(ctx context.Context, userID, messageID uint, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Errorf(KindValidation, "content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, Errorf(KindValidation, "content is longer than %d characters", MaxContentLength)
	}

	msg, err := s.messageRepo.UpdateContent(ctx, messageID, userID, content)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageMissing
	}
	if err != nil {
		return nil, Wrap(err, "failed to edit message")
	}

	s.publisher.MessageUpdated(msg)
	return msg, nil
}

// Delete: "everyone" удаляет строку (только автор), "me" скрывает сообщение для участника
func (s *messageService) Delete(ctx context.Context, userID, messageID uint, deleteFor string) error {
	switch deleteFor {
	case DeleteForEveryone:
		msg, err := s.messageRepo.GetByID(ctx, messageID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageMissing
		}
		if err != nil {
			return Wrap(err, "failed to load message")
		}

		err = s.messageRepo.DeleteForEveryone(ctx, messageID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageMissing
		}
		if err != nil {
			return Wrap(err, "failed to delete message")
		}

		s.publisher.MessageDeleted(msg.ChatID, messageID)
		return nil

	case DeleteForMe:
		msg, err := s.messageRepo.GetByID(ctx, messageID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageMissing
		}
		if err != nil {
			return Wrap(err, "failed to load message")
		}
		if err := requireParticipant(ctx, s.chatRepo, msg.ChatID, userID); err != nil {
			return err
		}
		if err := s.messageRepo.HideFor(ctx, messageID, userID); err != nil {
			return Wrap(err, "failed to hide message")
		}
		return nil

	default:
		return Errorf(KindValidation, "deleteFor must be %q or %q", DeleteForMe, DeleteForEveryone)
	}
}

// Forward копирует сообщение во все указанные чаты или не копирует никуда
func (s *messageService) Forward(ctx context.Context, userID, messageID uint, toChatIDs []uint) ([]*model.Message, error) {
	targets := lo.Uniq(lo.Filter(toChatIDs, func(id uint, _ int) bool { return id != 0 }))
	if len(targets) == 0 {
		return nil, Errorf(KindValidation, "toChatIds cannot be empty")
	}

	src, err := s.messageRepo.GetByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageMissing
	}
	if err != nil {
		return nil, Wrap(err, "failed to load message")
	}
	if err := requireParticipant(ctx, s.chatRepo, src.ChatID, userID); err != nil {
		return nil, err
	}
	if src.HiddenFor(userID) {
		return nil, ErrMessageMissing
	}

	missing, err := s.chatRepo.MissingMemberships(ctx, userID, targets)
	if err != nil {
		return nil, Wrap(err, "failed to check chat membership")
	}
	if len(missing) > 0 {
		return nil, Errorf(KindAuthorizationDenied, "not a participant of chats %v", missing)
	}

	copies := make([]*model.Message, 0, len(targets))
	for _, chatID := range targets {
		copies = append(copies, &model.Message{
			ChatID:          chatID,
			SenderID:        userID,
			Content:         src.Content,
			MediaURL:        src.MediaURL,
			MediaType:       src.MediaType,
			IsForwarded:     true,
			ForwardedFromID: &src.ID,
		})
	}

	if err := s.messageRepo.CreateForwards(ctx, copies); err != nil {
		return nil, Wrap(err, "failed to forward message")
	}

	for _, msg := range copies {
		msg.Status = model.MessageStatusSent
		s.notifier.MessageCreated(ctx, msg)
		s.publisher.MessageCreated(msg)
	}

	return copies, nil
}

// Fetch возвращает до 100 последних сообщений чата по возрастанию времени
func (s *messageService) Fetch(ctx context.Context, userID, chatID uint) ([]model.Message, error) {
	if err := requireParticipant(ctx, s.chatRepo, chatID, userID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListRecent(ctx, chatID, userID, FetchLimit)
	if err != nil {
		return nil, Wrap(err, "failed to fetch messages")
	}
	return messages, nil
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
