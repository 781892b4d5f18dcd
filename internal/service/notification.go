package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"tush00nka/bbbab_chatsync/internal/metrics"
	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

const maxSummaryLength = 120

type notificationService struct {
	chatRepo         repository.ChatRepository
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
) NotificationService {
	return &notificationService{
		chatRepo:         chatRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
	}
}

// MessageCreated пишет по уведомлению каждому участнику, кроме отправителя.
// Ошибки только логируются.
func (s *notificationService) MessageCreated(ctx context.Context, msg *model.Message) {
	logger := log.With().Uint("chat_id", msg.ChatID).Uint("message_id", msg.ID).Logger()

	chat, err := s.chatRepo.GetByID(ctx, msg.ChatID)
	if err != nil {
		logger.Warn().Err(err).Msg("Fan-out skipped, chat not loaded")
		metrics.NotificationFailures.Inc()
		return
	}

	participants, err := s.chatRepo.ParticipantIDs(ctx, msg.ChatID)
	if err != nil {
		logger.Warn().Err(err).Msg("Fan-out skipped, participants not loaded")
		metrics.NotificationFailures.Inc()
		return
	}

	recipients := lo.Without(participants, msg.SenderID)
	if len(recipients) == 0 {
		return
	}

	senderName := s.senderName(ctx, msg)
	title := fmt.Sprintf("%s in %s", senderName, chat.DisplayName())
	body := Summary(msg)

	notifications := lo.Map(recipients, func(userID uint, _ int) model.Notification {
		return model.Notification{
			UserID:    userID,
			ChatID:    msg.ChatID,
			MessageID: msg.ID,
			Title:     title,
			Body:      body,
			Metadata: datatypes.JSONMap{
				"kind":         "message.new",
				"sender_id":    msg.SenderID,
				"is_forwarded": msg.IsForwarded,
			},
		}
	})

	if err := s.notificationRepo.CreateBatch(ctx, notifications); err != nil {
		logger.Warn().Err(err).Int("recipients", len(recipients)).Msg("Failed to write notifications")
		metrics.NotificationFailures.Inc()
		return
	}
	metrics.NotificationsWritten.Add(float64(len(notifications)))
}

func (s *notificationService) senderName(ctx context.Context, msg *model.Message) string {
	if msg.Sender != nil {
		msg.Sender.EnsureDisplayName()
		if msg.Sender.DisplayName != "" {
			return msg.Sender.DisplayName
		}
	}
	if user, err := s.userRepo.FindByID(ctx, msg.SenderID); err == nil && user.DisplayName != "" {
		return user.DisplayName
	}
	return "Someone"
}

// Summary краткое описание сообщения для уведомления
func Summary(msg *model.Message) string {
	if msg.Content != nil {
		text := strings.Join(strings.Fields(*msg.Content), " ")
		if text != "" {
			if utf8.RuneCountInString(text) > maxSummaryLength {
				text = string([]rune(text)[:maxSummaryLength-1]) + "…"
			}
			return text
		}
	}

	kind := ""
	if msg.MediaType != nil {
		kind = *msg.MediaType
	}
	switch kind {
	case "image":
		return "sent a photo"
	case "video":
		return "sent a video"
	case "audio":
		return "sent a voice message"
	default:
		return "sent a file"
	}
}
