package service

import (
	"context"

	"tush00nka/bbbab_chatsync/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *MockChatRepository) Delete(ctx context.Context, chatID uint) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockChatRepository) GetByID(ctx context.Context, chatID uint) (*model.Chat, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatRepository) AddParticipant(ctx context.Context, chatID, userID uint, role string) error {
	args := m.Called(ctx, chatID, userID, role)
	return args.Error(0)
}

func (m *MockChatRepository) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func (m *MockChatRepository) MissingMemberships(ctx context.Context, userID uint, chatIDs []uint) ([]uint, error) {
	args := m.Called(ctx, userID, chatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func (m *MockChatRepository) ListForUser(ctx context.Context, userID uint) ([]model.Chat, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Chat), args.Error(1)
}

func (m *MockChatRepository) FindDirect(ctx context.Context, user1ID, user2ID uint) (*model.Chat, error) {
	args := m.Called(ctx, user1ID, user2ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatRepository) CreateDirect(ctx context.Context, chat *model.Chat, initiatorID, peerID uint) error {
	args := m.Called(ctx, chat, initiatorID, peerID)
	return args.Error(0)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) CreateForwards(ctx context.Context, msgs []*model.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, messageID uint) (*model.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) FindByClientID(ctx context.Context, senderID uint, clientID string) (*model.Message, error) {
	args := m.Called(ctx, senderID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateContent(ctx context.Context, messageID, senderID uint, content string) (*model.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) DeleteForEveryone(ctx context.Context, messageID, senderID uint) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *MockMessageRepository) HideFor(ctx context.Context, messageID, userID uint) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MockMessageRepository) ListRecent(ctx context.Context, chatID, viewerID uint, limit int) ([]model.Message, error) {
	args := m.Called(ctx, chatID, viewerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) UpsertReaction(ctx context.Context, messageID, userID uint, reactionType string) (*model.MessageReaction, error) {
	args := m.Called(ctx, messageID, userID, reactionType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageReaction), args.Error(1)
}

func (m *MockLedgerRepository) DeleteReaction(ctx context.Context, messageID, userID uint) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MockLedgerRepository) Star(ctx context.Context, userID, messageID uint) error {
	args := m.Called(ctx, userID, messageID)
	return args.Error(0)
}

func (m *MockLedgerRepository) Unstar(ctx context.Context, userID, messageID uint) error {
	args := m.Called(ctx, userID, messageID)
	return args.Error(0)
}

func (m *MockLedgerRepository) MarkRead(ctx context.Context, messageID, userID uint) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateBatch(ctx context.Context, notifications []model.Notification) error {
	args := m.Called(ctx, notifications)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) MessageCreated(ctx context.Context, msg *model.Message) {
	m.Called(ctx, msg)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) MessageCreated(msg *model.Message) {
	m.Called(msg)
}

func (m *MockPublisher) MessageUpdated(msg *model.Message) {
	m.Called(msg)
}

func (m *MockPublisher) MessageDeleted(chatID, messageID uint) {
	m.Called(chatID, messageID)
}

func strPtr(s string) *string { return &s }

func uintPtr(v uint) *uint { return &v }
