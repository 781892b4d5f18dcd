package handler

import (
	"context"
	"io"
	"net/http"

	"tush00nka/bbbab_chatsync/internal/gateway"
	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/pkg/auth"
	"tush00nka/bbbab_chatsync/internal/service"
	"tush00nka/bbbab_chatsync/internal/ws"

	"github.com/stretchr/testify/mock"
)

const testKey = "handler-test-key"

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) CreateGroup(ctx context.Context, creatorID uint, in service.GroupInput) (*service.GroupResult, error) {
	args := m.Called(ctx, creatorID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.GroupResult), args.Error(1)
}

func (m *MockChatService) CreateDirect(ctx context.Context, userID, peerID uint) (*model.Chat, bool, error) {
	args := m.Called(ctx, userID, peerID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*model.Chat), args.Bool(1), args.Error(2)
}

func (m *MockChatService) ListChats(ctx context.Context, userID uint) ([]model.Chat, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Chat), args.Error(1)
}

func (m *MockChatService) RequireParticipant(ctx context.Context, chatID, userID uint) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, userID uint, action gateway.Action) (any, error) {
	args := m.Called(ctx, userID, action)
	return args.Get(0), args.Error(1)
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) UploadFile(ctx context.Context, file io.Reader, filename, contentType string, userID, chatID uint) (*model.FileMetadata, error) {
	args := m.Called(ctx, file, filename, contentType, userID, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileMetadata), args.Error(1)
}

func (m *MockMediaStore) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// hubTransport доставляет события в хаб синхронно
type hubTransport struct {
	hub *ws.Hub
}

func (t hubTransport) Publish(_ context.Context, ev model.TypingEvent) error {
	t.hub.DeliverTyping(ev)
	return nil
}

func (t hubTransport) Listen(ctx context.Context, _ func(model.TypingEvent)) error {
	<-ctx.Done()
	return nil
}

func bearer(userID uint) string {
	token, err := auth.NewIdentity(testKey).GenerateToken(userID)
	if err != nil {
		panic(err)
	}
	return token
}

func authorize(r *http.Request, userID uint) *http.Request {
	r.Header.Set("Authorization", "Bearer "+bearer(userID))
	return r
}
