package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type messageFixture struct {
	chats     *MockChatRepository
	messages  *MockMessageRepository
	notifier  *MockNotifier
	publisher *MockPublisher
	svc       MessageService
}

func newMessageFixture() *messageFixture {
	f := &messageFixture{
		chats:     new(MockChatRepository),
		messages:  new(MockMessageRepository),
		notifier:  new(MockNotifier),
		publisher: new(MockPublisher),
	}
	f.svc = NewMessageService(f.chats, f.messages, f.notifier, f.publisher)
	return f
}

func TestSendPersistsAndFansOut(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.messages.On("Create", ctx, mock.AnythingOfType("*model.Message")).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Message).ID = 100
	}).Return(nil)
	f.notifier.On("MessageCreated", ctx, mock.AnythingOfType("*model.Message")).Return()
	f.publisher.On("MessageCreated", mock.AnythingOfType("*model.Message")).Return()

	msg, err := f.svc.Send(ctx, 7, SendInput{ChatID: 1, Content: strPtr(" hi ")})

	require.NoError(t, err)
	assert.Equal(t, uint(100), msg.ID)
	assert.Equal(t, "hi", *msg.Content)
	assert.Equal(t, model.MessageStatusSent, msg.Status)
	f.notifier.AssertNumberOfCalls(t, "MessageCreated", 1)
	f.publisher.AssertNumberOfCalls(t, "MessageCreated", 1)
}

func TestSendRejectsNonParticipant(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(false, nil)

	_, err := f.svc.Send(ctx, 7, SendInput{ChatID: 1, Content: strPtr("hi")})

	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.Equal(t, 403, KindOf(err).HTTPStatus())
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name string
		in   SendInput
	}{
		{name: "empty", in: SendInput{ChatID: 1}},
		{name: "blank content", in: SendInput{ChatID: 1, Content: strPtr("   ")}},
		{name: "too long", in: SendInput{ChatID: 1, Content: strPtr(strings.Repeat("я", MaxContentLength+1))}},
		{name: "media without type", in: SendInput{ChatID: 1, MediaURL: strPtr("https://cdn.example.com/a.png")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMessageFixture()
			_, err := f.svc.Send(context.Background(), 7, tt.in)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestSendDeduplicatesClientID(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	existing := &model.Message{ID: 55, ChatID: 1, SenderID: 7, ClientID: strPtr("tmp-1")}

	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.messages.On("FindByClientID", ctx, uint(7), "tmp-1").Return(existing, nil)

	msg, err := f.svc.Send(ctx, 7, SendInput{ChatID: 1, Content: strPtr("hi"), ClientID: strPtr("tmp-1")})

	require.NoError(t, err)
	assert.Equal(t, uint(55), msg.ID)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "MessageCreated", mock.Anything, mock.Anything)
}

func TestSendReplyMustBeInSameChat(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.messages.On("GetByID", ctx, uint(9)).Return(&model.Message{ID: 9, ChatID: 2}, nil)

	_, err := f.svc.Send(ctx, 7, SendInput{ChatID: 1, Content: strPtr("hi"), ReplyToID: uintPtr(9)})

	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSendStorageFailureIsTransient(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.messages.On("Create", ctx, mock.Anything).Return(errors.New("connection reset"))

	_, err := f.svc.Send(ctx, 7, SendInput{ChatID: 1, Content: strPtr("hi")})

	assert.Equal(t, KindTransientIO, KindOf(err))
	assert.True(t, KindOf(err).Retryable())
}

func TestEditNotOwnerIsNotFound(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	f.messages.On("UpdateContent", ctx, uint(3), uint(7), "new").Return(nil, repository.ErrNotFound)

	_, err := f.svc.Edit(ctx, 7, 3, "new")

	assert.ErrorIs(t, err, ErrMessageMissing)
}

func TestEditPublishesUpdate(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	updated := &model.Message{ID: 3, ChatID: 1, Content: strPtr("new"), IsEdited: true}
	f.messages.On("UpdateContent", ctx, uint(3), uint(7), "new").Return(updated, nil)
	f.publisher.On("MessageUpdated", updated).Return()

	msg, err := f.svc.Edit(ctx, 7, 3, "  new ")

	require.NoError(t, err)
	assert.True(t, msg.IsEdited)
	f.publisher.AssertExpectations(t)
}

func TestDeleteForMeTwiceIsIdempotent(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	f.messages.On("GetByID", ctx, uint(3)).Return(&model.Message{ID: 3, ChatID: 1, SenderID: 9}, nil)
	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.messages.On("HideFor", ctx, uint(3), uint(7)).Return(nil)

	require.NoError(t, f.svc.Delete(ctx, 7, 3, DeleteForMe))
	require.NoError(t, f.svc.Delete(ctx, 7, 3, DeleteForMe))

	f.messages.AssertNumberOfCalls(t, "HideFor", 2)
}

func TestDeleteForEveryoneOnlySender(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	f.messages.On("GetByID", ctx, uint(3)).Return(&model.Message{ID: 3, ChatID: 1, SenderID: 9}, nil)
	f.messages.On("DeleteForEveryone", ctx, uint(3), uint(7)).Return(repository.ErrNotFound)
	f.messages.On("DeleteForEveryone", ctx, uint(3), uint(9)).Return(nil)
	f.publisher.On("MessageDeleted", uint(1), uint(3)).Return()

	assert.ErrorIs(t, f.svc.Delete(ctx, 7, 3, DeleteForEveryone), ErrMessageMissing)
	assert.NoError(t, f.svc.Delete(ctx, 9, 3, DeleteForEveryone))
	f.publisher.AssertNumberOfCalls(t, "MessageDeleted", 1)
}

func TestDeleteRequiresMode(t *testing.T) {
	f := newMessageFixture()
	err := f.svc.Delete(context.Background(), 7, 3, "")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestForwardAllOrNothing(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	f.messages.On("GetByID", ctx, uint(3)).Return(&model.Message{ID: 3, ChatID: 1, Content: strPtr("hi")}, nil)
	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.chats.On("MissingMemberships", ctx, uint(7), []uint{2, 4}).Return([]uint{4}, nil)

	_, err := f.svc.Forward(ctx, 7, 3, []uint{2, 4, 2})

	assert.Equal(t, KindAuthorizationDenied, KindOf(err))
	f.messages.AssertNotCalled(t, "CreateForwards", mock.Anything, mock.Anything)
}

func TestForwardWritesOneCopyPerChat(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	f.messages.On("GetByID", ctx, uint(3)).Return(&model.Message{ID: 3, ChatID: 1, Content: strPtr("hi")}, nil)
	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.chats.On("MissingMemberships", ctx, uint(7), []uint{2, 4}).Return([]uint{}, nil)
	f.messages.On("CreateForwards", ctx, mock.MatchedBy(func(msgs []*model.Message) bool {
		return len(msgs) == 2 && msgs[0].ChatID == 2 && msgs[1].ChatID == 4
	})).Return(nil)
	f.notifier.On("MessageCreated", ctx, mock.Anything).Return()
	f.publisher.On("MessageCreated", mock.Anything).Return()

	copies, err := f.svc.Forward(ctx, 7, 3, []uint{2, 4})

	require.NoError(t, err)
	require.Len(t, copies, 2)
	for _, c := range copies {
		assert.True(t, c.IsForwarded)
		assert.Equal(t, uint(3), *c.ForwardedFromID)
		assert.Equal(t, uint(7), c.SenderID)
	}
	f.notifier.AssertNumberOfCalls(t, "MessageCreated", 2)
}

func TestFetchRequiresParticipation(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(false, nil)

	_, err := f.svc.Fetch(ctx, 7, 1)

	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestFetchUsesLimit(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()
	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(true, nil)
	f.messages.On("ListRecent", ctx, uint(1), uint(7), FetchLimit).Return([]model.Message{{ID: 1}, {ID: 2}}, nil)

	msgs, err := f.svc.Fetch(ctx, 7, 1)

	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
