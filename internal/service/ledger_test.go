package service

import (
	"context"
	"testing"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	chats    *MockChatRepository
	messages *MockMessageRepository
	ledger   *MockLedgerRepository
	svc      LedgerService
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		chats:    new(MockChatRepository),
		messages: new(MockMessageRepository),
		ledger:   new(MockLedgerRepository),
	}
	f.svc = NewLedgerService(f.chats, f.messages, f.ledger)
	return f
}

func (f *ledgerFixture) visibleMessage(ctx context.Context, messageID, chatID, userID uint) {
	f.messages.On("GetByID", ctx, messageID).Return(&model.Message{ID: messageID, ChatID: chatID}, nil)
	f.chats.On("IsParticipant", ctx, chatID, userID).Return(true, nil)
}

func TestReactReplacesPreviousType(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	f.visibleMessage(ctx, 3, 1, 7)

	f.ledger.On("UpsertReaction", ctx, uint(3), uint(7), "👍").
		Return(&model.MessageReaction{MessageID: 3, UserID: 7, ReactionType: "👍"}, nil)
	f.ledger.On("UpsertReaction", ctx, uint(3), uint(7), "❤️").
		Return(&model.MessageReaction{MessageID: 3, UserID: 7, ReactionType: "❤️"}, nil)

	_, err := f.svc.React(ctx, 7, 3, "👍")
	require.NoError(t, err)
	r, err := f.svc.React(ctx, 7, 3, "❤️")
	require.NoError(t, err)

	assert.Equal(t, "❤️", r.ReactionType)
	f.ledger.AssertNumberOfCalls(t, "UpsertReaction", 2)
}

func TestReactValidation(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	_, err := f.svc.React(ctx, 7, 3, "  ")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.React(ctx, 7, 3, string(make([]rune, 51)))
	assert.Equal(t, KindValidation, KindOf(err))

	f.messages.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestMarkReadTwiceSucceeds(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	f.visibleMessage(ctx, 3, 1, 7)
	f.ledger.On("MarkRead", ctx, uint(3), uint(7)).Return(nil)

	assert.NoError(t, f.svc.MarkRead(ctx, 7, 3))
	assert.NoError(t, f.svc.MarkRead(ctx, 7, 3))
}

func TestStarUnstar(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	f.visibleMessage(ctx, 3, 1, 7)
	f.ledger.On("Star", ctx, uint(7), uint(3)).Return(nil)
	f.ledger.On("Unstar", ctx, uint(7), uint(3)).Return(nil)

	assert.NoError(t, f.svc.Star(ctx, 7, 3))
	assert.NoError(t, f.svc.Star(ctx, 7, 3))
	assert.NoError(t, f.svc.Unstar(ctx, 7, 3))
	f.ledger.AssertExpectations(t)
}

func TestUnreactUnknownMessage(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	f.messages.On("GetByID", ctx, uint(3)).Return(nil, repository.ErrNotFound)

	err := f.svc.Unreact(ctx, 7, 3)

	assert.ErrorIs(t, err, ErrMessageMissing)
}

func TestLedgerRequiresParticipation(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	f.messages.On("GetByID", ctx, uint(3)).Return(&model.Message{ID: 3, ChatID: 1}, nil)
	f.chats.On("IsParticipant", ctx, uint(1), uint(7)).Return(false, nil)

	err := f.svc.MarkRead(ctx, 7, 3)

	assert.ErrorIs(t, err, ErrNotParticipant)
	f.ledger.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}
