package service

import (
	"context"
	"errors"
	"testing"

	"tush00nka/bbbab_chatsync/internal/model"
	"tush00nka/bbbab_chatsync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func chatWithID(id uint) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(1).(*model.Chat).ID = id
	}
}

func TestCreateGroupAddsAdminBeforeMembers(t *testing.T) {
	// Arrange
	repo := new(MockChatRepository)
	svc := NewChatService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*model.Chat")).Run(chatWithID(10)).Return(nil)
	admin := repo.On("AddParticipant", ctx, uint(10), uint(1), model.RoleAdmin).Return(nil)
	repo.On("AddParticipant", ctx, uint(10), uint(2), model.RoleMember).Return(nil).NotBefore(admin)
	repo.On("AddParticipant", ctx, uint(10), uint(3), model.RoleMember).Return(nil).NotBefore(admin)

	// Act
	res, err := svc.CreateGroup(ctx, 1, GroupInput{Name: "  Team  ", MemberIDs: []uint{2, 3, 2, 1}})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Team", *res.Chat.Name)
	assert.True(t, res.Chat.IsGroup)
	assert.Empty(t, res.FailedMemberIDs)
	assert.Len(t, res.Chat.Participants, 3)
	assert.Equal(t, model.RoleAdmin, res.Chat.Participants[0].Role)
	repo.AssertExpectations(t)
}

func TestCreateGroupRollsBackWhenAdminFails(t *testing.T) {
	repo := new(MockChatRepository)
	svc := NewChatService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*model.Chat")).Run(chatWithID(11)).Return(nil)
	repo.On("AddParticipant", ctx, uint(11), uint(1), model.RoleAdmin).Return(errors.New("insert failed"))
	repo.On("Delete", mock.Anything, uint(11)).Return(nil)

	res, err := svc.CreateGroup(ctx, 1, GroupInput{Name: "Team", MemberIDs: []uint{2}})

	assert.Nil(t, res)
	assert.Equal(t, KindTransientIO, KindOf(err))
	repo.AssertCalled(t, "Delete", mock.Anything, uint(11))
	repo.AssertNotCalled(t, "AddParticipant", ctx, uint(11), uint(2), model.RoleMember)
}

func TestCreateGroupKeepsGroupWhenMemberFails(t *testing.T) {
	repo := new(MockChatRepository)
	svc := NewChatService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*model.Chat")).Run(chatWithID(12)).Return(nil)
	repo.On("AddParticipant", ctx, uint(12), uint(1), model.RoleAdmin).Return(nil)
	repo.On("AddParticipant", ctx, uint(12), uint(2), model.RoleMember).Return(errors.New("fk violation"))
	repo.On("AddParticipant", ctx, uint(12), uint(3), model.RoleMember).Return(nil)

	res, err := svc.CreateGroup(ctx, 1, GroupInput{Name: "Team", MemberIDs: []uint{2, 3}})

	require.NoError(t, err)
	assert.Equal(t, []uint{2}, res.FailedMemberIDs)
	assert.NotEmpty(t, res.Warning)
	assert.Len(t, res.Chat.Participants, 2)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestCreateGroupValidation(t *testing.T) {
	tests := []struct {
		name      string
		creatorID uint
		in        GroupInput
		kind      Kind
	}{
		{name: "anonymous", creatorID: 0, in: GroupInput{Name: "x", MemberIDs: []uint{2}}, kind: KindUnauthorized},
		{name: "blank name", creatorID: 1, in: GroupInput{Name: "   ", MemberIDs: []uint{2}}, kind: KindValidation},
		{name: "no members", creatorID: 1, in: GroupInput{Name: "x"}, kind: KindValidation},
		{name: "only creator", creatorID: 1, in: GroupInput{Name: "x", MemberIDs: []uint{1, 0}}, kind: KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockChatRepository)
			_, err := NewChatService(repo).CreateGroup(context.Background(), tt.creatorID, tt.in)
			assert.Equal(t, tt.kind, KindOf(err))
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateDirectFindsExisting(t *testing.T) {
	repo := new(MockChatRepository)
	ctx := context.Background()
	existing := &model.Chat{}
	existing.ID = 5
	repo.On("FindDirect", ctx, uint(1), uint(2)).Return(existing, nil)

	chat, created, err := NewChatService(repo).CreateDirect(ctx, 1, 2)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uint(5), chat.ID)
	repo.AssertNotCalled(t, "CreateDirect", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateDirectCreatesMissing(t *testing.T) {
	repo := new(MockChatRepository)
	ctx := context.Background()
	repo.On("FindDirect", ctx, uint(1), uint(2)).Return(nil, repository.ErrNotFound)
	repo.On("CreateDirect", ctx, mock.AnythingOfType("*model.Chat"), uint(1), uint(2)).Return(nil)

	chat, created, err := NewChatService(repo).CreateDirect(ctx, 1, 2)

	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, chat.IsGroup)
}

func TestCreateDirectRejectsSelf(t *testing.T) {
	_, _, err := NewChatService(new(MockChatRepository)).CreateDirect(context.Background(), 1, 1)
	assert.Equal(t, KindValidation, KindOf(err))
}
