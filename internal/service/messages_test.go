package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/mocks"
	"github.com/chat-service/internal/storage/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMessenger_SendAndDelete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := memory.NewStore()
	m := NewMessenger(s, s)

	chatID, err := m.CreateChat(ctx, "  team  ")
	req.NoError(err)
	req.NoError(m.AddMembers(ctx, chatID, []int64{5}))

	id, err := m.Send(ctx, chatID, 5, "ship it")
	req.NoError(err)
	req.Positive(id)

	req.NoError(m.Delete(ctx, id))
	req.ErrorIs(m.Delete(ctx, id), apperr.ErrNotFound)

	msgs, err := s.ListByChat(ctx, chatID)
	req.NoError(err)
	req.Empty(msgs)
}

func TestMessenger_Validation(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	m := NewMessenger(s, s)
	chatID, err := m.CreateChat(ctx, "team")
	require.NoError(t, err)

	tests := []struct {
		name   string
		chatID int64
		sender int64
		text   string
		want   error
	}{
		{"empty text", chatID, 1, "", apperr.ErrInvalidArgument},
		{"blank text", chatID, 1, " \n\t", apperr.ErrInvalidArgument},
		{"oversized text", chatID, 1, strings.Repeat("x", maxContentLen+1), apperr.ErrInvalidArgument},
		{"bad sender", chatID, 0, "hi", apperr.ErrInvalidArgument},
		{"unknown chat", 999, 1, "hi", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Send(ctx, tt.chatID, tt.sender, tt.text)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err = m.CreateChat(ctx, "   ")
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	require.ErrorIs(t, m.AddMembers(ctx, 999, []int64{1}), apperr.ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, -1), apperr.ErrInvalidArgument)
}

func TestMessenger_CreateChatWithMembers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := memory.NewStore()
	m := NewMessenger(s, s)

	chatID, err := m.CreateChat(ctx, "team", 3, 4, 3)
	req.NoError(err)
	for _, u := range []int64{3, 4} {
		ok, err := s.IsMember(ctx, chatID, u)
		req.NoError(err)
		req.True(ok, "user %d", u)
	}

	_, err = m.CreateChat(ctx, "bad", 3, 0)
	req.ErrorIs(err, apperr.ErrInvalidArgument)
	chats, err := m.ListChats(ctx)
	req.NoError(err)
	req.Len(chats, 1)
	req.Equal("team", chats[0].Name)
}

func TestMessenger_AddMembers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	chats := mocks.NewMockChatStore(ctrl)
	m := NewMessenger(chats, nil)

	chats.EXPECT().AddMembers(gomock.Any(), int64(7), []int64{1, 2}).Return(nil)
	req.NoError(m.AddMembers(ctx, 7, []int64{1, 2, 1}))

	req.NoError(m.AddMembers(ctx, 7, nil))
	req.ErrorIs(m.AddMembers(ctx, 7, []int64{1, -2}), apperr.ErrInvalidArgument)
	req.ErrorIs(m.AddMembers(ctx, 0, []int64{1}), apperr.ErrInvalidArgument)

	chats.EXPECT().AddMembers(gomock.Any(), int64(8), []int64{1}).
		Return(fmt.Errorf("chat 8: %w", apperr.ErrNotFound))
	req.ErrorIs(m.AddMembers(ctx, 8, []int64{1}), apperr.ErrNotFound)
}
