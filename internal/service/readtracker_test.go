package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/mocks"
	"github.com/chat-service/internal/model"
	"github.com/chat-service/internal/storage/memory"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testChat = int64(7)
	testUser = int64(1)
	author   = int64(2)
)

// newChat7 собирает чат 7: участник user 1, сообщения 101, 102, 103 от user 2.
func newChat7(t *testing.T) (*memory.Store, *ReadTracker) {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()
	s := memory.NewStore(memory.WithChatSeq(testChat), memory.WithMessageSeq(101))
	id, err := s.CreateChat(ctx, "general")
	req.NoError(err)
	req.Equal(testChat, id)
	req.NoError(s.AddMembers(ctx, testChat, []int64{testUser}))
	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, testChat, author, "hello")
		req.NoError(err)
	}
	return s, NewReadTracker(s, s, s)
}

func ids(msgs []model.Message) []int64 {
	return lo.Map(msgs, func(m model.Message, _ int) int64 { return m.ID })
}

func TestReadTracker_GetNewWithoutMarker(t *testing.T) {
	req := require.New(t)
	_, tr := newChat7(t)

	msgs, err := tr.GetNew(context.Background(), testChat, testUser)
	req.NoError(err)
	req.Equal([]int64{101, 102, 103}, ids(msgs))
}

func TestReadTracker_WatermarkAndExceptions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, tr := newChat7(t)

	_, err := tr.MarkReadUpTo(ctx, testChat, testUser, 102)
	req.NoError(err)
	msgs, err := tr.GetNew(ctx, testChat, testUser)
	req.NoError(err)
	req.Equal([]int64{103}, ids(msgs))

	m, err := tr.MarkRead(ctx, testChat, testUser, []int64{105})
	req.NoError(err)
	req.Equal(int64(102), m.Watermark)
	req.Equal([]int64{105}, m.Exceptions)

	for i := 0; i < 2; i++ {
		_, err := s.Append(ctx, testChat, author, "more")
		req.NoError(err)
	}
	msgs, err = tr.GetNew(ctx, testChat, testUser)
	req.NoError(err)
	req.Equal([]int64{103, 104}, ids(msgs))

	n, err := tr.UnreadCount(ctx, testChat, testUser)
	req.NoError(err)
	req.Equal(2, n)
}

func TestReadTracker_LowerWatermarkIsNoop(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, tr := newChat7(t)

	_, err := tr.MarkReadUpTo(ctx, testChat, testUser, 103)
	req.NoError(err)
	m, err := tr.MarkReadUpTo(ctx, testChat, testUser, 101)
	req.NoError(err)
	req.Equal(int64(103), m.Watermark)

	msgs, err := tr.GetNew(ctx, testChat, testUser)
	req.NoError(err)
	req.Empty(msgs)
}

func TestReadTracker_ConcurrentMarkReadUpToConverges(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, tr := newChat7(t)

	var wg sync.WaitGroup
	for _, id := range []int64{101, 103, 102, 103, 101, 102} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := tr.MarkReadUpTo(ctx, testChat, testUser, id); err != nil {
				t.Error(err)
			}
		}(id)
	}
	wg.Wait()

	m, err := tr.GetMarker(ctx, testChat, testUser)
	req.NoError(err)
	req.Equal(int64(103), m.Watermark)
}

func TestReadTracker_WatermarkCompactsExceptions(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, tr := newChat7(t)

	_, err := tr.MarkRead(ctx, testChat, testUser, []int64{102, 103})
	req.NoError(err)
	msgs, err := tr.GetNew(ctx, testChat, testUser)
	req.NoError(err)
	req.Equal([]int64{101}, ids(msgs))

	m, err := tr.MarkReadUpTo(ctx, testChat, testUser, 102)
	req.NoError(err)
	req.Equal([]int64{103}, m.Exceptions)
}

func TestReadTracker_MarkReadBelowWatermarkIgnored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, tr := newChat7(t)

	_, err := tr.MarkReadUpTo(ctx, testChat, testUser, 102)
	req.NoError(err)
	m, err := tr.MarkRead(ctx, testChat, testUser, []int64{101, 102})
	req.NoError(err)
	req.Equal(int64(102), m.Watermark)
	req.Empty(m.Exceptions)
}

func TestReadTracker_MarkReadEmptyList(t *testing.T) {
	req := require.New(t)
	_, tr := newChat7(t)

	m, err := tr.MarkRead(context.Background(), testChat, testUser, nil)
	req.NoError(err)
	req.True(m.IsZero())
}

func TestReadTracker_Preconditions(t *testing.T) {
	ctx := context.Background()
	_, tr := newChat7(t)

	t.Run("unknown chat", func(t *testing.T) {
		req := require.New(t)
		_, err := tr.MarkReadUpTo(ctx, 99, testUser, 101)
		req.ErrorIs(err, apperr.ErrNotFound)
		_, err = tr.GetNew(ctx, 99, testUser)
		req.ErrorIs(err, apperr.ErrNotFound)
	})

	t.Run("user outside chat", func(t *testing.T) {
		req := require.New(t)
		_, err := tr.MarkRead(ctx, testChat, 42, []int64{101})
		req.ErrorIs(err, apperr.ErrNotFound)
		_, err = tr.GetNew(ctx, testChat, 42)
		req.ErrorIs(err, apperr.ErrNotFound)
	})

	t.Run("malformed ids", func(t *testing.T) {
		req := require.New(t)
		_, err := tr.MarkReadUpTo(ctx, testChat, testUser, 0)
		req.ErrorIs(err, apperr.ErrInvalidArgument)
		_, err = tr.MarkRead(ctx, testChat, testUser, []int64{101, -3})
		req.ErrorIs(err, apperr.ErrInvalidArgument)
		_, err = tr.GetNew(ctx, 0, testUser)
		req.ErrorIs(err, apperr.ErrInvalidArgument)
	})
}

func TestReadTracker_GetNewDoesNotMutateMarker(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	_, tr := newChat7(t)

	_, err := tr.MarkRead(ctx, testChat, testUser, []int64{102})
	req.NoError(err)
	before, err := tr.GetMarker(ctx, testChat, testUser)
	req.NoError(err)
	for i := 0; i < 3; i++ {
		_, err := tr.GetNew(ctx, testChat, testUser)
		req.NoError(err)
	}
	after, err := tr.GetMarker(ctx, testChat, testUser)
	req.NoError(err)
	req.Equal(before, after)
}

func TestReadTracker_StoreFailurePropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)

	chats := mocks.NewMockChatStore(ctrl)
	msgs := mocks.NewMockMessageStore(ctrl)
	markers := mocks.NewMockMarkerStore(ctrl)
	tr := NewReadTracker(chats, msgs, markers)

	boom := errors.New("connection reset")
	chats.EXPECT().ChatExists(gomock.Any(), testChat).Return(true, nil)
	chats.EXPECT().IsMember(gomock.Any(), testChat, testUser).Return(true, nil)
	markers.EXPECT().AdvanceWatermark(gomock.Any(), testChat, testUser, int64(5)).Return(model.ReadMarker{}, boom)

	_, err := tr.MarkReadUpTo(context.Background(), testChat, testUser, 5)
	req.ErrorIs(err, boom)
}

func TestReadTracker_MarkReadDeduplicatesIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)

	chats := mocks.NewMockChatStore(ctrl)
	markers := mocks.NewMockMarkerStore(ctrl)
	tr := NewReadTracker(chats, mocks.NewMockMessageStore(ctrl), markers)

	want := model.ReadMarker{ChatID: testChat, UserID: testUser, Exceptions: []int64{4, 9}}
	chats.EXPECT().ChatExists(gomock.Any(), testChat).Return(true, nil)
	chats.EXPECT().IsMember(gomock.Any(), testChat, testUser).Return(true, nil)
	markers.EXPECT().AddExceptions(gomock.Any(), testChat, testUser, []int64{9, 4}).Return(want, nil)

	m, err := tr.MarkRead(context.Background(), testChat, testUser, []int64{9, 4, 9})
	req.NoError(err)
	req.Equal(want, m)
}
