package service

import (
	"context"
	"testing"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/mocks"
	"github.com/chat-service/internal/model"
	"github.com/chat-service/internal/storage/memory"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type pipelineFixture struct {
	store    *memory.Store
	fetcher  *mocks.MockProfileFetcher
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	req := require.New(t)
	ctx := context.Background()

	s := memory.NewStore(memory.WithChatSeq(testChat), memory.WithMessageSeq(101))
	_, err := s.CreateChat(ctx, "general")
	req.NoError(err)
	req.NoError(s.AddMembers(ctx, testChat, []int64{testUser}))
	for _, sender := range []int64{2, 3, 2} {
		_, err := s.Append(ctx, testChat, sender, "hi")
		req.NoError(err)
	}

	fetcher := mocks.NewMockProfileFetcher(ctrl)
	resolver := NewResolver(memory.NewProfileCache(), fetcher, time.Minute)
	return &pipelineFixture{
		store:    s,
		fetcher:  fetcher,
		pipeline: NewPipeline(s, s, NewReadTracker(s, s, s), resolver),
	}
}

func TestPipeline_ListEnrichedResolvesOncePerTTL(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newPipelineFixture(t)

	f.fetcher.EXPECT().
		FetchProfiles(gomock.Any(), gomock.InAnyOrder([]int64{2, 3})).
		Return(map[int64]model.RemoteUserProfile{2: profile(2, "bob"), 3: profile(3, "cat")}, nil).
		Times(1)

	out, err := f.pipeline.ListEnriched(ctx, testChat)
	req.NoError(err)
	req.Len(out, 3)
	for _, m := range out {
		req.NotNil(m.Sender)
		req.Equal(m.SenderID, m.Sender.ID)
	}

	out, err = f.pipeline.ListEnriched(ctx, testChat)
	req.NoError(err)
	req.Len(out, 3)
}

func TestPipeline_IdentityOutageKeepsMessages(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t)

	f.fetcher.EXPECT().
		FetchProfiles(gomock.Any(), gomock.Any()).
		Return(nil, apperr.ErrUpstreamUnavailable)

	out, err := f.pipeline.ListEnriched(context.Background(), testChat)
	req.NoError(err)
	req.Len(out, 3)
	for _, m := range out {
		req.Nil(m.Sender)
		req.NotZero(m.SenderID)
	}
}

func TestPipeline_ListNewEnrichedFollowsReadState(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newPipelineFixture(t)

	f.fetcher.EXPECT().
		FetchProfiles(gomock.Any(), []int64{2}).
		Return(map[int64]model.RemoteUserProfile{2: profile(2, "bob")}, nil)

	tr := NewReadTracker(f.store, f.store, f.store)
	_, err := tr.MarkReadUpTo(ctx, testChat, testUser, 101)
	req.NoError(err)
	_, err = tr.MarkRead(ctx, testChat, testUser, []int64{102})
	req.NoError(err)

	out, err := f.pipeline.ListNewEnriched(ctx, testChat, testUser)
	req.NoError(err)
	req.Len(out, 1)
	req.Equal(int64(103), out[0].ID)
	req.Equal("bob", out[0].Sender.DisplayName)
}

func TestPipeline_EmptyChatSkipsResolver(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.fetcher.EXPECT().FetchProfiles(gomock.Any(), gomock.Any()).Times(0)

	id, err := f.store.CreateChat(ctx, "empty")
	req.NoError(err)
	out, err := f.pipeline.ListEnriched(ctx, id)
	req.NoError(err)
	req.Empty(out)
}

func TestPipeline_UnknownChat(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t)

	_, err := f.pipeline.ListEnriched(context.Background(), 404)
	req.ErrorIs(err, apperr.ErrNotFound)
	_, err = f.pipeline.ListRecentEnriched(context.Background(), 404, time.Hour)
	req.ErrorIs(err, apperr.ErrNotFound)
}

func TestPipeline_ListByIDsEnriched(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t)

	f.fetcher.EXPECT().
		FetchProfiles(gomock.Any(), gomock.InAnyOrder([]int64{2, 3})).
		Return(map[int64]model.RemoteUserProfile{3: profile(3, "cat")}, nil)

	out, err := f.pipeline.ListByIDsEnriched(context.Background(), []int64{101, 102, 999})
	req.NoError(err)
	req.ElementsMatch([]int64{101, 102}, lo.Map(out, func(m model.EnrichedMessage, _ int) int64 { return m.ID }))
	byID := lo.KeyBy(out, func(m model.EnrichedMessage) int64 { return m.ID })
	req.Nil(byID[101].Sender)
	req.Equal("cat", byID[102].Sender.DisplayName)

	_, err = f.pipeline.ListByIDsEnriched(context.Background(), []int64{0})
	req.ErrorIs(err, apperr.ErrInvalidArgument)
}

func TestPipeline_ListRecentEnrichedWindow(t *testing.T) {
	req := require.New(t)
	f := newPipelineFixture(t)
	f.fetcher.EXPECT().
		FetchProfiles(gomock.Any(), gomock.Any()).
		Return(map[int64]model.RemoteUserProfile{}, nil).
		AnyTimes()

	out, err := f.pipeline.ListRecentEnriched(context.Background(), testChat, time.Hour)
	req.NoError(err)
	req.Len(out, 3)

	f.pipeline.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	out, err = f.pipeline.ListRecentEnriched(context.Background(), testChat, time.Hour)
	req.NoError(err)
	req.Empty(out)

	_, err = f.pipeline.ListRecentEnriched(context.Background(), testChat, 0)
	req.ErrorIs(err, apperr.ErrInvalidArgument)
}
