package service

import (
	"context"
	"fmt"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
	"github.com/samber/lo"
)

// ProfileResolver реализует *Resolver.
type ProfileResolver interface {
	Resolve(ctx context.Context, ids []int64) map[int64]model.RemoteUserProfile
}

// Pipeline соединяет списки сообщений с профилями отправителей. Сообщение с неразрешённым
// отправителем не пропадает, а возвращается с Sender == nil.
type Pipeline struct {
	messages MessageStore
	chats    ChatStore
	tracker  *ReadTracker
	resolver ProfileResolver
	now      func() time.Time
}

func NewPipeline(messages MessageStore, chats ChatStore, tracker *ReadTracker, resolver ProfileResolver) *Pipeline {
	return &Pipeline{messages: messages, chats: chats, tracker: tracker, resolver: resolver, now: time.Now}
}

// ListEnriched возвращает все живые сообщения чата, новые первыми.
func (p *Pipeline) ListEnriched(ctx context.Context, chatID int64) ([]model.EnrichedMessage, error) {
	defer logger.DeferLogDuration("pipeline.ListEnriched", time.Now())()
	if err := p.ensureChat(ctx, chatID); err != nil {
		return nil, err
	}
	msgs, err := p.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("pipeline.ListEnriched: %w", err)
	}
	return p.enrich(ctx, msgs), nil
}

// ListRecentEnriched возвращает сообщения за последние window, новые первыми.
func (p *Pipeline) ListRecentEnriched(ctx context.Context, chatID int64, window time.Duration) ([]model.EnrichedMessage, error) {
	defer logger.DeferLogDuration("pipeline.ListRecentEnriched", time.Now())()
	if window <= 0 {
		return nil, fmt.Errorf("window %s: %w", window, apperr.ErrInvalidArgument)
	}
	if err := p.ensureChat(ctx, chatID); err != nil {
		return nil, err
	}
	msgs, err := p.messages.ListSince(ctx, chatID, p.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("pipeline.ListRecentEnriched: %w", err)
	}
	return p.enrich(ctx, msgs), nil
}

// ListNewEnriched возвращает непрочитанные пользователем сообщения по возрастанию id.
func (p *Pipeline) ListNewEnriched(ctx context.Context, chatID, userID int64) ([]model.EnrichedMessage, error) {
	defer logger.DeferLogDuration("pipeline.ListNewEnriched", time.Now())()
	msgs, err := p.tracker.GetNew(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return p.enrich(ctx, msgs), nil
}

// ListByIDsEnriched возвращает живые сообщения из ids, новые первыми. Неизвестные id пропускаются.
func (p *Pipeline) ListByIDsEnriched(ctx context.Context, ids []int64) ([]model.EnrichedMessage, error) {
	defer logger.DeferLogDuration("pipeline.ListByIDsEnriched", time.Now())()
	if bad, found := lo.Find(ids, func(id int64) bool { return id <= 0 }); found {
		return nil, fmt.Errorf("message id %d: %w", bad, apperr.ErrInvalidArgument)
	}
	if len(ids) == 0 {
		return []model.EnrichedMessage{}, nil
	}
	msgs, err := p.messages.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pipeline.ListByIDsEnriched: %w", err)
	}
	return p.enrich(ctx, msgs), nil
}

func (p *Pipeline) ensureChat(ctx context.Context, chatID int64) error {
	if chatID <= 0 {
		return fmt.Errorf("chat id %d: %w", chatID, apperr.ErrInvalidArgument)
	}
	ok, err := p.chats.ChatExists(ctx, chatID)
	if err != nil {
		return fmt.Errorf("pipeline.ensureChat: %w", err)
	}
	if !ok {
		return fmt.Errorf("chat %d: %w", chatID, apperr.ErrNotFound)
	}
	return nil
}

// enrich собирает уникальных отправителей в один вызов Resolve и сохраняет порядок сообщений.
func (p *Pipeline) enrich(ctx context.Context, msgs []model.Message) []model.EnrichedMessage {
	out := make([]model.EnrichedMessage, 0, len(msgs))
	if len(msgs) == 0 {
		return out
	}
	senders := lo.Uniq(lo.Map(msgs, func(m model.Message, _ int) int64 { return m.SenderID }))
	profiles := p.resolver.Resolve(ctx, senders)
	for i := range msgs {
		var sender *model.RemoteUserProfile
		if prof, ok := profiles[msgs[i].SenderID]; ok {
			sender = &prof
		}
		out = append(out, msgs[i].Enrich(sender))
	}
	return out
}
