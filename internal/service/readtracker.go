package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ReadTracker ведёт состояние прочтения как watermark плюс исключения вне очереди.
// Маркер пишут только MarkRead и MarkReadUpTo; чтения его не меняют.
type ReadTracker struct {
	chats    ChatStore
	messages MessageStore
	markers  MarkerStore
}

func NewReadTracker(chats ChatStore, messages MessageStore, markers MarkerStore) *ReadTracker {
	return &ReadTracker{chats: chats, messages: messages, markers: markers}
}

// MarkReadUpTo поднимает watermark до messageID, если он выше. Параллельные вызовы сходятся
// к наибольшему id при любом порядке.
func (t *ReadTracker) MarkReadUpTo(ctx context.Context, chatID, userID, messageID int64) (model.ReadMarker, error) {
	defer logger.DeferLogDuration("read.MarkReadUpTo", time.Now())()
	if messageID <= 0 {
		return model.ReadMarker{}, fmt.Errorf("message id %d: %w", messageID, apperr.ErrInvalidArgument)
	}
	if err := t.ensureMember(ctx, "MarkReadUpTo", chatID, userID); err != nil {
		return model.ReadMarker{}, err
	}
	m, err := t.markers.AdvanceWatermark(ctx, chatID, userID, messageID)
	if err != nil {
		logStoreErr("MarkReadUpTo", chatID, userID, err)
		return model.ReadMarker{}, err
	}
	return m, nil
}

// MarkRead отмечает конкретные сообщения. id не выше watermark уже прочитаны и игнорируются;
// более высокие попадают в исключения, пока watermark их не догонит.
func (t *ReadTracker) MarkRead(ctx context.Context, chatID, userID int64, messageIDs []int64) (model.ReadMarker, error) {
	defer logger.DeferLogDuration("read.MarkRead", time.Now())()
	if bad, found := lo.Find(messageIDs, func(id int64) bool { return id <= 0 }); found {
		return model.ReadMarker{}, fmt.Errorf("message id %d: %w", bad, apperr.ErrInvalidArgument)
	}
	if err := t.ensureMember(ctx, "MarkRead", chatID, userID); err != nil {
		return model.ReadMarker{}, err
	}
	var (
		m   model.ReadMarker
		err error
	)
	if len(messageIDs) == 0 {
		m, err = t.markers.GetMarker(ctx, chatID, userID)
	} else {
		m, err = t.markers.AddExceptions(ctx, chatID, userID, lo.Uniq(messageIDs))
	}
	if err != nil {
		logStoreErr("MarkRead", chatID, userID, err)
		return model.ReadMarker{}, err
	}
	return m, nil
}

// GetNew возвращает непрочитанные сообщения по возрастанию id: выше watermark и не отмеченные
// вне очереди.
func (t *ReadTracker) GetNew(ctx context.Context, chatID, userID int64) ([]model.Message, error) {
	defer logger.DeferLogDuration("read.GetNew", time.Now())()
	if err := validIDs(chatID, userID); err != nil {
		return nil, err
	}

	var marker model.ReadMarker
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.ensureMember(gctx, "GetNew", chatID, userID) })
	g.Go(func() error {
		var err error
		marker, err = t.markers.GetMarker(gctx, chatID, userID)
		if err != nil {
			logStoreErr("GetNew", chatID, userID, err)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	msgs, err := t.messages.ListAfter(ctx, chatID, marker.Watermark)
	if err != nil {
		logStoreErr("GetNew", chatID, userID, err)
		return nil, err
	}
	return lo.Filter(msgs, func(m model.Message, _ int) bool { return !marker.IsRead(m.ID) }), nil
}

func (t *ReadTracker) UnreadCount(ctx context.Context, chatID, userID int64) (int, error) {
	msgs, err := t.GetNew(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

func (t *ReadTracker) GetMarker(ctx context.Context, chatID, userID int64) (model.ReadMarker, error) {
	if err := t.ensureMember(ctx, "GetMarker", chatID, userID); err != nil {
		return model.ReadMarker{}, err
	}
	m, err := t.markers.GetMarker(ctx, chatID, userID)
	if err != nil {
		logStoreErr("GetMarker", chatID, userID, err)
		return model.ReadMarker{}, err
	}
	return m, nil
}

// ensureMember даёт ErrNotFound, если чата нет или пользователь в нём не состоит.
func (t *ReadTracker) ensureMember(ctx context.Context, op string, chatID, userID int64) error {
	if err := validIDs(chatID, userID); err != nil {
		return err
	}
	exists, err := t.chats.ChatExists(ctx, chatID)
	if err != nil {
		logStoreErr(op, chatID, userID, err)
		return err
	}
	if !exists {
		return fmt.Errorf("chat %d: %w", chatID, apperr.ErrNotFound)
	}
	member, err := t.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		logStoreErr(op, chatID, userID, err)
		return err
	}
	if !member {
		return fmt.Errorf("user %d in chat %d: %w", userID, chatID, apperr.ErrNotFound)
	}
	return nil
}

func validIDs(chatID, userID int64) error {
	if chatID <= 0 {
		return fmt.Errorf("chat id %d: %w", chatID, apperr.ErrInvalidArgument)
	}
	if userID <= 0 {
		return fmt.Errorf("user id %d: %w", userID, apperr.ErrInvalidArgument)
	}
	return nil
}

// logStoreErr логирует неожиданные сбои хранилища; клиентские ошибки отдаёт вызывающий.
func logStoreErr(op string, chatID, userID int64, err error) {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) {
		return
	}
	logger.Errorf("op=%s chat_id=%d user_id=%d: %v", op, chatID, userID, err)
}
