package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
	"github.com/samber/lo"
)

// maxContentLen ограничивает тело одного сообщения в байтах.
const maxContentLen = 16 << 10

// Messenger отвечает за запись: чаты, участники, отправка и удаление сообщений.
type Messenger struct {
	chats    ChatStore
	messages MessageStore
}

func NewMessenger(chats ChatStore, messages MessageStore) *Messenger {
	return &Messenger{chats: chats, messages: messages}
}

// CreateChat создаёт чат и сразу добавляет в него members (дубликаты схлопываются).
func (s *Messenger) CreateChat(ctx context.Context, name string, members ...int64) (int64, error) {
	defer logger.DeferLogDuration("messenger.CreateChat", time.Now())()
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("chat name is empty: %w", apperr.ErrInvalidArgument)
	}
	if err := validUserIDs(members); err != nil {
		return 0, err
	}
	id, err := s.chats.CreateChat(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("messenger.CreateChat: %w", err)
	}
	if len(members) > 0 {
		if err := s.chats.AddMembers(ctx, id, lo.Uniq(members)); err != nil {
			return 0, fmt.Errorf("messenger.CreateChat members: %w", err)
		}
	}
	return id, nil
}

func (s *Messenger) ListChats(ctx context.Context) ([]model.Chat, error) {
	defer logger.DeferLogDuration("messenger.ListChats", time.Now())()
	chats, err := s.chats.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("messenger.ListChats: %w", err)
	}
	return chats, nil
}

// AddMembers добавляет пачку участников. Пустой список допустим и ничего не пишет.
func (s *Messenger) AddMembers(ctx context.Context, chatID int64, userIDs []int64) error {
	defer logger.DeferLogDuration("messenger.AddMembers", time.Now())()
	if chatID <= 0 {
		return fmt.Errorf("chat id %d: %w", chatID, apperr.ErrInvalidArgument)
	}
	if err := validUserIDs(userIDs); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	if err := s.chats.AddMembers(ctx, chatID, lo.Uniq(userIDs)); err != nil {
		return fmt.Errorf("messenger.AddMembers: %w", err)
	}
	return nil
}

// Send добавляет сообщение в чат и возвращает его id. Членство отправителя не проверяется.
func (s *Messenger) Send(ctx context.Context, chatID, senderID int64, text string) (int64, error) {
	defer logger.DeferLogDuration("messenger.Send", time.Now())()
	if err := validIDs(chatID, senderID); err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("message text is empty: %w", apperr.ErrInvalidArgument)
	}
	if len(text) > maxContentLen {
		return 0, fmt.Errorf("message text exceeds %d bytes: %w", maxContentLen, apperr.ErrInvalidArgument)
	}
	id, err := s.messages.Append(ctx, chatID, senderID, text)
	if err != nil {
		return 0, fmt.Errorf("messenger.Send: %w", err)
	}
	return id, nil
}

// Delete мягко удаляет сообщение. Отсутствующее или уже удалённое даёт ErrNotFound.
func (s *Messenger) Delete(ctx context.Context, id int64) error {
	defer logger.DeferLogDuration("messenger.Delete", time.Now())()
	if id <= 0 {
		return fmt.Errorf("message id %d: %w", id, apperr.ErrInvalidArgument)
	}
	ok, err := s.messages.SoftDelete(ctx, id)
	if err != nil {
		return fmt.Errorf("messenger.Delete: %w", err)
	}
	if !ok {
		return fmt.Errorf("message %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func validUserIDs(ids []int64) error {
	if bad, found := lo.Find(ids, func(id int64) bool { return id <= 0 }); found {
		return fmt.Errorf("user id %d: %w", bad, apperr.ErrInvalidArgument)
	}
	return nil
}
