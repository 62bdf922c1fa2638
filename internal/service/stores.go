//go:generate go run go.uber.org/mock/mockgen -source=stores.go -destination=../mocks/mock_stores.go -package=mocks

package service

import (
	"context"
	"time"

	"github.com/chat-service/internal/model"
)

// MessageStore хранит сообщения. Любое чтение исключает удалённые и каждый раз идёт в хранилище.
// Реализации: repository.MessageRepository (Postgres) и memory.Store.
type MessageStore interface {
	Append(ctx context.Context, chatID, senderID int64, text string) (int64, error)
	ListByChat(ctx context.Context, chatID int64) ([]model.Message, error)
	ListSince(ctx context.Context, chatID int64, since time.Time) ([]model.Message, error)
	ListAfter(ctx context.Context, chatID, afterID int64) ([]model.Message, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Message, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
}

// ChatStore хранит чаты и участников. AddMembers атомарен и пропускает уже состоящих.
type ChatStore interface {
	CreateChat(ctx context.Context, name string) (int64, error)
	ListChats(ctx context.Context) ([]model.Chat, error)
	AddMembers(ctx context.Context, chatID int64, userIDs []int64) error
	ChatExists(ctx context.Context, chatID int64) (bool, error)
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
}

// MarkerStore хранит маркеры прочтения. Оба изменения атомарны по (chat, user) и возвращают
// маркер в записанном виде.
type MarkerStore interface {
	GetMarker(ctx context.Context, chatID, userID int64) (model.ReadMarker, error)
	AdvanceWatermark(ctx context.Context, chatID, userID, messageID int64) (model.ReadMarker, error)
	AddExceptions(ctx context.Context, chatID, userID int64, ids []int64) (model.ReadMarker, error)
}
