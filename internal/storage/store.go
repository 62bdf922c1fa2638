package storage

import (
	"context"
	"time"

	"github.com/chat-service/internal/model"
)

// ProfileCache: локальный cache-aside для профилей пользователей из identity-сервиса.
// Реализации: memory.ProfileCache (по умолчанию, на процесс) и redis.ProfileCache (общий кеш).
// Запись с истёкшим TTL считается отсутствующей и никогда не возвращается.
type ProfileCache interface {
	Get(ctx context.Context, id int64) (model.RemoteUserProfile, bool, error)
	// GetMany возвращает только найденные и свежие записи; дополнение считает вызывающий.
	GetMany(ctx context.Context, ids []int64) (map[int64]model.RemoteUserProfile, error)
	// Put перезаписывает запись безусловно (last writer wins).
	Put(ctx context.Context, p model.RemoteUserProfile, ttl time.Duration) error
	Close() error
}
