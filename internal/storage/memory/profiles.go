package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chat-service/internal/model"
)

type item struct {
	val model.RemoteUserProfile
	exp time.Time
}

// ProfileCache хранит профили в памяти процесса. Между инстансами не синхронизируется:
// расхождение ограничено TTL.
type ProfileCache struct {
	mu    sync.RWMutex
	items map[int64]item
	now   func() time.Time
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{items: make(map[int64]item), now: time.Now}
}

func (c *ProfileCache) Close() error { return nil }

func (c *ProfileCache) Get(ctx context.Context, id int64) (model.RemoteUserProfile, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	if !ok || !c.now().Before(v.exp) {
		return model.RemoteUserProfile{}, false, nil
	}
	return v.val, true, nil
}

func (c *ProfileCache) GetMany(ctx context.Context, ids []int64) (map[int64]model.RemoteUserProfile, error) {
	out := make(map[int64]model.RemoteUserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range ids {
		if v, ok := c.items[id]; ok && now.Before(v.exp) {
			out[id] = v.val
		}
	}
	return out, nil
}

func (c *ProfileCache) Put(ctx context.Context, p model.RemoteUserProfile, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = item{val: p, exp: c.now().Add(ttl)}
	return nil
}

// Purge удаляет истёкшие записи и возвращает их число. Вызывается периодически из main.
func (c *ProfileCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, v := range c.items {
		if !now.Before(v.exp) {
			delete(c.items, id)
			n++
		}
	}
	return n
}

// Len возвращает число записей, включая ещё не вычищенные истёкшие.
func (c *ProfileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
