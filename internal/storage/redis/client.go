package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "user:"

// ProfileCache хранит профили в Redis под ключами user:{id} с TTL (SETEX).
// Общий для всех инстансов сервиса; без событийной инвалидации, свежесть ограничена TTL.
type ProfileCache struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*ProfileCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &ProfileCache{cli: cli}, nil
}

// NewWithClient оборачивает готовый клиент (тесты, общий пул).
func NewWithClient(cli *redis.Client) *ProfileCache {
	return &ProfileCache{cli: cli}
}

func (c *ProfileCache) Close() error {
	return c.cli.Close()
}

func key(id int64) string { return keyPrefix + strconv.FormatInt(id, 10) }

func (c *ProfileCache) Get(ctx context.Context, id int64) (model.RemoteUserProfile, bool, error) {
	defer logger.DeferLogDuration("profileCache.Get", time.Now())()
	val, err := c.cli.Get(ctx, key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return model.RemoteUserProfile{}, false, nil
	}
	if err != nil {
		return model.RemoteUserProfile{}, false, fmt.Errorf("profileCache.Get: %w", err)
	}
	p, ok := decode(id, val)
	return p, ok, nil
}

// GetMany читает все ключи одним MGET.
func (c *ProfileCache) GetMany(ctx context.Context, ids []int64) (map[int64]model.RemoteUserProfile, error) {
	out := make(map[int64]model.RemoteUserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	defer logger.DeferLogDuration("profileCache.GetMany", time.Now())()
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	vals, err := c.cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("profileCache.GetMany: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if p, ok := decode(ids[i], s); ok {
			out[ids[i]] = p
		}
	}
	return out, nil
}

func (c *ProfileCache) Put(ctx context.Context, p model.RemoteUserProfile, ttl time.Duration) error {
	defer logger.DeferLogDuration("profileCache.Put", time.Now())()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("profileCache.Put encode: %w", err)
	}
	if err := c.cli.SetEx(ctx, key(p.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("profileCache.Put: %w", err)
	}
	return nil
}

// decode считает повреждённое значение отсутствующим: следующий промах перезапишет его.
func decode(id int64, val string) (model.RemoteUserProfile, bool) {
	var p model.RemoteUserProfile
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		logger.Warnf("profileCache: failed to decode cached user %d: %v", id, err)
		return model.RemoteUserProfile{}, false
	}
	return p, true
}
