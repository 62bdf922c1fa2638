package startup

import (
	"context"
	"time"

	redisstorage "github.com/chat-service/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis-кешу профилей с повторами.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration, logPrefix string) (*redisstorage.ProfileCache, error) {
	var cache *redisstorage.ProfileCache
	err := retryUntil(maxWait, "redis connect", logPrefix, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := redisstorage.New(ctx, redisURL)
		if err != nil {
			return err
		}
		cache = c
		return nil
	})
	return cache, err
}
