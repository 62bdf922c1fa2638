package startup

import (
	"fmt"
	"time"

	"github.com/chat-service/internal/logger"
)

const maxBackoff = 30 * time.Second

// initialBackoff: первая пауза между попытками, дальше удваивается до maxBackoff.
var initialBackoff = 2 * time.Second

// retryUntil вызывает attempt с экспоненциальной паузой, пока он не вернёт nil или не истечёт maxWait.
// По истечении возвращает последнюю ошибку; решение о завершении процесса за вызывающим.
func retryUntil(maxWait time.Duration, what string, logPrefix string, attempt func() error) error {
	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	for {
		err := attempt()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s%s (gave up after %v): %w", logPrefix, what, maxWait, err)
		}
		logger.Errorf("%s%s failed, retry in %v: %v", logPrefix, what, backoff, err)
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
