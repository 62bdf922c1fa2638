package startup

import (
	"context"
	"time"
)

// RunPeriodic вызывает fn каждые interval до отмены ctx. Блокирует; запускать в горутине.
func RunPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
