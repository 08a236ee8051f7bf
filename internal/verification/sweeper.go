package verification

import (
	"context"
	"time"

	"dapur-be/internal/logger"

	"go.uber.org/zap"
)

// RunSweeper deletes expired codes every interval until ctx is done.
func RunSweeper(ctx context.Context, svc Service, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.Sweep(ctx); err == nil && n > 0 {
				logger.L().Info("swept expired verification codes", zap.Int64("deleted", n))
			}
		}
	}
}
