// Package worker hosts the background loops: the stale-review sweep, the
// presence rotation and the approved-bot status sync. Every loop is ticker
// driven, recovers panics and keeps running until its context is cancelled.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func runEvery(ctx context.Context, name string, interval time.Duration, logger *zap.Logger, tick func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("worker started", zap.String("worker", name), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped", zap.String("worker", name))
			return
		case <-ticker.C:
			safeTick(ctx, name, logger, tick)
		}
	}
}

func safeTick(ctx context.Context, name string, logger *zap.Logger, tick func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker tick panicked", zap.String("worker", name), zap.Any("panic", r))
		}
	}()
	tick(ctx)
}
