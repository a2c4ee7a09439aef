package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/persistence"
	"github.com/blist-xyz/review-service/internal/repository"
)

// Count cache keys shared with the internal API's stats endpoint.
const (
	CacheKeyApprovedBots = "counts:bots:approved"
	CacheKeyQueuedBots   = "counts:bots:queued"
	CacheKeyUsers        = "counts:users"

	countCacheTTL = 5 * time.Minute
)

// PresenceWorker rotates the bot account's activity through live site
// counts. The counts are cached in redis so the stats endpoint reads the
// same numbers without hitting Postgres.
type PresenceWorker struct {
	chat   gateway.ChatGateway
	bots   repository.BotRepository
	users  repository.UserRepository
	cache  *persistence.Redis
	review config.ReviewConfig
	logger *zap.Logger

	step int
}

// NewPresenceWorker constructs the worker.
func NewPresenceWorker(chat gateway.ChatGateway, bots repository.BotRepository, users repository.UserRepository, cache *persistence.Redis, review config.ReviewConfig, logger *zap.Logger) *PresenceWorker {
	return &PresenceWorker{chat: chat, bots: bots, users: users, cache: cache, review: review, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *PresenceWorker) Run(ctx context.Context) {
	interval := time.Duration(w.review.PresenceIntervalMin) * time.Minute
	runEvery(ctx, "presence_rotation", interval, w.logger, w.rotate)
}

func (w *PresenceWorker) rotate(ctx context.Context) {
	var (
		name string
		err  error
	)
	switch w.step % 3 {
	case 0:
		var approved int64
		if approved, err = w.count(ctx, CacheKeyApprovedBots, w.bots.CountApproved); err == nil {
			name = fmt.Sprintf("%d bots on blist.xyz", approved)
		}
	case 1:
		var queued int64
		if queued, err = w.count(ctx, CacheKeyQueuedBots, w.bots.CountQueued); err == nil {
			name = fmt.Sprintf("%d bots in the queue", queued)
		}
	case 2:
		var users int64
		if users, err = w.count(ctx, CacheKeyUsers, w.users.CountAll); err == nil {
			name = fmt.Sprintf("%d users", users)
		}
	}
	w.step++

	if err != nil {
		w.logger.Debug("presence count failed", zap.Error(err))
		return
	}
	if err := w.chat.UpdatePresence(name); err != nil {
		w.logger.Debug("presence update failed", zap.Error(err))
	}
}

func (w *PresenceWorker) count(ctx context.Context, key string, query func(context.Context) (int64, error)) (int64, error) {
	value, err := query(ctx)
	if err != nil {
		return 0, err
	}
	if cacheErr := w.cache.CacheCount(ctx, key, value, countCacheTTL); cacheErr != nil {
		w.logger.Debug("count cache write failed", zap.String("key", key), zap.Error(cacheErr))
	}
	return value, nil
}
