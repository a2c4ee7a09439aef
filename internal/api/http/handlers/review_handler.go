package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/blist-xyz/review-service/internal/api/dto"
	"github.com/blist-xyz/review-service/internal/observability"
	"github.com/blist-xyz/review-service/internal/persistence"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/internal/service"
	"github.com/blist-xyz/review-service/internal/tracker"
	"github.com/blist-xyz/review-service/internal/worker"
	"github.com/blist-xyz/review-service/pkg/util"
)

// ReviewHandler exposes the review queue and service counters to the site.
type ReviewHandler struct {
	reviews *service.ReviewService
	tracker *tracker.Tracker
	bots    repository.BotRepository
	users   repository.UserRepository
	cache   *persistence.Redis
	metrics *observability.Metrics
}

// NewReviewHandler returns a new handler instance.
func NewReviewHandler(reviews *service.ReviewService, tr *tracker.Tracker, bots repository.BotRepository, users repository.UserRepository, cache *persistence.Redis, metrics *observability.Metrics) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, tracker: tr, bots: bots, users: users, cache: cache, metrics: metrics}
}

// Queue returns the submissions awaiting review.
func (h *ReviewHandler) Queue(c *fiber.Ctx) error {
	queued, err := h.reviews.Queue(c.UserContext())
	if err != nil {
		return util.MapError(err)
	}
	return c.JSON(fiber.Map{"queue": dto.FromBots(queued)})
}

// Stats returns aggregate counters. Counts come from the redis cache the
// presence worker maintains; a miss falls through to Postgres.
func (h *ReviewHandler) Stats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	approved, err := h.count(ctx, worker.CacheKeyApprovedBots, h.bots.CountApproved)
	if err != nil {
		return util.MapError(err)
	}
	queued, err := h.count(ctx, worker.CacheKeyQueuedBots, h.bots.CountQueued)
	if err != nil {
		return util.MapError(err)
	}
	users, err := h.count(ctx, worker.CacheKeyUsers, h.users.CountAll)
	if err != nil {
		return util.MapError(err)
	}

	events, commands, errs := h.metrics.Snapshot()
	return c.JSON(dto.Stats{
		ApprovedBots: approved,
		QueuedBots:   queued,
		Users:        users,
		Workspaces:   h.tracker.Len(),
		Events:       events,
		Commands:     commands,
		Errors:       errs,
	})
}

func (h *ReviewHandler) count(ctx context.Context, key string, query func(context.Context) (int64, error)) (int64, error) {
	if cached, ok, err := h.cache.CachedCount(ctx, key); err == nil && ok {
		return cached, nil
	}
	return query(ctx)
}
