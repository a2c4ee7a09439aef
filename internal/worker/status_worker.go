package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/internal/service"
)

// StatusWorker copies each approved bot's gateway presence into the site
// database so bot pages show whether the bot is online. Bots missing from
// the main guild are written as offline.
type StatusWorker struct {
	chat     gateway.ChatGateway
	bots     repository.BotRepository
	notifier *service.NotificationService
	discord  config.DiscordConfig
	review   config.ReviewConfig
	logger   *zap.Logger
}

// NewStatusWorker constructs the worker.
func NewStatusWorker(chat gateway.ChatGateway, bots repository.BotRepository, notifier *service.NotificationService, discord config.DiscordConfig, review config.ReviewConfig, logger *zap.Logger) *StatusWorker {
	return &StatusWorker{chat: chat, bots: bots, notifier: notifier, discord: discord, review: review, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *StatusWorker) Run(ctx context.Context) {
	interval := time.Duration(w.review.StatusSyncIntervalMin) * time.Minute
	runEvery(ctx, "status_sync", interval, w.logger, w.sync)
}

func (w *StatusWorker) sync(ctx context.Context) {
	approved, err := w.bots.ListApproved(ctx)
	if err != nil {
		w.notifier.ReportError(ctx, "status_sync_list", err)
		return
	}

	updated := 0
	for _, bot := range approved {
		if ctx.Err() != nil {
			return
		}
		status := w.chat.MemberPresence(w.discord.MainGuildID, bot.ID)
		if status == bot.PresenceStatus {
			continue
		}
		if err := w.bots.UpdatePresenceStatus(ctx, bot.ID, status); err != nil {
			w.notifier.ReportError(ctx, "status_sync_write", err)
			continue
		}
		updated++
	}
	w.logger.Debug("status sync finished", zap.Int("bots", len(approved)), zap.Int("updated", updated))
}
