package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/service"
	"github.com/blist-xyz/review-service/internal/tracker"
)

// SweepWorker posts reminders into review workspaces that have been open
// longer than the stale threshold. Held workspaces (a reviewer placed a
// member overwrite on the category) are skipped. The sweep is advisory and
// stateless; it never mutates review state.
type SweepWorker struct {
	tracker  *tracker.Tracker
	chat     gateway.ChatGateway
	notifier *service.NotificationService
	discord  config.DiscordConfig
	review   config.ReviewConfig
	logger   *zap.Logger
}

// NewSweepWorker constructs the worker.
func NewSweepWorker(tr *tracker.Tracker, chat gateway.ChatGateway, notifier *service.NotificationService, discord config.DiscordConfig, review config.ReviewConfig, logger *zap.Logger) *SweepWorker {
	return &SweepWorker{tracker: tr, chat: chat, notifier: notifier, discord: discord, review: review, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *SweepWorker) Run(ctx context.Context) {
	interval := time.Duration(w.review.SweepIntervalMinutes) * time.Minute
	runEvery(ctx, "review_sweep", interval, w.logger, w.sweep)
}

func (w *SweepWorker) sweep(ctx context.Context) {
	for _, entry := range w.tracker.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		w.check(ctx, entry)
	}
}

func (w *SweepWorker) check(ctx context.Context, entry tracker.Entry) {
	createdAt, err := w.chat.CategoryCreatedAt(entry.WorkspaceID)
	if err != nil {
		// Category already deleted; teardown will forget the entry.
		w.logger.Debug("sweep skipped workspace", zap.String("workspace", entry.WorkspaceID), zap.Error(err))
		return
	}
	age := time.Since(createdAt)
	if age < w.review.StaleAfter() {
		return
	}

	held, err := w.chat.MemberOverwrites(ctx, w.discord.ReviewGuildID, entry.WorkspaceID)
	if err != nil {
		w.notifier.ReportError(ctx, "sweep_overwrites", err)
		return
	}
	if len(held) > 0 {
		return
	}

	mention := "the inviter"
	if inviterID, err := w.chat.BotInviter(ctx, w.discord.ReviewGuildID, entry.CandidateID); err == nil && inviterID != "" {
		mention = fmt.Sprintf("<@%s>", inviterID)
	}

	channels, err := w.chat.CategoryChannels(ctx, w.discord.ReviewGuildID, entry.WorkspaceID)
	if err != nil {
		w.notifier.ReportError(ctx, "sweep_channels", err)
		return
	}
	for _, channel := range channels {
		if channel.Voice || channel.NSFW {
			continue
		}
		reminder := fmt.Sprintf("⏰ %s, this review has been open for %s. Finish it or `hold` the workspace.",
			mention, age.Round(time.Minute))
		if _, err := w.chat.SendMessage(ctx, channel.ID, reminder); err != nil {
			w.notifier.ReportError(ctx, "sweep_reminder", err)
		}
		return
	}
}
