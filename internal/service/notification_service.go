package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/observability"
)

// Embed colors, matching the site's palette.
const (
	ColorBlurple = 0x5865F2
	ColorRed     = 0xED4245
	ColorGreen   = 0x57F287
)

// NotificationService posts service output to the well-known channels:
// admin logs, site logs, announcements and the error channel. Failures here
// are logged and swallowed; notifications never break a workflow.
type NotificationService struct {
	chat    gateway.ChatGateway
	cfg     config.DiscordConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(chat gateway.ChatGateway, cfg config.DiscordConfig, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	return &NotificationService{chat: chat, cfg: cfg, metrics: metrics, logger: logger}
}

// ReportError surfaces a sub-step failure to the error channel. The failing
// handler keeps going; unrelated events must still be processed.
func (s *NotificationService) ReportError(ctx context.Context, source string, err error) {
	if err == nil {
		return
	}
	s.metrics.RecordError(source)
	s.logger.Error("reported error", zap.String("source", source), zap.Error(err))

	if s.cfg.ErrorChannelID == "" {
		return
	}
	embed := gateway.Embed{
		Title:       "Something went wrong",
		Description: fmt.Sprintf("**Source:** `%s`\n```%v```", source, err),
		Color:       ColorRed,
	}
	if _, sendErr := s.chat.SendEmbed(ctx, s.cfg.ErrorChannelID, embed); sendErr != nil {
		s.logger.Error("failed to deliver error report", zap.Error(sendErr))
	}
}

// AdminLog posts an embed, optionally with an attached file, to the admin
// log channel.
func (s *NotificationService) AdminLog(ctx context.Context, embed gateway.Embed, fileName string, file io.Reader) {
	var err error
	if file != nil {
		err = s.chat.SendEmbedWithFile(ctx, s.cfg.AdminLogChannelID, embed, fileName, file)
	} else {
		_, err = s.chat.SendEmbed(ctx, s.cfg.AdminLogChannelID, embed)
	}
	if err != nil {
		s.ReportError(ctx, "admin_log", err)
	}
}

// SiteLog posts a review decision embed to the site log channel.
func (s *NotificationService) SiteLog(ctx context.Context, embed gateway.Embed) {
	if _, err := s.chat.SendEmbed(ctx, s.cfg.SiteLogChannelID, embed); err != nil {
		s.ReportError(ctx, "site_log", err)
	}
}

// Announce posts to the public announcement channel.
func (s *NotificationService) Announce(ctx context.Context, embed gateway.Embed) {
	if _, err := s.chat.SendEmbed(ctx, s.cfg.AnnounceChannelID, embed); err != nil {
		s.ReportError(ctx, "announce", err)
	}
}

// BotAlert posts to the bot alert channel (listed bot left, approved bot
// missing from the support server).
func (s *NotificationService) BotAlert(ctx context.Context, embed gateway.Embed) {
	if _, err := s.chat.SendEmbed(ctx, s.cfg.BotAlertChannelID, embed); err != nil {
		s.ReportError(ctx, "bot_alert", err)
	}
}

// RelayDM forwards a direct message sent to the bot account into the alert
// channel so staff see it.
func (s *NotificationService) RelayDM(ctx context.Context, authorName, authorID, content string) {
	embed := gateway.Embed{
		Color:       ColorBlurple,
		Description: fmt.Sprintf("New Message\n\n>>> **Author:** `%s (%s)`\n**Message:** ```%s```", authorName, authorID, content),
	}
	s.BotAlert(ctx, embed)
}

// DMOwner DMs a bot owner about a decision. DM failure is expected (closed
// DMs) and non-fatal.
func (s *NotificationService) DMOwner(ctx context.Context, ownerID, message string) {
	if err := s.chat.SendDM(ctx, ownerID, message); err != nil {
		s.logger.Debug("owner DM failed", zap.String("owner", ownerID), zap.Error(err))
	}
}
