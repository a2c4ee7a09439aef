package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/pkg/util"
)

// ReviewService drives the submission state machine: queue listings,
// approve, deny, delete and certification. Guard failures reject the command
// with no mutation; later side effects (roles, DMs, announcements) degrade
// gracefully.
type ReviewService struct {
	bots       repository.BotRepository
	users      repository.UserRepository
	staff      repository.StaffRepository
	actions    repository.ActionRepository
	chat       gateway.ChatGateway
	notifier   *NotificationService
	dispatcher events.Dispatcher
	cfg        config.DiscordConfig
	site       string
	logger     *zap.Logger
}

// ReviewDependencies bundles collaborators for the review service.
type ReviewDependencies struct {
	BotRepo    repository.BotRepository
	UserRepo   repository.UserRepository
	StaffRepo  repository.StaffRepository
	ActionRepo repository.ActionRepository
	Chat       gateway.ChatGateway
	Notifier   *NotificationService
	Dispatcher events.Dispatcher
	Discord    config.DiscordConfig
	SiteURL    string
	Logger     *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(deps ReviewDependencies) *ReviewService {
	return &ReviewService{
		bots:       deps.BotRepo,
		users:      deps.UserRepo,
		staff:      deps.StaffRepo,
		actions:    deps.ActionRepo,
		chat:       deps.Chat,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		cfg:        deps.Discord,
		site:       deps.SiteURL,
		logger:     deps.Logger,
	}
}

// Queue lists submissions awaiting review.
func (s *ReviewService) Queue(ctx context.Context) ([]domain.Bot, error) {
	return s.bots.ListQueued(ctx)
}

// CertificationQueue lists bots awaiting certification.
func (s *ReviewService) CertificationQueue(ctx context.Context) ([]domain.Bot, error) {
	return s.bots.ListAwaitingCertification(ctx)
}

// Approve approves a queued submission. The candidate must be a bot account
// present in the review guild, and its owner must resolve to a present main
// guild member; otherwise the command is rejected with no mutation.
func (s *ReviewService) Approve(ctx context.Context, staffID, botID string) (*domain.Bot, error) {
	candidate, err := s.chat.GuildMember(ctx, s.cfg.ReviewGuildID, botID)
	if err != nil {
		return nil, util.NewGuardError("That bot is not in the review server.")
	}
	if !candidate.IsBot {
		return nil, util.NewGuardError("This is not a bot.")
	}

	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewGuardError("This bot is not awaiting approval.")
		}
		return nil, err
	}
	if !bot.Queued() {
		return nil, util.NewGuardError("This bot is not awaiting approval.")
	}

	owner, err := s.chat.GuildMember(ctx, s.cfg.MainGuildID, bot.MainOwnerID)
	if err != nil {
		return nil, util.NewGuardError("The owner of this bot has left the main server, deny it!")
	}

	// Referral credit is best-effort; a stale code is not an error.
	if bot.ReferredBy != "" {
		if referrerID, err := s.users.GetIDByReferrerCode(ctx, bot.ReferredBy); err == nil {
			if err := s.users.IncrementReferrals(ctx, referrerID); err != nil {
				s.notifier.ReportError(ctx, "approve_referral", err)
			}
		}
	}

	if err := s.users.SetDeveloper(ctx, bot.MainOwnerID, true); err != nil {
		return nil, err
	}
	if err := s.bots.SetApproved(ctx, botID); err != nil {
		return nil, err
	}
	if err := s.staff.IncrementApproved(ctx, staffID); err != nil {
		s.notifier.ReportError(ctx, "approve_counter", err)
	}
	s.audit(ctx, staffID, botID, domain.ActionApprove, "")

	queued, err := s.bots.CountQueued(ctx)
	if err != nil {
		queued = 0
	}
	if _, err := s.chat.SendEmbed(ctx, s.cfg.ApprovalChannelID, gateway.Embed{
		Title:       fmt.Sprintf("Approved %s", bot.Username),
		Description: fmt.Sprintf("[Invite!](%s)\n\nThere are %d bot(s) in the queue.", s.inviteURL(botID, s.cfg.MainGuildID), queued),
		Color:       ColorBlurple,
	}); err != nil {
		s.notifier.ReportError(ctx, "approve_announce", err)
	}
	s.notifier.SiteLog(ctx, gateway.Embed{
		Description: fmt.Sprintf("``%s`` by ``%s`` was approved by ``%s``", bot.Username, owner.Username, s.staffName(ctx, staffID)),
		Color:       ColorBlurple,
	})

	if err := s.chat.AddRole(ctx, s.cfg.MainGuildID, bot.MainOwnerID, s.cfg.DeveloperRoleID); err != nil {
		s.notifier.ReportError(ctx, "approve_dev_role", err)
	}
	s.notifier.DMOwner(ctx, bot.MainOwnerID, fmt.Sprintf("Your bot `%s` was approved!", bot.Username))

	// The kick fires the member-remove event, which tears the workspace
	// down asynchronously.
	if err := s.chat.Kick(ctx, s.cfg.ReviewGuildID, botID, "Bot approved"); err != nil {
		s.notifier.ReportError(ctx, "approve_kick", err)
	}

	s.concluded(ctx, botID, staffID, domain.ActionApprove)
	s.refreshPresence(ctx)
	return bot, nil
}

// Deny denies a queued submission with a reason. A candidate that already
// left the review guild can still be denied; a present non-bot account
// cannot.
func (s *ReviewService) Deny(ctx context.Context, staffID, botID, reason string) (*domain.Bot, error) {
	if member, err := s.chat.GuildMember(ctx, s.cfg.ReviewGuildID, botID); err == nil && !member.IsBot {
		return nil, util.NewGuardError("This is not a bot.")
	}

	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewGuardError("This bot is not awaiting approval.")
		}
		return nil, err
	}
	if !bot.Queued() {
		return nil, util.NewGuardError("This bot is not awaiting approval.")
	}

	if err := s.bots.SetDenied(ctx, botID); err != nil {
		return nil, err
	}
	if err := s.staff.IncrementDenied(ctx, staffID); err != nil {
		s.notifier.ReportError(ctx, "deny_counter", err)
	}
	s.audit(ctx, staffID, botID, domain.ActionDeny, reason)

	s.notifier.DMOwner(ctx, bot.MainOwnerID, fmt.Sprintf("Your bot `%s` was denied!", bot.Username))
	s.notifier.SiteLog(ctx, gateway.Embed{
		Description: fmt.Sprintf("``%s`` was denied by ``%s`` for: \n```%s```", bot.Username, s.staffName(ctx, staffID), reason),
		Color:       ColorRed,
	})

	if err := s.chat.Kick(ctx, s.cfg.ReviewGuildID, botID, "Bot denied"); err != nil {
		s.notifier.ReportError(ctx, "deny_kick", err)
	}

	s.concluded(ctx, botID, staffID, domain.ActionDeny)
	return bot, nil
}

// Delete permanently removes a submission and its dependent rows, valid for
// any status. The fan-out delete runs inside one transaction, dependents
// first.
func (s *ReviewService) Delete(ctx context.Context, staffID, botID, reason string) (*domain.Bot, error) {
	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewGuardError("This bot is not on the list.")
		}
		return nil, err
	}

	if err := s.bots.DeleteCascade(ctx, botID); err != nil {
		return nil, err
	}
	s.audit(ctx, staffID, botID, domain.ActionDelete, reason)

	s.notifier.SiteLog(ctx, gateway.Embed{
		Description: fmt.Sprintf("``%s#%s`` by ``%s`` was deleted by ``%s`` for: \n```%s```",
			bot.Username, bot.Discriminator, bot.MainOwnerID, s.staffName(ctx, staffID), reason),
		Color: ColorRed,
	})

	owner, ownerErr := s.chat.GuildMember(ctx, s.cfg.MainGuildID, bot.MainOwnerID)

	if bot.Certified && ownerErr == nil {
		if err := s.chat.RemoveRole(ctx, s.cfg.MainGuildID, owner.ID, s.cfg.CertifiedDevRoleID); err != nil {
			s.notifier.ReportError(ctx, "delete_certified_role", err)
		}
	}

	remaining, err := s.bots.ListByOwner(ctx, bot.MainOwnerID)
	if err != nil {
		s.notifier.ReportError(ctx, "delete_owner_bots", err)
	} else if len(remaining) == 0 {
		if ownerErr == nil {
			if err := s.chat.RemoveRole(ctx, s.cfg.MainGuildID, owner.ID, s.cfg.DeveloperRoleID); err != nil {
				s.notifier.ReportError(ctx, "delete_dev_role", err)
			}
		}
		if err := s.users.SetDeveloper(ctx, bot.MainOwnerID, false); err != nil {
			s.notifier.ReportError(ctx, "delete_dev_flag", err)
		}
	}

	if _, err := s.chat.GuildMember(ctx, s.cfg.MainGuildID, botID); err == nil {
		if err := s.chat.Kick(ctx, s.cfg.MainGuildID, botID, "Bot deleted"); err != nil {
			s.notifier.ReportError(ctx, "delete_kick", err)
		}
	}

	s.concluded(ctx, botID, staffID, domain.ActionDelete)
	s.refreshPresence(ctx)
	return bot, nil
}

// Certify promotes an approved bot awaiting certification.
func (s *ReviewService) Certify(ctx context.Context, staffID, botID string) (*domain.Bot, error) {
	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewGuardError("This bot is not on the list.")
		}
		return nil, err
	}
	if !bot.AwaitingCertification {
		return nil, util.NewGuardError("This bot is not awaiting certification.")
	}

	if err := s.bots.SetCertified(ctx, botID, true); err != nil {
		return nil, err
	}
	s.audit(ctx, staffID, botID, domain.ActionCertify, "")

	if _, err := s.chat.GuildMember(ctx, s.cfg.MainGuildID, botID); err == nil {
		if err := s.chat.AddRole(ctx, s.cfg.MainGuildID, botID, s.cfg.CertifiedBotRoleID); err != nil {
			s.notifier.ReportError(ctx, "certify_bot_role", err)
		}
	}
	if err := s.chat.AddRole(ctx, s.cfg.MainGuildID, bot.MainOwnerID, s.cfg.CertifiedDevRoleID); err != nil {
		s.notifier.ReportError(ctx, "certify_dev_role", err)
	}

	s.notifier.Announce(ctx, gateway.Embed{
		Title:       fmt.Sprintf("%s is now certified!", bot.Username),
		Description: fmt.Sprintf("[View it on the site](%s/bot/%s/)", s.site, botID),
		Color:       ColorGreen,
	})
	s.notifier.DMOwner(ctx, bot.MainOwnerID, fmt.Sprintf("Your bot `%s` was certified!", bot.Username))
	return bot, nil
}

// DeclineCertification removes a bot from the certification queue.
func (s *ReviewService) DeclineCertification(ctx context.Context, staffID, botID, reason string) (*domain.Bot, error) {
	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewGuardError("This bot is not on the list.")
		}
		return nil, err
	}
	if !bot.AwaitingCertification {
		return nil, util.NewGuardError("This bot is not awaiting certification.")
	}

	if err := s.bots.SetAwaitingCertification(ctx, botID, false); err != nil {
		return nil, err
	}
	s.audit(ctx, staffID, botID, domain.ActionDeclineCertify, reason)

	s.notifier.SiteLog(ctx, gateway.Embed{
		Description: fmt.Sprintf("``%s`` was denied for certification for: \n```%s```", bot.Username, reason),
		Color:       ColorRed,
	})
	s.notifier.DMOwner(ctx, bot.MainOwnerID, fmt.Sprintf("Your bot `%s` was denied for certification.", bot.Username))
	return bot, nil
}

// InviteURL builds the OAuth invite for a bot into a guild.
func (s *ReviewService) InviteURL(botID, guildID string) string {
	return s.inviteURL(botID, guildID)
}

func (s *ReviewService) inviteURL(botID, guildID string) string {
	return fmt.Sprintf(
		"https://discord.com/oauth2/authorize?client_id=%s&scope=bot&guild_id=%s&disable_guild_select=true",
		botID, guildID)
}

// RefreshPresence recomputes the process presence text from the bot count.
func (s *ReviewService) RefreshPresence(ctx context.Context) {
	s.refreshPresence(ctx)
}

func (s *ReviewService) refreshPresence(ctx context.Context) {
	total, err := s.bots.CountAll(ctx)
	if err != nil {
		s.notifier.ReportError(ctx, "presence_count", err)
		return
	}
	if err := s.chat.UpdatePresence(fmt.Sprintf("Watching %d bots", total)); err != nil {
		s.notifier.ReportError(ctx, "presence_update", err)
	}
}

func (s *ReviewService) audit(ctx context.Context, staffID, botID string, action domain.ReviewActionType, reason string) {
	row := &domain.ReviewAction{
		ID:      uuid.NewString(),
		StaffID: staffID,
		BotID:   botID,
		Action:  action,
		Reason:  reason,
	}
	if err := s.actions.Insert(ctx, row); err != nil {
		s.notifier.ReportError(ctx, "audit_insert", err)
	}
}

func (s *ReviewService) concluded(ctx context.Context, botID, staffID string, action domain.ReviewActionType) {
	event := events.Event{
		ID:   uuid.NewString(),
		Type: events.EventBotConcluded,
		Payload: events.BotConcludedPayload{
			BotID:   botID,
			StaffID: staffID,
			Action:  string(action),
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("bot conclusion dispatch failed", zap.Error(err))
	}
}

func (s *ReviewService) staffName(ctx context.Context, staffID string) string {
	member, err := s.chat.GuildMember(ctx, s.cfg.MainGuildID, staffID)
	if err != nil {
		return staffID
	}
	return member.Username
}
