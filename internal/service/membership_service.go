package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/internal/tracker"
)

// MembershipService handles the non-candidate member flows in both guilds:
// role assignment on join and screening completion, staff checks in the
// review guild, departure alerts for listed bots, and owner-departure
// handling for in-flight and denied submissions.
type MembershipService struct {
	tracker  *tracker.Tracker
	chat     gateway.ChatGateway
	bots     repository.BotRepository
	users    repository.UserRepository
	staff    repository.StaffRepository
	notifier *NotificationService
	cfg      config.DiscordConfig
	logger   *zap.Logger
}

// MembershipDependencies bundles collaborators for the membership service.
type MembershipDependencies struct {
	Tracker   *tracker.Tracker
	Chat      gateway.ChatGateway
	BotRepo   repository.BotRepository
	UserRepo  repository.UserRepository
	StaffRepo repository.StaffRepository
	Notifier  *NotificationService
	Discord   config.DiscordConfig
	Logger    *zap.Logger
}

// NewMembershipService constructs the service.
func NewMembershipService(deps MembershipDependencies) *MembershipService {
	return &MembershipService{
		tracker:  deps.Tracker,
		chat:     deps.Chat,
		bots:     deps.BotRepo,
		users:    deps.UserRepo,
		staff:    deps.StaffRepo,
		notifier: deps.Notifier,
		cfg:      deps.Discord,
		logger:   deps.Logger,
	}
}

// RegisterHandlers subscribes the member lifecycle handlers.
func (s *MembershipService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventMemberJoined, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.MemberJoinedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		s.HandleMemberJoined(ctx, payload.Member)
		return nil
	})
	dispatcher.Subscribe(events.EventMemberUpdated, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.MemberUpdatedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		s.HandleMemberUpdated(ctx, payload.Before, payload.After)
		return nil
	})
	dispatcher.Subscribe(events.EventMemberLeft, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.MemberLeftPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		s.HandleMemberLeft(ctx, payload.Member)
		return nil
	})
	dispatcher.Subscribe(events.EventMessageReceived, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.MessageReceivedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		s.HandleMessage(ctx, payload)
		return nil
	})
}

// HandleMessage relays DMs to the alert channel and seeds the vote reactions
// on emoji suggestions.
func (s *MembershipService) HandleMessage(ctx context.Context, msg events.MessageReceivedPayload) {
	if msg.Author.IsBot {
		return
	}
	if msg.IsDM {
		s.notifier.RelayDM(ctx, msg.Author.Username, msg.Author.ID, msg.Content)
		return
	}
	if msg.ChannelID == s.cfg.EmojiSuggestChannelID {
		for _, emoji := range []string{"👍", "👎"} {
			if err := s.chat.React(ctx, msg.ChannelID, msg.MessageID, emoji); err != nil {
				s.notifier.ReportError(ctx, "emoji_suggest_react", err)
				return
			}
		}
	}
}

// HandleMemberJoined assigns roles in the main guild and verifies staff
// membership in the review guild.
func (s *MembershipService) HandleMemberJoined(ctx context.Context, member events.Member) {
	switch member.GuildID {
	case s.cfg.MainGuildID:
		s.handleMainGuildJoin(ctx, member)
	case s.cfg.ReviewGuildID:
		s.handleReviewGuildJoin(ctx, member)
	}
}

func (s *MembershipService) handleMainGuildJoin(ctx context.Context, member events.Member) {
	if member.IsBot {
		if err := s.chat.AddRole(ctx, s.cfg.MainGuildID, member.ID, s.cfg.BotRoleID); err != nil {
			s.notifier.ReportError(ctx, "member_join_bot_role", err)
		}
		return
	}
	// Humans get the member role once membership screening is passed;
	// pending members are picked up by HandleMemberUpdated.
	if member.Pending {
		return
	}
	if err := s.chat.AddRole(ctx, s.cfg.MainGuildID, member.ID, s.cfg.MemberRoleID); err != nil {
		s.notifier.ReportError(ctx, "member_join_role", err)
	}
}

func (s *MembershipService) handleReviewGuildJoin(ctx context.Context, member events.Member) {
	// Non-candidate bots in the review guild are the candidates' test
	// targets; they are invited by staff and left alone here.
	if member.IsBot {
		return
	}
	record, err := s.staff.GetByID(ctx, member.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if kickErr := s.chat.Kick(ctx, s.cfg.ReviewGuildID, member.ID, "Not a staff member"); kickErr != nil {
				s.notifier.ReportError(ctx, "review_guild_kick", kickErr)
			}
			return
		}
		s.notifier.ReportError(ctx, "review_guild_staff_lookup", err)
		return
	}
	if err := s.chat.AddRole(ctx, s.cfg.ReviewGuildID, member.ID, s.cfg.ModeratorRoleID); err != nil {
		s.notifier.ReportError(ctx, "review_guild_staff_role", err)
	}
	s.logger.Info("staff member joined review guild",
		zap.String("user", member.ID), zap.String("rank", string(record.Rank)))
}

// HandleMemberUpdated grants the member role when membership screening
// completes and mirrors premium role changes into the site account.
func (s *MembershipService) HandleMemberUpdated(ctx context.Context, before, after events.Member) {
	if after.GuildID != s.cfg.MainGuildID || after.IsBot {
		return
	}
	if before.Pending && !after.Pending {
		if err := s.chat.AddRole(ctx, s.cfg.MainGuildID, after.ID, s.cfg.MemberRoleID); err != nil {
			s.notifier.ReportError(ctx, "member_screening_role", err)
		}
	}

	if s.cfg.PremiumRoleID == "" {
		return
	}
	hadPremium := hasRole(before.RoleIDs, s.cfg.PremiumRoleID)
	hasPremium := hasRole(after.RoleIDs, s.cfg.PremiumRoleID)
	if hadPremium == hasPremium {
		return
	}
	if err := s.users.SetPremium(ctx, after.ID, hasPremium); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.notifier.ReportError(ctx, "premium_sync", err)
		}
	}
}

func hasRole(roleIDs []string, roleID string) bool {
	for _, id := range roleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// HandleMemberLeft alerts on listed bots leaving the main guild and walks the
// submissions of a departing owner: in-review workspaces get a notice, denied
// submissions are purged.
func (s *MembershipService) HandleMemberLeft(ctx context.Context, member events.Member) {
	if member.GuildID != s.cfg.MainGuildID {
		return
	}
	if member.IsBot {
		s.handleListedBotLeft(ctx, member)
		return
	}
	s.handleOwnerLeft(ctx, member)
}

func (s *MembershipService) handleListedBotLeft(ctx context.Context, member events.Member) {
	bot, err := s.bots.GetByID(ctx, member.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.notifier.ReportError(ctx, "bot_left_lookup", err)
		}
		return
	}
	if !bot.Approved {
		return
	}
	s.notifier.BotAlert(ctx, gateway.Embed{
		Title:       "Listed bot left the server",
		Color:       ColorRed,
		Description: fmt.Sprintf("**%s** (%s) is listed on the site but just left the main server.", bot.Username, bot.ID),
	})
}

func (s *MembershipService) handleOwnerLeft(ctx context.Context, member events.Member) {
	owned, err := s.bots.ListByOwner(ctx, member.ID)
	if err != nil {
		s.notifier.ReportError(ctx, "owner_left_lookup", err)
		return
	}

	var approved []string
	for _, bot := range owned {
		switch {
		case bot.Queued():
			if workspaceID, ok := s.tracker.LookupWorkspace(bot.ID); ok {
				notice := fmt.Sprintf("⚠️ The owner of **%s** (%s) just left the main server.",
					bot.Username, member.ID)
				if channels, chanErr := s.chat.CategoryChannels(ctx, s.cfg.ReviewGuildID, workspaceID); chanErr == nil {
					for _, channel := range channels {
						if channel.Voice || channel.NSFW {
							continue
						}
						if _, sendErr := s.chat.SendMessage(ctx, channel.ID, notice); sendErr != nil {
							s.notifier.ReportError(ctx, "owner_left_notice", sendErr)
						}
						break
					}
				}
			}
		case bot.Denied:
			if err := s.bots.DeleteCascade(ctx, bot.ID); err != nil {
				s.notifier.ReportError(ctx, "owner_left_purge", err)
				continue
			}
			s.notifier.SiteLog(ctx, gateway.Embed{
				Title:       "Denied bot removed",
				Color:       ColorRed,
				Description: fmt.Sprintf("**%s** was removed because its owner left the server.", bot.Username),
			})
		case bot.Approved:
			approved = append(approved, fmt.Sprintf("%s (%s)", bot.Username, bot.ID))
		}
	}

	if len(approved) > 0 {
		s.notifier.BotAlert(ctx, gateway.Embed{
			Title: "Bot owner left the server",
			Color: ColorRed,
			Description: fmt.Sprintf("**%s** (%s) left while owning listed bots:\n%s",
				member.Username, member.ID, strings.Join(approved, "\n")),
		})
	}
}
