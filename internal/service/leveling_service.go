package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/persistence"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/pkg/util"
)

// LevelingService grants message XP in the main guild. Each counted message
// awards a random amount inside the configured band; a per-user redis
// cooldown throttles farming and a level-up resets XP and bumps the level.
type LevelingService struct {
	leveling repository.LevelingRepository
	users    repository.UserRepository
	cache    *persistence.Redis
	chat     gateway.ChatGateway
	notifier *NotificationService
	discord  config.DiscordConfig
	cfg      config.LevelingConfig
	logger   *zap.Logger
}

// LevelingDependencies bundles collaborators for the leveling service.
type LevelingDependencies struct {
	LevelingRepo repository.LevelingRepository
	UserRepo     repository.UserRepository
	Cache        *persistence.Redis
	Chat         gateway.ChatGateway
	Notifier     *NotificationService
	Discord      config.DiscordConfig
	Leveling     config.LevelingConfig
	Logger       *zap.Logger
}

// NewLevelingService constructs the service.
func NewLevelingService(deps LevelingDependencies) *LevelingService {
	return &LevelingService{
		leveling: deps.LevelingRepo,
		users:    deps.UserRepo,
		cache:    deps.Cache,
		chat:     deps.Chat,
		notifier: deps.Notifier,
		discord:  deps.Discord,
		cfg:      deps.Leveling,
		logger:   deps.Logger,
	}
}

// RegisterHandlers subscribes the XP handler.
func (s *LevelingService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventMessageReceived, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.MessageReceivedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		s.HandleMessage(ctx, payload)
		return nil
	})
}

// HandleMessage awards XP for a counted main-guild message. Bots, DMs,
// ignored channels, blacklisted profiles and messages inside the cooldown
// window award nothing.
func (s *LevelingService) HandleMessage(ctx context.Context, msg events.MessageReceivedPayload) {
	if !s.counted(msg) {
		return
	}

	won, err := s.cache.AcquireCooldown(ctx, cooldownKey(msg.Author.ID), s.cfg.Cooldown())
	if err != nil {
		s.logger.Debug("xp cooldown check failed", zap.Error(err))
		return
	}
	if !won {
		return
	}

	account, err := s.users.GetByID(ctx, msg.Author.ID)
	if err != nil {
		// No site account, no XP row to credit.
		if !errors.Is(err, pgx.ErrNoRows) {
			s.notifier.ReportError(ctx, "xp_account_lookup", err)
		}
		return
	}

	profile, err := s.leveling.Get(ctx, account.UniqueID)
	if errors.Is(err, pgx.ErrNoRows) {
		profile = &domain.LevelingProfile{UserUniqueID: account.UniqueID, Level: 1}
		if err := s.leveling.Create(ctx, profile); err != nil {
			s.notifier.ReportError(ctx, "xp_profile_create", err)
			return
		}
	} else if err != nil {
		s.notifier.ReportError(ctx, "xp_profile_lookup", err)
		return
	}
	if profile.Blacklisted {
		return
	}

	gained := s.cfg.MinXP
	if spread := s.cfg.MaxXP - s.cfg.MinXP; spread > 0 {
		gained += rand.Intn(spread + 1)
	}
	if err := s.leveling.AddXP(ctx, account.UniqueID, gained); err != nil {
		s.notifier.ReportError(ctx, "xp_add", err)
		return
	}

	if profile.XP+gained >= profile.XPNeeded() {
		if err := s.leveling.LevelUp(ctx, account.UniqueID); err != nil {
			s.notifier.ReportError(ctx, "xp_level_up", err)
			return
		}
		announcement := fmt.Sprintf("🎉 <@%s> is now level **%d**!", msg.Author.ID, profile.Level+1)
		if _, err := s.chat.SendMessage(ctx, msg.ChannelID, announcement); err != nil {
			s.notifier.ReportError(ctx, "xp_level_up_message", err)
		}
	}
}

// Profile returns a user's leveling row for the rank command.
func (s *LevelingService) Profile(ctx context.Context, userID string) (*domain.LevelingProfile, error) {
	account, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewGuardError("That user has no site account.")
		}
		return nil, util.NewInternalError(err)
	}
	profile, err := s.leveling.Get(ctx, account.UniqueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.LevelingProfile{UserUniqueID: account.UniqueID, Level: 1}, nil
		}
		return nil, util.NewInternalError(err)
	}
	return profile, nil
}

// SetBlacklisted toggles the XP blacklist flag for a site account.
func (s *LevelingService) SetBlacklisted(ctx context.Context, userID string, blacklisted bool) error {
	account, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewGuardError("That user has no site account.")
		}
		return util.NewInternalError(err)
	}
	if err := s.leveling.SetBlacklisted(ctx, account.UniqueID, blacklisted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewGuardError("That user has no leveling profile.")
		}
		return util.NewInternalError(err)
	}
	return nil
}

func (s *LevelingService) counted(msg events.MessageReceivedPayload) bool {
	if msg.IsDM || msg.Author.IsBot || msg.GuildID != s.discord.MainGuildID {
		return false
	}
	for _, id := range s.discord.XPIgnoredChannelIDs {
		if id == msg.ChannelID {
			return false
		}
	}
	for _, id := range s.discord.XPIgnoredCategoryIDs {
		if id == msg.CategoryID {
			return false
		}
	}
	return true
}

func cooldownKey(userID string) string {
	return "xp:cooldown:" + userID
}
