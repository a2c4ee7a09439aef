package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/pkg/util"
)

// ParseRank maps the short command aliases to a staff rank.
func ParseRank(alias string) (domain.StaffRank, error) {
	switch alias {
	case "mod", "moderator":
		return domain.RankWebsiteModerator, nil
	case "senior-mod", "srmod":
		return domain.RankSeniorWebsiteModerator, nil
	case "admin":
		return domain.RankAdministrator, nil
	case "senior-admin", "sradmin":
		return domain.RankSeniorAdministrator, nil
	default:
		return "", util.NewValidationError(
			fmt.Sprintf("Unknown rank %q. Use mod, senior-mod, admin or senior-admin.", alias), nil)
	}
}

// StaffService manages staff records in the moderation store and keeps the
// review guild roles in step with them.
type StaffService struct {
	staff    repository.StaffRepository
	chat     gateway.ChatGateway
	notifier *NotificationService
	cfg      config.DiscordConfig
	logger   *zap.Logger
}

// NewStaffService constructs the service.
func NewStaffService(staff repository.StaffRepository, chat gateway.ChatGateway, notifier *NotificationService, cfg config.DiscordConfig, logger *zap.Logger) *StaffService {
	return &StaffService{staff: staff, chat: chat, notifier: notifier, cfg: cfg, logger: logger}
}

// Get returns a staff record, or a guard error when the user is not staff.
func (s *StaffService) Get(ctx context.Context, userID string) (*domain.StaffMember, error) {
	record, err := s.staff.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewGuardError("That user is not a staff member.")
		}
		return nil, util.NewInternalError(err)
	}
	return record, nil
}

// List returns all staff records ordered by hire date.
func (s *StaffService) List(ctx context.Context) ([]domain.StaffMember, error) {
	records, err := s.staff.List(ctx)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return records, nil
}

// Hire creates a staff record at the lowest rank and grants the review-guild
// role when the user is present there.
func (s *StaffService) Hire(ctx context.Context, actorID, userID, countryCode string) (*domain.StaffMember, error) {
	if _, err := s.staff.GetByID(ctx, userID); err == nil {
		return nil, util.NewGuardError("That user is already a staff member.")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewInternalError(err)
	}

	record := &domain.StaffMember{
		UserID:      userID,
		Rank:        domain.RankWebsiteModerator,
		CountryCode: countryCode,
		JoinedAt:    time.Now().UTC(),
	}
	if err := s.staff.Create(ctx, record); err != nil {
		return nil, util.NewInternalError(err)
	}

	if err := s.chat.AddRole(ctx, s.cfg.ReviewGuildID, userID, s.cfg.ModeratorRoleID); err != nil {
		// The user may not be in the review guild yet; the join handler
		// grants the role once they arrive.
		s.logger.Debug("hire role grant skipped", zap.String("user", userID), zap.Error(err))
	}

	s.notifier.AdminLog(ctx, gateway.Embed{
		Title:       "Staff hired",
		Color:       ColorGreen,
		Description: fmt.Sprintf("<@%s> was hired by <@%s>.", userID, actorID),
	}, "", nil)
	return record, nil
}

// Fire deletes the staff record, strips the role and removes the user from
// the review guild.
func (s *StaffService) Fire(ctx context.Context, actorID, userID string) error {
	if err := s.staff.Delete(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewGuardError("That user is not a staff member.")
		}
		return util.NewInternalError(err)
	}

	if err := s.chat.RemoveRole(ctx, s.cfg.ReviewGuildID, userID, s.cfg.ModeratorRoleID); err != nil {
		s.logger.Debug("fire role removal skipped", zap.String("user", userID), zap.Error(err))
	}
	if err := s.chat.Kick(ctx, s.cfg.ReviewGuildID, userID, "No longer a staff member"); err != nil {
		s.logger.Debug("fire kick skipped", zap.String("user", userID), zap.Error(err))
	}

	s.notifier.AdminLog(ctx, gateway.Embed{
		Title:       "Staff fired",
		Color:       ColorRed,
		Description: fmt.Sprintf("<@%s> was fired by <@%s>.", userID, actorID),
	}, "", nil)
	return nil
}

// SetRank changes a staff member's rank.
func (s *StaffService) SetRank(ctx context.Context, actorID, userID string, rank domain.StaffRank) error {
	if err := s.staff.SetRank(ctx, userID, rank); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewGuardError("That user is not a staff member.")
		}
		return util.NewInternalError(err)
	}
	s.notifier.AdminLog(ctx, gateway.Embed{
		Title:       "Staff rank changed",
		Color:       ColorBlurple,
		Description: fmt.Sprintf("<@%s> is now `%s` (changed by <@%s>).", userID, rank, actorID),
	}, "", nil)
	return nil
}

// SetCountry records the staff member's country code, used on the site's
// staff page.
func (s *StaffService) SetCountry(ctx context.Context, userID, countryCode string) error {
	if err := s.staff.SetCountry(ctx, userID, countryCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewGuardError("That user is not a staff member.")
		}
		return util.NewInternalError(err)
	}
	return nil
}

// Strike adds a strike to a staff member and reports the new total.
func (s *StaffService) Strike(ctx context.Context, actorID, userID string) (int, error) {
	if err := s.staff.AddStrike(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, util.NewGuardError("That user is not a staff member.")
		}
		return 0, util.NewInternalError(err)
	}
	record, err := s.staff.GetByID(ctx, userID)
	if err != nil {
		return 0, util.NewInternalError(err)
	}
	s.notifier.AdminLog(ctx, gateway.Embed{
		Title:       "Staff strike",
		Color:       ColorRed,
		Description: fmt.Sprintf("<@%s> was struck by <@%s>. Total strikes: %d", userID, actorID, record.Strikes),
	}, "", nil)
	return record.Strikes, nil
}

// Authorize returns the staff record when userID holds at least the given
// rank, and a guard error otherwise. Commands call this before mutating
// anything.
func (s *StaffService) Authorize(ctx context.Context, userID string, rank domain.StaffRank) (*domain.StaffMember, error) {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !record.AtLeast(rank) {
		return nil, util.NewGuardError("You do not have permission to use this command.")
	}
	return record, nil
}
