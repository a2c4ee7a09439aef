package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/service"
	"github.com/blist-xyz/review-service/pkg/util"
)

func (r *Registry) registerStaffCommands() {
	r.Register(Command{
		Name:        "staff",
		Description: "List staff members and their review counters.",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleStaffList,
	})
	r.Register(Command{
		Name:        "hire",
		Description: "Hire a new website moderator.",
		Usage:       "hire <user> [country]",
		MinRank:     domain.RankAdministrator,
		Handler:     r.handleHire,
	})
	r.Register(Command{
		Name:        "fire",
		Description: "Remove a staff member.",
		Usage:       "fire <user>",
		MinRank:     domain.RankAdministrator,
		Handler:     r.handleFire,
	})
	r.Register(Command{
		Name:        "setrank",
		Description: "Change a staff member's rank.",
		Usage:       "setrank <user> <mod|senior-mod|admin|senior-admin>",
		MinRank:     domain.RankSeniorAdministrator,
		Handler:     r.handleSetRank,
	})
	r.Register(Command{
		Name:        "country",
		Description: "Set your staff-page country code.",
		Usage:       "country <code>",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleCountry,
	})
	r.Register(Command{
		Name:        "strike",
		Description: "Add a strike to a staff member.",
		Usage:       "strike <user>",
		MinRank:     domain.RankAdministrator,
		Handler:     r.handleStrike,
	})
	r.Register(Command{
		Name:        "rank",
		Aliases:     []string{"level"},
		Description: "Show a user's level and XP.",
		Usage:       "rank [user]",
		Handler:     r.handleRank,
	})
	r.Register(Command{
		Name:        "xpblacklist",
		Description: "Toggle the XP blacklist for a user.",
		Usage:       "xpblacklist <user> <on|off>",
		MinRank:     domain.RankAdministrator,
		Handler:     r.handleXPBlacklist,
	})
}

func (r *Registry) handleStaffList(ctx context.Context, inv *Invocation) error {
	records, err := r.staff.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return inv.Reply(ctx, "No staff records found.")
	}
	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, fmt.Sprintf("<@%s> `%s` | ✅ %d | ❌ %d | strikes %d",
			record.UserID, record.Rank, record.ApprovedCount, record.DeniedCount, record.Strikes))
	}
	return inv.ReplyEmbed(ctx, gateway.Embed{
		Title:       "Staff",
		Description: strings.Join(lines, "\n"),
		Color:       service.ColorBlurple,
	})
}

func (r *Registry) handleHire(ctx context.Context, inv *Invocation) error {
	userID, ok := firstUserArg(inv)
	if !ok {
		return util.NewValidationError("Usage: `hire <user> [country]`", nil)
	}
	country := ""
	if len(inv.Args) > 1 {
		country = strings.ToUpper(inv.Args[1])
	}
	record, err := r.staff.Hire(ctx, inv.Author.ID, userID, country)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("<@%s> hired as `%s`. Welcome aboard!", userID, record.Rank))
}

func (r *Registry) handleFire(ctx context.Context, inv *Invocation) error {
	userID, ok := firstUserArg(inv)
	if !ok {
		return util.NewValidationError("Usage: `fire <user>`", nil)
	}
	if err := r.staff.Fire(ctx, inv.Author.ID, userID); err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("<@%s> is no longer staff.", userID))
}

func (r *Registry) handleSetRank(ctx context.Context, inv *Invocation) error {
	userID, ok := firstUserArg(inv)
	if !ok || len(inv.Args) < 2 {
		return util.NewValidationError("Usage: `setrank <user> <mod|senior-mod|admin|senior-admin>`", nil)
	}
	rank, err := service.ParseRank(strings.ToLower(inv.Args[1]))
	if err != nil {
		return err
	}
	if err := r.staff.SetRank(ctx, inv.Author.ID, userID, rank); err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("<@%s> is now `%s`.", userID, rank))
}

func (r *Registry) handleCountry(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) < 1 {
		return util.NewValidationError("Usage: `country <code>`", nil)
	}
	code := strings.ToUpper(inv.Args[0])
	if len(code) != 2 {
		return util.NewValidationError("Country codes are two letters, e.g. `GB`.", nil)
	}
	if err := r.staff.SetCountry(ctx, inv.Author.ID, code); err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("Country set to `%s`.", code))
}

func (r *Registry) handleStrike(ctx context.Context, inv *Invocation) error {
	userID, ok := firstUserArg(inv)
	if !ok {
		return util.NewValidationError("Usage: `strike <user>`", nil)
	}
	total, err := r.staff.Strike(ctx, inv.Author.ID, userID)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("<@%s> now has %d strike(s).", userID, total))
}

func (r *Registry) handleRank(ctx context.Context, inv *Invocation) error {
	userID := inv.Author.ID
	if id, ok := firstUserArg(inv); ok {
		userID = id
	}
	profile, err := r.leveling.Profile(ctx, userID)
	if err != nil {
		return err
	}
	return inv.ReplyEmbed(ctx, gateway.Embed{
		Title:       "Level",
		Description: fmt.Sprintf("<@%s> is level **%d** with **%d/%d** XP.", userID, profile.Level, profile.XP, profile.XPNeeded()),
		Color:       service.ColorBlurple,
	})
}

func (r *Registry) handleXPBlacklist(ctx context.Context, inv *Invocation) error {
	userID, ok := firstUserArg(inv)
	if !ok || len(inv.Args) < 2 {
		return util.NewValidationError("Usage: `xpblacklist <user> <on|off>`", nil)
	}
	var blacklisted bool
	switch strings.ToLower(inv.Args[1]) {
	case "on", "true", "yes":
		blacklisted = true
	case "off", "false", "no":
		blacklisted = false
	default:
		return util.NewValidationError("Usage: `xpblacklist <user> <on|off>`", nil)
	}
	if err := r.leveling.SetBlacklisted(ctx, userID, blacklisted); err != nil {
		return err
	}
	if blacklisted {
		return inv.Reply(ctx, fmt.Sprintf("<@%s> no longer earns XP.", userID))
	}
	return inv.Reply(ctx, fmt.Sprintf("<@%s> earns XP again.", userID))
}

func firstUserArg(inv *Invocation) (string, bool) {
	if len(inv.Args) == 0 {
		return "", false
	}
	return ParseUserID(inv.Args[0])
}
