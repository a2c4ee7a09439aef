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

func (r *Registry) registerReviewCommands() {
	r.Register(Command{
		Name:        "queue",
		Aliases:     []string{"q"},
		Description: "List submissions awaiting review.",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleQueue,
	})
	r.Register(Command{
		Name:        "certqueue",
		Aliases:     []string{"cq"},
		Description: "List bots awaiting certification.",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleCertQueue,
	})
	r.Register(Command{
		Name:        "approve",
		Description: "Approve the bot under review.",
		Usage:       "approve [bot]",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleApprove,
	})
	r.Register(Command{
		Name:        "deny",
		Description: "Deny the bot under review.",
		Usage:       "deny [bot]",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleDeny,
	})
	r.Register(Command{
		Name:        "delete",
		Description: "Remove a listed bot and all its site data.",
		Usage:       "delete <bot>",
		MinRank:     domain.RankSeniorWebsiteModerator,
		Handler:     r.handleDelete,
	})
	r.Register(Command{
		Name:        "certify",
		Description: "Certify a bot awaiting certification.",
		Usage:       "certify <bot>",
		MinRank:     domain.RankAdministrator,
		Handler:     r.handleCertify,
	})
	r.Register(Command{
		Name:        "declinecertify",
		Aliases:     []string{"uncertify"},
		Description: "Decline a pending certification request.",
		Usage:       "declinecertify <bot>",
		MinRank:     domain.RankAdministrator,
		Handler:     r.handleDeclineCertify,
	})
	r.Register(Command{
		Name:        "hold",
		Description: "Pause the stale sweep for this workspace.",
		Usage:       "hold [note]",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleHold,
	})
	r.Register(Command{
		Name:        "unhold",
		Description: "Resume the stale sweep for this workspace.",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleUnhold,
	})
	r.Register(Command{
		Name:        "history",
		Description: "Show the audited review decisions for a bot.",
		Usage:       "history <bot>",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleHistory,
	})
	r.Register(Command{
		Name:        "reason",
		Description: "Back-fill the reason on an audited decision.",
		Usage:       "reason <action-id> <text>",
		MinRank:     domain.RankAdministrator,
		Handler:     r.handleReason,
	})
	r.Register(Command{
		Name:        "invite",
		Description: "Build the invite link for a bot.",
		Usage:       "invite <bot>",
		MinRank:     domain.RankWebsiteModerator,
		Handler:     r.handleInvite,
	})
}

func (r *Registry) handleQueue(ctx context.Context, inv *Invocation) error {
	queued, err := r.reviews.Queue(ctx)
	if err != nil {
		return err
	}
	return inv.ReplyEmbed(ctx, queueEmbed("Queue", queued, func(bot domain.Bot) string {
		return r.reviews.InviteURL(bot.ID, r.cfg.Discord.ReviewGuildID)
	}))
}

func (r *Registry) handleCertQueue(ctx context.Context, inv *Invocation) error {
	pending, err := r.reviews.CertificationQueue(ctx)
	if err != nil {
		return err
	}
	return inv.ReplyEmbed(ctx, queueEmbed("Certification queue", pending, func(bot domain.Bot) string {
		return fmt.Sprintf("%s/bot/%s/", r.cfg.Review.SiteBaseURL, bot.ID)
	}))
}

func queueEmbed(title string, bots []domain.Bot, link func(domain.Bot) string) gateway.Embed {
	if len(bots) == 0 {
		return gateway.Embed{Title: title, Description: "All clear!", Color: service.ColorGreen}
	}
	lines := make([]string, 0, len(bots))
	for i, bot := range bots {
		lines = append(lines, fmt.Sprintf("%d. [%s](%s)", i+1, bot.Username, link(bot)))
	}
	return gateway.Embed{Title: title, Description: strings.Join(lines, "\n"), Color: service.ColorBlurple}
}

func (r *Registry) handleApprove(ctx context.Context, inv *Invocation) error {
	botID, err := r.targetBot(inv)
	if err != nil {
		return err
	}
	bot, err := r.reviews.Approve(ctx, inv.Author.ID, botID)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("✅ **%s** has been approved.", bot.Username))
}

func (r *Registry) handleDeny(ctx context.Context, inv *Invocation) error {
	botID, err := r.targetBot(inv)
	if err != nil {
		return err
	}
	reason, err := r.promptReason(ctx, inv, "Why is this bot being denied?", domain.CannedDenyReasons)
	if err != nil {
		return err
	}
	bot, err := r.reviews.Deny(ctx, inv.Author.ID, botID, reason)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("❌ **%s** has been denied.", bot.Username))
}

func (r *Registry) handleDelete(ctx context.Context, inv *Invocation) error {
	botID, err := r.targetBot(inv)
	if err != nil {
		return err
	}
	reason, err := r.promptReason(ctx, inv, "Why is this bot being deleted?", domain.CannedDeleteReasons)
	if err != nil {
		return err
	}
	bot, err := r.reviews.Delete(ctx, inv.Author.ID, botID, reason)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("🗑️ **%s** has been removed from the list.", bot.Username))
}

func (r *Registry) handleCertify(ctx context.Context, inv *Invocation) error {
	botID, err := r.targetBot(inv)
	if err != nil {
		return err
	}
	bot, err := r.reviews.Certify(ctx, inv.Author.ID, botID)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("🏅 **%s** is now certified.", bot.Username))
}

func (r *Registry) handleDeclineCertify(ctx context.Context, inv *Invocation) error {
	botID, err := r.targetBot(inv)
	if err != nil {
		return err
	}
	reason, err := r.promptReason(ctx, inv, "Why is certification being declined?", domain.CannedDenyReasons)
	if err != nil {
		return err
	}
	bot, err := r.reviews.DeclineCertification(ctx, inv.Author.ID, botID, reason)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("**%s** was removed from the certification queue.", bot.Username))
}

func (r *Registry) handleHold(ctx context.Context, inv *Invocation) error {
	note := strings.Join(inv.Args, " ")
	if err := r.life.Hold(ctx, inv.Author.ID, inv.CategoryID, note); err != nil {
		return err
	}
	return inv.Reply(ctx, "⏸️ This workspace is on hold; the stale sweep will skip it.")
}

func (r *Registry) handleUnhold(ctx context.Context, inv *Invocation) error {
	if err := r.life.Unhold(ctx, inv.Author.ID, inv.CategoryID); err != nil {
		return err
	}
	return inv.Reply(ctx, "▶️ Hold released; the stale sweep covers this workspace again.")
}

func (r *Registry) handleHistory(ctx context.Context, inv *Invocation) error {
	botID, err := r.targetBot(inv)
	if err != nil {
		return err
	}
	actions, err := r.actions.ListByBot(ctx, botID)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		return inv.Reply(ctx, "No audited decisions for that bot.")
	}
	lines := make([]string, 0, len(actions))
	for _, action := range actions {
		line := fmt.Sprintf("`%s` **%s** by <@%s> on %s",
			action.ID, action.Action, action.StaffID, action.CreatedAt.Format("2006-01-02 15:04"))
		if action.Reason != "" {
			line += fmt.Sprintf(" for: %s", action.Reason)
		}
		lines = append(lines, line)
	}
	return inv.ReplyEmbed(ctx, gateway.Embed{
		Title:       "Review history",
		Description: strings.Join(lines, "\n"),
		Color:       service.ColorBlurple,
	})
}

func (r *Registry) handleReason(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) < 2 {
		return util.NewValidationError("Usage: `reason <action-id> <text>`", nil)
	}
	actionID := inv.Args[0]
	reason := strings.Join(inv.Args[1:], " ")
	if err := r.actions.BackfillReason(ctx, actionID, reason); err != nil {
		return err
	}
	return inv.Reply(ctx, "Reason recorded.")
}

func (r *Registry) handleInvite(ctx context.Context, inv *Invocation) error {
	botID, err := r.targetBot(inv)
	if err != nil {
		return err
	}
	return inv.Reply(ctx, r.reviews.InviteURL(botID, inv.GuildID))
}
