package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/internal/tracker"
	"github.com/blist-xyz/review-service/pkg/util"
)

const transcriptSeparator = "\n---------\n"

// LifecycleService owns the review workspace lifecycle: creation when a
// candidate joins the review guild, teardown with transcript capture when it
// leaves, the hold escape hatch, and tracker reconciliation after restarts.
type LifecycleService struct {
	tracker  *tracker.Tracker
	chat     gateway.ChatGateway
	bots     repository.BotRepository
	mutes    repository.MuteRepository
	notifier *NotificationService
	cfg      config.DiscordConfig
	site     string
	logger   *zap.Logger
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Tracker  *tracker.Tracker
	Chat     gateway.ChatGateway
	BotRepo  repository.BotRepository
	MuteRepo repository.MuteRepository
	Notifier *NotificationService
	Discord  config.DiscordConfig
	SiteURL  string
	Logger   *zap.Logger
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tracker:  deps.Tracker,
		chat:     deps.Chat,
		bots:     deps.BotRepo,
		mutes:    deps.MuteRepo,
		notifier: deps.Notifier,
		cfg:      deps.Discord,
		site:     deps.SiteURL,
		logger:   deps.Logger,
	}
}

// RegisterHandlers subscribes the candidate lifecycle handlers.
func (s *LifecycleService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventCandidateJoined, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.CandidateJoinedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		s.HandleCandidateJoined(ctx, payload.Candidate)
		return nil
	})
	dispatcher.Subscribe(events.EventCandidateLeft, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.CandidateLeftPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		s.HandleCandidateLeft(ctx, payload.Candidate)
		return nil
	})
}

// HandleCandidateJoined sets up the review workspace for a candidate that
// entered the review guild. Each sub-step failure is reported and the rest
// of the flow keeps going; a redelivered join for an already-tracked
// candidate is a no-op.
func (s *LifecycleService) HandleCandidateJoined(ctx context.Context, candidate events.Member) {
	if workspaceID, ok := s.tracker.LookupWorkspace(candidate.ID); ok {
		if _, err := s.chat.CategoryCreatedAt(workspaceID); err == nil {
			s.logger.Info("candidate already tracked, skipping workspace creation",
				zap.String("candidate", candidate.ID), zap.String("workspace", workspaceID))
			return
		}
	}

	if err := s.chat.AddRole(ctx, s.cfg.ReviewGuildID, candidate.ID, s.cfg.TestingBotRoleID); err != nil {
		s.notifier.ReportError(ctx, "workspace_role", err)
	}

	workspace, err := s.chat.CreateWorkspace(ctx, s.cfg.ReviewGuildID, gateway.WorkspaceSpec{
		Name:          candidate.Username,
		CandidateID:   candidate.ID,
		ManagerRoleID: s.cfg.ModeratorRoleID,
		HiddenRoleID:  s.cfg.TestingBotRoleID,
	})
	if err != nil {
		s.notifier.ReportError(ctx, "workspace_create", err)
		return
	}
	s.tracker.Record(candidate.ID, workspace.CategoryID)

	bot, err := s.bots.GetByID(ctx, candidate.ID)
	if err != nil {
		// No submission row: skip the summary but keep the workspace.
		if !errors.Is(err, pgx.ErrNoRows) {
			s.notifier.ReportError(ctx, "workspace_submission", err)
		}
		return
	}

	ownerLine := bot.MainOwnerID
	owner, ownerErr := s.chat.GuildMember(ctx, s.cfg.MainGuildID, bot.MainOwnerID)
	if ownerErr == nil {
		ownerLine = fmt.Sprintf("%s (%s)", owner.Username, owner.ID)
	}

	embed := gateway.Embed{
		Title: bot.Username,
		Color: ColorBlurple,
		Description: fmt.Sprintf(
			"**Owner:** %s\n**Prefix:** %s\n**Tags:** %s\n**Added:** %s\n\n**Short Description:** %s\n",
			ownerLine, bot.Prefix, strings.Join(bot.Tags, ", "),
			bot.Added.Format("2006-01-02"), bot.ShortDescription),
		Fields: []gateway.EmbedField{
			{
				Name: "**Links**",
				Value: fmt.Sprintf(
					"**Privacy Policy:** %s\n**Website:** %s\n**Invite:** %s\n**Blist Link:** %s/bot/%s/",
					orNone(bot.PrivacyPolicyURL), orNone(bot.Website),
					orDefault(bot.InviteURL), s.site, bot.ID),
			},
			{Name: "Notes", Value: orNone(bot.Notes)},
		},
	}
	messageID, err := s.chat.SendEmbed(ctx, workspace.GeneralID, embed)
	if err != nil {
		s.notifier.ReportError(ctx, "workspace_summary", err)
	} else if err := s.chat.PinMessage(ctx, workspace.GeneralID, messageID); err != nil {
		s.notifier.ReportError(ctx, "workspace_pin", err)
	}

	if ownerErr != nil {
		if _, err := s.chat.SendMessage(ctx, workspace.GeneralID,
			"⚠️ **The owner of this bot cannot be found in the main server. Deny it!**"); err != nil {
			s.notifier.ReportError(ctx, "workspace_owner_warning", err)
		}
	}
}

// HandleCandidateLeft tears the workspace down: transcript capture, channel
// deletion, admin-log summary and tracker cleanup. Partial transcript
// failures never block the teardown. Independently, an account that leaves
// while muted is banned.
func (s *LifecycleService) HandleCandidateLeft(ctx context.Context, candidate events.Member) {
	workspaceID, ok := s.tracker.LookupWorkspace(candidate.ID)
	if !ok {
		// Tracker may be empty after an unclean restart; fall back to
		// matching the category by the departing member's name.
		workspaceID, ok = s.findWorkspaceByName(ctx, candidate.Username)
	}

	if ok {
		s.teardownWorkspace(ctx, candidate, workspaceID)
		s.tracker.Forget(candidate.ID)
	}

	muted, err := s.mutes.IsMuted(ctx, candidate.ID)
	if err != nil {
		s.notifier.ReportError(ctx, "teardown_mute_check", err)
	} else if muted {
		banReason := "Left whilst muted"
		if mute, muteErr := s.mutes.Get(ctx, candidate.ID); muteErr == nil && mute.Reason != "" {
			banReason = fmt.Sprintf("Left whilst muted (muted for: %s)", mute.Reason)
		}
		if err := s.chat.Ban(ctx, s.cfg.ReviewGuildID, candidate.ID, banReason); err != nil {
			s.notifier.ReportError(ctx, "teardown_evasion_ban", err)
		}
	}
}

func (s *LifecycleService) findWorkspaceByName(ctx context.Context, name string) (string, bool) {
	categories, err := s.chat.GuildCategories(ctx, s.cfg.ReviewGuildID)
	if err != nil {
		s.notifier.ReportError(ctx, "teardown_category_scan", err)
		return "", false
	}
	for _, category := range categories {
		if category.Name == name {
			return category.ID, true
		}
	}
	return "", false
}

func (s *LifecycleService) teardownWorkspace(ctx context.Context, candidate events.Member, workspaceID string) {
	channels, err := s.chat.CategoryChannels(ctx, s.cfg.ReviewGuildID, workspaceID)
	if err != nil {
		s.notifier.ReportError(ctx, "teardown_channels", err)
		channels = nil
	}

	var transcript []domain.TranscriptMessage
	reviewedBy := "Not Found"

	for _, channel := range channels {
		if channel.Voice {
			continue
		}
		history, err := s.chat.ChannelHistory(ctx, channel.ID)
		if err != nil {
			// One channel's history failure must not abort the others.
			s.notifier.ReportError(ctx, "teardown_history", err)
			continue
		}
		for _, msg := range history {
			if s.isDecisionCommand(msg.Content) {
				reviewedBy = fmt.Sprintf("%s (%s)", msg.AuthorName, msg.AuthorID)
			}
			transcript = append(transcript, domain.TranscriptMessage{
				ChannelName: msg.ChannelName,
				AuthorName:  msg.AuthorName,
				AuthorID:    msg.AuthorID,
				Content:     msg.Content,
				Attachments: msg.Attachments,
				Embeds:      msg.Embeds,
				Components:  msg.Components,
			})
		}
	}

	invitedBy := "Not Found"
	if inviterID, err := s.chat.BotInviter(ctx, s.cfg.ReviewGuildID, candidate.ID); err != nil {
		s.notifier.ReportError(ctx, "teardown_inviter", err)
	} else if inviterID != "" {
		invitedBy = inviterID
		if inviter, err := s.chat.GuildMember(ctx, s.cfg.ReviewGuildID, inviterID); err == nil {
			invitedBy = fmt.Sprintf("%s (%s)", inviter.Username, inviter.ID)
		}
	}

	for _, channel := range channels {
		if err := s.chat.DeleteChannel(ctx, channel.ID); err != nil {
			s.notifier.ReportError(ctx, "teardown_delete_channel", err)
		}
	}

	timeTaken := time.Duration(0)
	if createdAt, err := s.chat.CategoryCreatedAt(workspaceID); err == nil {
		timeTaken = time.Since(createdAt).Round(time.Second)
	}

	if err := s.chat.DeleteChannel(ctx, workspaceID); err != nil {
		s.notifier.ReportError(ctx, "teardown_delete_category", err)
	}

	summary := domain.ReviewSummary{
		BotName:      candidate.Username,
		BotID:        candidate.ID,
		ReviewedBy:   reviewedBy,
		InvitedBy:    invitedBy,
		MessageCount: len(transcript),
		TimeTaken:    timeTaken,
	}
	fileName := strings.ReplaceAll(candidate.Username, " ", "_") + ".txt"
	s.notifier.AdminLog(ctx, summaryEmbed(summary), fileName, strings.NewReader(renderTranscript(transcript)))
}

// isDecisionCommand reports whether a message invoked approve or deny,
// identifying who handled the review.
func (s *LifecycleService) isDecisionCommand(content string) bool {
	lowered := strings.ToLower(strings.TrimSpace(content))
	for _, cmd := range []string{"approve", "deny"} {
		full := strings.ToLower(s.cfg.CommandPrefix) + cmd
		if lowered == full || strings.HasPrefix(lowered, full+" ") {
			return true
		}
	}
	return false
}

func summaryEmbed(summary domain.ReviewSummary) gateway.Embed {
	return gateway.Embed{
		Title: "Bot reviewed",
		Color: ColorBlurple,
		Description: fmt.Sprintf(
			"**Bot**: %s (%s)\n**Reviewed by**: %s\n\n**Invited by**: %s\n**Total Messages**: %d\n**Time Taken**: %s",
			summary.BotName, summary.BotID, summary.ReviewedBy, summary.InvitedBy, summary.MessageCount, summary.TimeTaken),
	}
}

func renderTranscript(transcript []domain.TranscriptMessage) string {
	entries := make([]string, 0, len(transcript))
	for _, msg := range transcript {
		var b strings.Builder
		fmt.Fprintf(&b, "[#%s | %s]:\n", msg.ChannelName, msg.AuthorName)
		fmt.Fprintf(&b, "CONTENT: %s\n", msg.Content)
		fmt.Fprintf(&b, "ATTACHMENTS: %s\n", strings.Join(msg.Attachments, ", "))
		fmt.Fprintf(&b, "EMBEDS: %s\n", strings.Join(msg.Embeds, ", "))
		fmt.Fprintf(&b, "COMPONENTS: %s", strings.Join(msg.Components, ", "))
		entries = append(entries, b.String())
	}
	return strings.Join(entries, transcriptSeparator)
}

// ReconcileOnStartup rebuilds the tracker from the review guild's categories
// and present members. Categories without a matching bot member are skipped.
func (s *LifecycleService) ReconcileOnStartup(ctx context.Context) error {
	categories, err := s.chat.GuildCategories(ctx, s.cfg.ReviewGuildID)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	members, err := s.chat.GuildMembers(ctx, s.cfg.ReviewGuildID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	categorySnapshots := make([]tracker.CategorySnapshot, 0, len(categories))
	for _, category := range categories {
		categorySnapshots = append(categorySnapshots, tracker.CategorySnapshot{ID: category.ID, Name: category.Name})
	}
	memberSnapshots := make([]tracker.MemberSnapshot, 0, len(members))
	for _, member := range members {
		memberSnapshots = append(memberSnapshots, tracker.MemberSnapshot{
			ID:       member.ID,
			Username: member.Username,
			IsBot:    member.IsBot,
		})
	}

	matched := s.tracker.Reconcile(ctx, categorySnapshots, memberSnapshots, s.cfg.ReservedCategoryIDs)
	s.logger.Info("tracker reconciled", zap.Int("workspaces", matched))
	return nil
}

// Hold pauses the stale sweep for the workspace that owns categoryID by
// placing a member overwrite for the acting reviewer.
func (s *LifecycleService) Hold(ctx context.Context, staffID, categoryID, note string) error {
	candidateID, ok := s.tracker.LookupCandidate(categoryID)
	if !ok {
		return util.NewGuardError("This channel does not belong to a review workspace.")
	}
	if err := s.chat.GrantMemberOverwrite(ctx, categoryID, staffID); err != nil {
		return util.NewInternalError(err)
	}
	s.logger.Info("workspace held",
		zap.String("candidate", candidateID), zap.String("staff", staffID), zap.String("note", note))
	return nil
}

// Unhold removes the acting reviewer's overwrite, resuming the sweep.
func (s *LifecycleService) Unhold(ctx context.Context, staffID, categoryID string) error {
	if _, ok := s.tracker.LookupCandidate(categoryID); !ok {
		return util.NewGuardError("This channel does not belong to a review workspace.")
	}
	if err := s.chat.RevokeMemberOverwrite(ctx, categoryID, staffID); err != nil {
		return util.NewInternalError(err)
	}
	return nil
}

func orNone(value string) string {
	if value == "" {
		return "None"
	}
	return value
}

func orDefault(value string) string {
	if value == "" {
		return "Default"
	}
	return value
}
