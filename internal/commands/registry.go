// Package commands implements the prefixed staff commands. Messages arrive
// through the dispatcher, are parsed against the registry, authorized against
// the staff store and handed to the matching handler.
package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/observability"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/internal/service"
	"github.com/blist-xyz/review-service/internal/tracker"
	"github.com/blist-xyz/review-service/pkg/util"
)

// Invocation carries one parsed command invocation.
type Invocation struct {
	ChannelID  string
	CategoryID string
	GuildID    string
	Author     events.Member
	Args       []string

	registry *Registry
}

// Reply posts a plain message back into the invoking channel.
func (inv *Invocation) Reply(ctx context.Context, content string) error {
	_, err := inv.registry.chat.SendMessage(ctx, inv.ChannelID, content)
	return err
}

// ReplyEmbed posts an embed back into the invoking channel.
func (inv *Invocation) ReplyEmbed(ctx context.Context, embed gateway.Embed) error {
	_, err := inv.registry.chat.SendEmbed(ctx, inv.ChannelID, embed)
	return err
}

// Command is one registered prefixed command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	// MinRank gates the command on a staff record of at least this rank.
	// Empty means no staff record is required.
	MinRank domain.StaffRank
	Handler func(ctx context.Context, inv *Invocation) error
}

// Registry parses inbound messages and routes them to command handlers.
type Registry struct {
	chat     gateway.ChatGateway
	tracker  *tracker.Tracker
	reviews  *service.ReviewService
	life     *service.LifecycleService
	staff    *service.StaffService
	leveling *service.LevelingService
	actions  repository.ActionRepository
	notifier *service.NotificationService
	metrics  *observability.Metrics
	cfg      *config.Config
	logger   *zap.Logger

	commands map[string]Command
}

// Dependencies bundles what the command handlers call into.
type Dependencies struct {
	Chat     gateway.ChatGateway
	Tracker  *tracker.Tracker
	Reviews  *service.ReviewService
	Life     *service.LifecycleService
	Staff    *service.StaffService
	Leveling *service.LevelingService
	Actions  repository.ActionRepository
	Notifier *service.NotificationService
	Metrics  *observability.Metrics
	Config   *config.Config
	Logger   *zap.Logger
}

// NewRegistry builds the registry with every command registered.
func NewRegistry(deps Dependencies) *Registry {
	r := &Registry{
		chat:     deps.Chat,
		tracker:  deps.Tracker,
		reviews:  deps.Reviews,
		life:     deps.Life,
		staff:    deps.Staff,
		leveling: deps.Leveling,
		actions:  deps.Actions,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		cfg:      deps.Config,
		logger:   deps.Logger,
		commands: make(map[string]Command),
	}
	r.registerReviewCommands()
	r.registerStaffCommands()
	return r
}

// Register adds a command and its aliases.
func (r *Registry) Register(cmd Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.commands[alias] = cmd
	}
}

// RegisterHandlers subscribes the message handler.
func (r *Registry) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventMessageReceived, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.MessageReceivedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		r.Dispatch(ctx, payload)
		return nil
	})
}

// Dispatch parses and runs a command invocation, if the message is one.
func (r *Registry) Dispatch(ctx context.Context, msg events.MessageReceivedPayload) {
	name, args, ok := Parse(msg.Content, r.cfg.Discord.CommandPrefix)
	if !ok || msg.IsDM || msg.Author.IsBot {
		return
	}
	cmd, ok := r.commands[name]
	if !ok {
		return
	}
	r.metrics.RecordCommand(cmd.Name)

	inv := &Invocation{
		ChannelID:  msg.ChannelID,
		CategoryID: msg.CategoryID,
		GuildID:    msg.GuildID,
		Author:     msg.Author,
		Args:       args,
		registry:   r,
	}

	if cmd.MinRank != "" {
		if _, err := r.staff.Authorize(ctx, msg.Author.ID, cmd.MinRank); err != nil {
			r.replyError(ctx, inv, err)
			return
		}
	}

	if err := cmd.Handler(ctx, inv); err != nil {
		r.replyError(ctx, inv, err)
	}
}

func (r *Registry) replyError(ctx context.Context, inv *Invocation, err error) {
	if util.IsGuardError(err) {
		if sendErr := inv.Reply(ctx, util.ToDomainError(err).Message); sendErr != nil {
			r.logger.Debug("guard reply failed", zap.Error(sendErr))
		}
		return
	}
	domainErr := util.ToDomainError(err)
	switch domainErr.Code {
	case "VALIDATION_FAILED", "NOT_FOUND", "CONFLICT", "UNAUTHORIZED":
		if sendErr := inv.Reply(ctx, domainErr.Message); sendErr != nil {
			r.logger.Debug("error reply failed", zap.Error(sendErr))
		}
	default:
		r.notifier.ReportError(ctx, "command", err)
		if sendErr := inv.Reply(ctx, "Something went wrong running that command."); sendErr != nil {
			r.logger.Debug("error reply failed", zap.Error(sendErr))
		}
	}
}

// Parse splits a raw message into a command name and arguments. ok is false
// when the message does not start with the prefix or names no command.
func Parse(content, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// ParseUserID extracts a snowflake from a raw id or a mention.
func ParseUserID(arg string) (string, bool) {
	if m := mentionPattern.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return arg, arg != ""
}

// targetBot resolves the bot a review command acts on: an explicit mention
// or id argument wins, otherwise the candidate owning the invoking
// workspace category.
func (r *Registry) targetBot(inv *Invocation) (string, error) {
	if len(inv.Args) > 0 {
		if id, ok := ParseUserID(inv.Args[0]); ok {
			return id, nil
		}
		return "", util.NewValidationError("That does not look like a bot mention or id.", nil)
	}
	if candidateID, ok := r.tracker.LookupCandidate(inv.CategoryID); ok {
		return candidateID, nil
	}
	return "", util.NewGuardError("Mention the bot, or run this inside its review workspace.")
}
