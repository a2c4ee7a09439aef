package gateway

import (
	"context"
	"io"
	"time"

	"github.com/blist-xyz/review-service/internal/events"
)

// Embed is the platform-independent embed the services compose. The adapter
// converts it to the SDK's representation.
type Embed struct {
	Title       string
	URL         string
	Description string
	Color       int
	Thumbnail   string
	Footer      string
	Fields      []EmbedField
}

// EmbedField is one field of an Embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Category is the service's view of a channel category.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Channel is the service's view of a channel inside a category.
type Channel struct {
	ID    string
	Name  string
	Voice bool
	NSFW  bool
}

// HistoryMessage is one fetched message, flattened for transcript capture.
type HistoryMessage struct {
	ID          string
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []string
	Embeds      []string
	Components  []string
}

// WorkspaceSpec describes the channel group created per candidate.
type WorkspaceSpec struct {
	Name        string
	CandidateID string
	// Role granted manage access over the workspace.
	ManagerRoleID string
	// Role denied read access (hides workspaces from other testing bots).
	HiddenRoleID string
}

// Workspace reports the created channel ids.
type Workspace struct {
	CategoryID string
	GeneralID  string
	NSFWID     string
	VoiceID    string
}

// ChatGateway is the capability surface the services call into. The raw
// platform SDK never crosses this boundary; inbound traffic arrives as
// events.Event values on the dispatcher.
type ChatGateway interface {
	// Messaging.
	SendMessage(ctx context.Context, channelID, content string) (messageID string, err error)
	SendEmbed(ctx context.Context, channelID string, embed Embed) (messageID string, err error)
	SendEmbedWithFile(ctx context.Context, channelID string, embed Embed, fileName string, file io.Reader) error
	PinMessage(ctx context.Context, channelID, messageID string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	SendDM(ctx context.Context, userID, content string) error
	// AwaitReply blocks until userID posts in channelID or ctx expires.
	AwaitReply(ctx context.Context, channelID, userID string) (string, error)

	// Workspace channels.
	CreateWorkspace(ctx context.Context, guildID string, spec WorkspaceSpec) (*Workspace, error)
	DeleteChannel(ctx context.Context, channelID string) error
	GuildCategories(ctx context.Context, guildID string) ([]Category, error)
	CategoryChannels(ctx context.Context, guildID, categoryID string) ([]Channel, error)
	CategoryCreatedAt(categoryID string) (time.Time, error)
	// MemberOverwrites returns the non-bot member ids holding a permission
	// overwrite on the category (the hold escape hatch).
	MemberOverwrites(ctx context.Context, guildID, categoryID string) ([]string, error)
	GrantMemberOverwrite(ctx context.Context, categoryID, userID string) error
	RevokeMemberOverwrite(ctx context.Context, categoryID, userID string) error
	ChannelHistory(ctx context.Context, channelID string) ([]HistoryMessage, error)

	// Members and roles.
	GuildMember(ctx context.Context, guildID, userID string) (*events.Member, error)
	GuildMembers(ctx context.Context, guildID string) ([]events.Member, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
	// BotInviter resolves who added the bot from the guild's audit log.
	BotInviter(ctx context.Context, guildID, botID string) (string, error)
	MemberPresence(guildID, userID string) string

	// Process presence.
	UpdatePresence(name string) error
}
