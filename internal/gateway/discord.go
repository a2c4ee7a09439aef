package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/observability"
)

const historyPageSize = 100

// Discord adapts a discordgo session to the ChatGateway interface and
// translates inbound gateway events into the dispatcher's closed event set.
// All platform-specific parsing lives here.
type Discord struct {
	session    *discordgo.Session
	cfg        config.DiscordConfig
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	// OnReady runs once per gateway READY, before events flow. Used for
	// startup reconciliation.
	OnReady func()

	waitMu  sync.Mutex
	waiters map[string]chan string
}

// NewDiscord creates the adapter around a fresh discordgo session.
func NewDiscord(cfg config.DiscordConfig, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	session.State.MaxMessageCount = 500

	d := &Discord{
		session:    session,
		cfg:        cfg,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		waiters:    make(map[string]chan string),
	}
	session.AddHandler(d.handleReady)
	session.AddHandler(d.handleMemberAdd)
	session.AddHandler(d.handleMemberRemove)
	session.AddHandler(d.handleMemberUpdate)
	session.AddHandler(d.handleMessageCreate)
	return d, nil
}

// Open connects to the gateway.
func (d *Discord) Open() error {
	return d.session.Open()
}

// Close closes the session.
func (d *Discord) Close() error {
	return d.session.Close()
}

// Session exposes the underlying session for the command router only.
func (d *Discord) Session() *discordgo.Session {
	return d.session
}

// BotUserID returns the connected bot account's id.
func (d *Discord) BotUserID() string {
	if d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

// ---------------------------------------------------------------------------
// Inbound event translation
// ---------------------------------------------------------------------------

func (d *Discord) handleReady(_ *discordgo.Session, _ *discordgo.Ready) {
	d.logger.Info("gateway ready")
	if d.OnReady != nil {
		d.OnReady()
	}
}

func (d *Discord) handleMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	typ := events.EventMemberJoined
	var payload any = events.MemberJoinedPayload{Member: toMember(m.Member, m.GuildID)}
	if m.GuildID == d.cfg.ReviewGuildID && m.User.Bot {
		typ = events.EventCandidateJoined
		payload = events.CandidateJoinedPayload{Candidate: toMember(m.Member, m.GuildID)}
	}
	d.publish(typ, m.GuildID, payload)
}

func (d *Discord) handleMemberRemove(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	typ := events.EventMemberLeft
	var payload any = events.MemberLeftPayload{Member: toMember(m.Member, m.GuildID)}
	if m.GuildID == d.cfg.ReviewGuildID && m.User.Bot {
		typ = events.EventCandidateLeft
		payload = events.CandidateLeftPayload{Candidate: toMember(m.Member, m.GuildID)}
	}
	d.publish(typ, m.GuildID, payload)
}

func (d *Discord) handleMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	var before events.Member
	if m.BeforeUpdate != nil {
		before = toMember(m.BeforeUpdate, m.GuildID)
	}
	d.publish(events.EventMemberUpdated, m.GuildID, events.MemberUpdatedPayload{
		Before: before,
		After:  toMember(m.Member, m.GuildID),
	})
}

func (d *Discord) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == d.BotUserID() {
		return
	}
	if d.deliverReply(m) {
		return
	}

	categoryID := ""
	if m.GuildID != "" {
		if ch, err := s.State.Channel(m.ChannelID); err == nil {
			categoryID = ch.ParentID
		}
	}
	author := events.Member{
		ID:       m.Author.ID,
		Username: m.Author.Username,
		IsBot:    m.Author.Bot,
		GuildID:  m.GuildID,
	}
	if m.Member != nil {
		author.DisplayName = m.Member.Nick
		author.RoleIDs = m.Member.Roles
	}
	d.publish(events.EventMessageReceived, m.GuildID, events.MessageReceivedPayload{
		MessageID:  m.ID,
		ChannelID:  m.ChannelID,
		CategoryID: categoryID,
		GuildID:    m.GuildID,
		Author:     author,
		Content:    m.Content,
		IsDM:       m.GuildID == "",
	})
}

func (d *Discord) publish(typ events.EventType, guildID string, payload any) {
	d.metrics.RecordEvent(string(typ))
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		GuildID:   guildID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := d.dispatcher.Publish(context.Background(), event); err != nil {
		d.metrics.RecordError("dispatch")
		d.logger.Error("event handling failed", zap.String("event", string(typ)), zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Messaging
// ---------------------------------------------------------------------------

func (d *Discord) SendMessage(_ context.Context, channelID, content string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) SendEmbed(_ context.Context, channelID string, embed Embed) (string, error) {
	msg, err := d.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(embed))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) SendEmbedWithFile(_ context.Context, channelID string, embed Embed, fileName string, file io.Reader) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embed: toMessageEmbed(embed),
		Files: []*discordgo.File{{Name: fileName, Reader: file}},
	})
	return err
}

func (d *Discord) PinMessage(_ context.Context, channelID, messageID string) error {
	return d.session.ChannelMessagePin(channelID, messageID)
}

func (d *Discord) React(_ context.Context, channelID, messageID, emoji string) error {
	return d.session.MessageReactionAdd(channelID, messageID, emoji)
}

func (d *Discord) SendDM(_ context.Context, userID, content string) error {
	dm, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = d.session.ChannelMessageSend(dm.ID, content)
	return err
}

// AwaitReply blocks until userID posts in channelID or ctx expires. Replies
// consumed here never reach the dispatcher.
func (d *Discord) AwaitReply(ctx context.Context, channelID, userID string) (string, error) {
	key := channelID + ":" + userID
	ch := make(chan string, 1)

	d.waitMu.Lock()
	d.waiters[key] = ch
	d.waitMu.Unlock()
	defer func() {
		d.waitMu.Lock()
		delete(d.waiters, key)
		d.waitMu.Unlock()
	}()

	select {
	case content := <-ch:
		return content, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Discord) deliverReply(m *discordgo.MessageCreate) bool {
	key := m.ChannelID + ":" + m.Author.ID
	d.waitMu.Lock()
	ch, ok := d.waiters[key]
	if ok {
		delete(d.waiters, key)
	}
	d.waitMu.Unlock()
	if ok {
		ch <- m.Content
	}
	return ok
}

// ---------------------------------------------------------------------------
// Workspace channels
// ---------------------------------------------------------------------------

// CreateWorkspace builds the category plus its three channels. The voice
// channel uses the guild's maximum permitted bitrate.
func (d *Discord) CreateWorkspace(ctx context.Context, guildID string, spec WorkspaceSpec) (*Workspace, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:    spec.ManagerRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionManageChannels,
		},
		{
			ID:   spec.HiddenRoleID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    spec.CandidateID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel,
		},
	}

	category, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildCategory,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	general, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     "testing",
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: category.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("create text channel: %w", err)
	}

	nsfw, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     "testing-nsfw",
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: category.ID,
		NSFW:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nsfw channel: %w", err)
	}

	voice, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     "voice-testing",
		Type:     discordgo.ChannelTypeGuildVoice,
		ParentID: category.ID,
		Bitrate:  d.maxBitrate(guildID),
	})
	if err != nil {
		return nil, fmt.Errorf("create voice channel: %w", err)
	}

	return &Workspace{
		CategoryID: category.ID,
		GeneralID:  general.ID,
		NSFWID:     nsfw.ID,
		VoiceID:    voice.ID,
	}, nil
}

func (d *Discord) maxBitrate(guildID string) int {
	guild, err := d.session.State.Guild(guildID)
	if err != nil {
		return 96000
	}
	switch guild.PremiumTier {
	case discordgo.PremiumTier3:
		return 384000
	case discordgo.PremiumTier2:
		return 256000
	case discordgo.PremiumTier1:
		return 128000
	default:
		return 96000
	}
}

func (d *Discord) DeleteChannel(_ context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID)
	return err
}

func (d *Discord) GuildCategories(_ context.Context, guildID string) ([]Category, error) {
	channels, err := d.session.GuildChannels(guildID)
	if err != nil {
		return nil, err
	}
	var categories []Category
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildCategory {
			continue
		}
		created, _ := discordgo.SnowflakeTimestamp(ch.ID)
		categories = append(categories, Category{ID: ch.ID, Name: ch.Name, CreatedAt: created})
	}
	return categories, nil
}

func (d *Discord) CategoryChannels(_ context.Context, guildID, categoryID string) ([]Channel, error) {
	channels, err := d.session.GuildChannels(guildID)
	if err != nil {
		return nil, err
	}
	var result []Channel
	for _, ch := range channels {
		if ch.ParentID != categoryID {
			continue
		}
		result = append(result, Channel{
			ID:    ch.ID,
			Name:  ch.Name,
			Voice: ch.Type == discordgo.ChannelTypeGuildVoice,
			NSFW:  ch.NSFW,
		})
	}
	return result, nil
}

// channel resolves a channel from the state cache, falling back to the API.
func (d *Discord) channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return d.session.Channel(channelID)
}

// CategoryCreatedAt reports when the category was created. A deleted or
// unknown category returns the lookup error; callers rely on that as an
// existence check.
func (d *Discord) CategoryCreatedAt(categoryID string) (time.Time, error) {
	if _, err := d.channel(categoryID); err != nil {
		return time.Time{}, err
	}
	return discordgo.SnowflakeTimestamp(categoryID)
}

func (d *Discord) MemberOverwrites(_ context.Context, guildID, categoryID string) ([]string, error) {
	category, err := d.channel(categoryID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, ow := range category.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeMember {
			continue
		}
		member, err := d.GuildMember(context.Background(), guildID, ow.ID)
		if err != nil || member.IsBot {
			continue
		}
		ids = append(ids, ow.ID)
	}
	return ids, nil
}

func (d *Discord) GrantMemberOverwrite(_ context.Context, categoryID, userID string) error {
	return d.session.ChannelPermissionSet(categoryID, userID,
		discordgo.PermissionOverwriteTypeMember, discordgo.PermissionViewChannel, 0)
}

func (d *Discord) RevokeMemberOverwrite(_ context.Context, categoryID, userID string) error {
	return d.session.ChannelPermissionDelete(categoryID, userID)
}

// ChannelHistory pages through the full message history, oldest first.
func (d *Discord) ChannelHistory(_ context.Context, channelID string) ([]HistoryMessage, error) {
	channel, err := d.session.Channel(channelID)
	if err != nil {
		return nil, err
	}

	var all []HistoryMessage
	beforeID := ""
	for {
		page, err := d.session.ChannelMessages(channelID, historyPageSize, beforeID, "", "")
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			all = append(all, toHistoryMessage(msg, channel.Name))
		}
		beforeID = page[len(page)-1].ID
		if len(page) < historyPageSize {
			break
		}
	}

	// Discord returns newest first; reverse for a readable transcript.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func toHistoryMessage(msg *discordgo.Message, channelName string) HistoryMessage {
	out := HistoryMessage{
		ID:          msg.ID,
		ChannelID:   msg.ChannelID,
		ChannelName: channelName,
		Content:     msg.Content,
	}
	if msg.Author != nil {
		out.AuthorID = msg.Author.ID
		out.AuthorName = msg.Author.Username
	}
	for _, attachment := range msg.Attachments {
		out.Attachments = append(out.Attachments, attachment.URL)
	}
	for _, embed := range msg.Embeds {
		if raw, err := json.Marshal(embed); err == nil {
			out.Embeds = append(out.Embeds, string(raw))
		}
	}
	for _, component := range msg.Components {
		if raw, err := json.Marshal(component); err == nil {
			out.Components = append(out.Components, string(raw))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Members and roles
// ---------------------------------------------------------------------------

func (d *Discord) GuildMember(_ context.Context, guildID, userID string) (*events.Member, error) {
	member, err := d.session.State.Member(guildID, userID)
	if err != nil {
		member, err = d.session.GuildMember(guildID, userID)
		if err != nil {
			return nil, err
		}
	}
	converted := toMember(member, guildID)
	return &converted, nil
}

// GuildMembers pages through the full member list.
func (d *Discord) GuildMembers(_ context.Context, guildID string) ([]events.Member, error) {
	var all []events.Member
	after := ""
	for {
		members, err := d.session.GuildMembers(guildID, after, 1000)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			break
		}
		for _, m := range members {
			all = append(all, toMember(m, guildID))
			after = m.User.ID
		}
		if len(members) < 1000 {
			break
		}
	}
	return all, nil
}

func (d *Discord) AddRole(_ context.Context, guildID, userID, roleID string) error {
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *Discord) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	return d.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (d *Discord) Kick(_ context.Context, guildID, userID, reason string) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (d *Discord) Ban(_ context.Context, guildID, userID, reason string) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

// BotInviter scans the audit log's bot-add entries for the member who
// invited botID. Empty string means not found.
func (d *Discord) BotInviter(_ context.Context, guildID, botID string) (string, error) {
	log, err := d.session.GuildAuditLog(guildID, "", "", int(discordgo.AuditLogActionBotAdd), 10)
	if err != nil {
		return "", err
	}
	for _, entry := range log.AuditLogEntries {
		if entry.TargetID == botID {
			return entry.UserID, nil
		}
	}
	return "", nil
}

func (d *Discord) MemberPresence(guildID, userID string) string {
	presence, err := d.session.State.Presence(guildID, userID)
	if err != nil || presence == nil {
		return string(discordgo.StatusOffline)
	}
	return string(presence.Status)
}

func (d *Discord) UpdatePresence(name string) error {
	return d.session.UpdateGameStatus(0, name)
}

func toMember(m *discordgo.Member, guildID string) events.Member {
	out := events.Member{GuildID: guildID}
	if m == nil {
		return out
	}
	out.DisplayName = m.Nick
	out.Pending = m.Pending
	out.RoleIDs = m.Roles
	if m.User != nil {
		out.ID = m.User.ID
		out.Username = m.User.Username
		out.IsBot = m.User.Bot
		if out.DisplayName == "" {
			out.DisplayName = m.User.Username
		}
	}
	return out
}

func toMessageEmbed(embed Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		URL:         embed.URL,
		Description: embed.Description,
		Color:       embed.Color,
	}
	if embed.Thumbnail != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: embed.Thumbnail}
	}
	if embed.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.Footer}
	}
	for _, field := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: field.Inline,
		})
	}
	return out
}
