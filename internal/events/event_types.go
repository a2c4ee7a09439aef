package events

import "time"

// EventType enumerates the closed set of lifecycle events the gateway adapter
// translates raw platform events into. Everything past the adapter dispatches
// on this set only.
type EventType string

const (
	EventCandidateJoined EventType = "candidate_joined"
	EventCandidateLeft   EventType = "candidate_left"
	EventMemberJoined    EventType = "member_joined"
	EventMemberLeft      EventType = "member_left"
	EventMemberUpdated   EventType = "member_updated"
	EventMessageReceived EventType = "message_received"
	EventBotConcluded    EventType = "bot_concluded"
)

// Member is the platform-independent view of a guild member carried in
// event payloads.
type Member struct {
	ID          string
	Username    string
	DisplayName string
	IsBot       bool
	GuildID     string
	Pending     bool
	RoleIDs     []string
}

// Event represents a lifecycle event emitted by the gateway adapter or a
// service.
type Event struct {
	ID        string
	Type      EventType
	GuildID   string
	Timestamp time.Time
	Payload   interface{}
}

// CandidateJoinedPayload payload: a flagged bot account entered the review
// guild.
type CandidateJoinedPayload struct {
	Candidate Member
}

// CandidateLeftPayload payload: a flagged bot account left the review guild.
type CandidateLeftPayload struct {
	Candidate Member
}

// MemberJoinedPayload payload for non-candidate joins in either guild.
type MemberJoinedPayload struct {
	Member Member
}

// MemberLeftPayload payload.
type MemberLeftPayload struct {
	Member Member
}

// MemberUpdatedPayload payload: role or screening changes.
type MemberUpdatedPayload struct {
	Before Member
	After  Member
}

// MessageReceivedPayload payload for guild messages (XP) and DMs (relay).
type MessageReceivedPayload struct {
	MessageID  string
	ChannelID  string
	CategoryID string
	GuildID    string
	Author     Member
	Content    string
	IsDM       bool
}

// BotConcludedPayload payload: a review reached a terminal decision.
type BotConcludedPayload struct {
	BotID   string
	StaffID string
	Action  string
}
