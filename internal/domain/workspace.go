package domain

import "time"

// TranscriptMessage is one captured message from a workspace text channel,
// flattened for the archival attachment.
type TranscriptMessage struct {
	ChannelName string
	AuthorName  string
	AuthorID    string
	Content     string
	Attachments []string
	Embeds      []string
	Components  []string
}

// ReviewSummary describes a completed review for the admin log.
type ReviewSummary struct {
	BotName      string
	BotID        string
	ReviewedBy   string
	InvitedBy    string
	MessageCount int
	TimeTaken    time.Duration
}
