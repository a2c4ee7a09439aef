package domain

import "time"

// BotStatus enumerates lifecycle states for a submitted bot.
type BotStatus string

const (
	BotStatusQueued   BotStatus = "QUEUED"
	BotStatusApproved BotStatus = "APPROVED"
	BotStatusDenied   BotStatus = "DENIED"
)

// Bot is a submitted bot account on the listing site. ID is the Discord
// account snowflake; UniqueID is the site's internal key that dependent rows
// (votes, reviews, audit actions) reference.
type Bot struct {
	ID                    string
	UniqueID              string
	Username              string
	Discriminator         string
	MainOwnerID           string
	CoOwnerIDs            []string
	Prefix                string
	Tags                  []string
	ShortDescription      string
	Notes                 string
	Website               string
	PrivacyPolicyURL      string
	InviteURL             string
	ReferredBy            string
	Approved              bool
	Denied                bool
	Certified             bool
	AwaitingCertification bool
	UsesSlashCommands     bool
	PresenceStatus        string
	Added                 time.Time
}

// Status derives the lifecycle state from the approval flags.
func (b Bot) Status() BotStatus {
	switch {
	case b.Denied:
		return BotStatusDenied
	case b.Approved:
		return BotStatusApproved
	default:
		return BotStatusQueued
	}
}

// Queued reports whether the bot is still awaiting review.
func (b Bot) Queued() bool {
	return !b.Approved && !b.Denied
}
