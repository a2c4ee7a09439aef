package domain

import "time"

// StaffRank enumerates staff permission tiers, lowest first.
type StaffRank string

const (
	RankWebsiteModerator       StaffRank = "WEBSITE_MODERATOR"
	RankSeniorWebsiteModerator StaffRank = "SENIOR_WEBSITE_MODERATOR"
	RankAdministrator          StaffRank = "ADMINISTRATOR"
	RankSeniorAdministrator    StaffRank = "SENIOR_ADMINISTRATOR"
)

// StaffMember is a person with elevated permissions, stored in the moderation
// database keyed by Discord snowflake.
type StaffMember struct {
	UserID        string
	Rank          StaffRank
	CountryCode   string
	ApprovedCount int
	DeniedCount   int
	Strikes       int
	JoinedAt      time.Time
}

// AtLeast reports whether the member's rank meets the given tier.
func (s StaffMember) AtLeast(rank StaffRank) bool {
	return rankOrder(s.Rank) >= rankOrder(rank)
}

func rankOrder(rank StaffRank) int {
	switch rank {
	case RankWebsiteModerator:
		return 1
	case RankSeniorWebsiteModerator:
		return 2
	case RankAdministrator:
		return 3
	case RankSeniorAdministrator:
		return 4
	default:
		return 0
	}
}
