package dto

import (
	"github.com/blist-xyz/review-service/internal/domain"
)

// BotSummary is the API's view of a submission.
type BotSummary struct {
	ID               string   `json:"id"`
	Username         string   `json:"username"`
	MainOwnerID      string   `json:"main_owner_id"`
	Prefix           string   `json:"prefix"`
	Tags             []string `json:"tags"`
	ShortDescription string   `json:"short_description"`
	Status           string   `json:"status"`
	Added            string   `json:"added"`
}

// FromBot maps a domain bot to its API form.
func FromBot(bot domain.Bot) BotSummary {
	return BotSummary{
		ID:               bot.ID,
		Username:         bot.Username,
		MainOwnerID:      bot.MainOwnerID,
		Prefix:           bot.Prefix,
		Tags:             bot.Tags,
		ShortDescription: bot.ShortDescription,
		Status:           string(bot.Status()),
		Added:            bot.Added.Format("2006-01-02"),
	}
}

// FromBots maps a slice of domain bots.
func FromBots(bots []domain.Bot) []BotSummary {
	result := make([]BotSummary, 0, len(bots))
	for _, bot := range bots {
		result = append(result, FromBot(bot))
	}
	return result
}

// Stats is the aggregate counters payload.
type Stats struct {
	ApprovedBots int64            `json:"approved_bots"`
	QueuedBots   int64            `json:"queued_bots"`
	Users        int64            `json:"users"`
	Workspaces   int              `json:"open_workspaces"`
	Events       map[string]int64 `json:"events"`
	Commands     map[string]int64 `json:"commands"`
	Errors       map[string]int64 `json:"errors"`
}
