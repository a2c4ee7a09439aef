package domain

import "time"

// ReviewActionType enumerates audited review decisions.
type ReviewActionType string

const (
	ActionApprove        ReviewActionType = "APPROVE"
	ActionDeny           ReviewActionType = "DENY"
	ActionDelete         ReviewActionType = "DELETE"
	ActionCertify        ReviewActionType = "CERTIFY"
	ActionDeclineCertify ReviewActionType = "DECLINE_CERTIFY"
)

// ReviewAction is an immutable audit row written for every review decision.
// Only the reason may be back-filled after the fact.
type ReviewAction struct {
	ID        string
	StaffID   string
	BotID     string
	Action    ReviewActionType
	Reason    string
	CreatedAt time.Time
}

// CannedDenyReasons is the numbered list offered by the interactive deny
// prompt. Staff may answer with an index into this list or free text.
var CannedDenyReasons = []string{
	"The bot was offline for the whole review.",
	"The bot did not respond to its listed prefix.",
	"The bot violates Discord's Terms of Service.",
	"The description or metadata is misleading.",
	"The owner requested the submission be withdrawn.",
}

// CannedDeleteReasons is the equivalent list for the delete prompt.
var CannedDeleteReasons = []string{
	"The bot left the support server.",
	"The bot has been offline for an extended period.",
	"The owner is no longer reachable.",
	"The listing violates site rules.",
}
