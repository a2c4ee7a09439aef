package domain

import "time"

// Mute is an active mute row in the moderation database. Accounts that leave
// a guild while muted are banned (evasion policy).
type Mute struct {
	UserID    string
	ModID     string
	Reason    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}
