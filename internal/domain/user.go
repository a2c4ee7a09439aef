package domain

import "time"

// User is a site account keyed by Discord snowflake. UniqueID is the site's
// internal key referenced by leveling and vote rows.
type User struct {
	ID           string
	UniqueID     string
	Username     string
	Developer    bool
	Premium      bool
	ReferrerCode string
	Referrals    int
	JoinedAt     time.Time
}
