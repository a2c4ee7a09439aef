package domain

// LevelingProfile is a user's message-XP row, keyed by the site user's
// internal unique id.
type LevelingProfile struct {
	UserUniqueID string
	XP           int
	Level        int
	Blacklisted  bool
}

// XPNeeded returns the XP required to advance past the current level.
func (p LevelingProfile) XPNeeded() int {
	return p.Level * 50
}
