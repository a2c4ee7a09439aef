package domain

import "testing"

func TestBotStatus(t *testing.T) {
	tests := []struct {
		name     string
		approved bool
		denied   bool
		want     BotStatus
		queued   bool
	}{
		{"fresh submission", false, false, BotStatusQueued, true},
		{"approved", true, false, BotStatusApproved, false},
		{"denied", false, true, BotStatusDenied, false},
		{"denied wins over approved", true, true, BotStatusDenied, false},
	}

	for _, tt := range tests {
		bot := Bot{Approved: tt.approved, Denied: tt.denied}
		if got := bot.Status(); got != tt.want {
			t.Errorf("%s: Status() = %v; want %v", tt.name, got, tt.want)
		}
		if got := bot.Queued(); got != tt.queued {
			t.Errorf("%s: Queued() = %v; want %v", tt.name, got, tt.queued)
		}
	}
}

func TestXPNeeded(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{1, 50},
		{2, 100},
		{10, 500},
	}
	for _, tt := range tests {
		profile := LevelingProfile{Level: tt.level}
		if got := profile.XPNeeded(); got != tt.want {
			t.Errorf("XPNeeded() at level %d = %d; want %d", tt.level, got, tt.want)
		}
	}
}

func TestStaffRankAtLeast(t *testing.T) {
	admin := StaffMember{Rank: RankAdministrator}
	if !admin.AtLeast(RankWebsiteModerator) {
		t.Error("administrator should satisfy the moderator tier")
	}
	if !admin.AtLeast(RankAdministrator) {
		t.Error("a rank should satisfy its own tier")
	}
	if admin.AtLeast(RankSeniorAdministrator) {
		t.Error("administrator must not satisfy the senior administrator tier")
	}

	unknown := StaffMember{Rank: "INTERN"}
	if unknown.AtLeast(RankWebsiteModerator) {
		t.Error("unknown ranks must sit below every real tier")
	}
}
