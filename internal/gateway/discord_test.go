package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newTestDiscord builds the adapter with a state-only session; every REST
// call answers 404 so lookups that miss the state cache fail cleanly.
func newTestDiscord(t *testing.T) *Discord {
	t.Helper()

	cfg := config.DiscordConfig{Token: "test-token", ReviewGuildID: "guild-review"}
	d, err := NewDiscord(cfg, events.NewInMemoryDispatcher(), observability.NewMetrics(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewDiscord returned %v", err)
	}
	d.session.Client = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"message": "Unknown Channel", "code": 10003}`)),
			Header:     make(http.Header),
		}, nil
	})}

	if err := d.session.State.GuildAdd(&discordgo.Guild{ID: "guild-review"}); err != nil {
		t.Fatalf("GuildAdd returned %v", err)
	}
	return d
}

func TestMemberOverwritesFiltersToHumanMembers(t *testing.T) {
	d := newTestDiscord(t)

	for _, member := range []*discordgo.Member{
		{GuildID: "guild-review", User: &discordgo.User{ID: "staff-1"}},
		{GuildID: "guild-review", User: &discordgo.User{ID: "bot-9", Bot: true}},
	} {
		if err := d.session.State.MemberAdd(member); err != nil {
			t.Fatalf("MemberAdd returned %v", err)
		}
	}

	err := d.session.State.ChannelAdd(&discordgo.Channel{
		ID:      "155149108183695360",
		GuildID: "guild-review",
		Type:    discordgo.ChannelTypeGuildCategory,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: "role-mod", Type: discordgo.PermissionOverwriteTypeRole},
			{ID: "staff-1", Type: discordgo.PermissionOverwriteTypeMember},
			{ID: "bot-9", Type: discordgo.PermissionOverwriteTypeMember},
			// Departed member; the lookup fails and the id is dropped.
			{ID: "ghost-1", Type: discordgo.PermissionOverwriteTypeMember},
		},
	})
	if err != nil {
		t.Fatalf("ChannelAdd returned %v", err)
	}

	ids, err := d.MemberOverwrites(context.Background(), "guild-review", "155149108183695360")
	if err != nil {
		t.Fatalf("MemberOverwrites returned %v", err)
	}
	if len(ids) != 1 || ids[0] != "staff-1" {
		t.Fatalf("overwrites = %v; want [staff-1]", ids)
	}
}

func TestMemberOverwritesUnknownCategory(t *testing.T) {
	d := newTestDiscord(t)

	if _, err := d.MemberOverwrites(context.Background(), "guild-review", "999999999999999999"); err == nil {
		t.Fatal("expected an error for a category that does not exist")
	}
}

func TestCategoryCreatedAtRequiresExistingCategory(t *testing.T) {
	d := newTestDiscord(t)

	err := d.session.State.ChannelAdd(&discordgo.Channel{
		ID:      "155149108183695360",
		GuildID: "guild-review",
		Type:    discordgo.ChannelTypeGuildCategory,
	})
	if err != nil {
		t.Fatalf("ChannelAdd returned %v", err)
	}

	created, err := d.CategoryCreatedAt("155149108183695360")
	if err != nil {
		t.Fatalf("CategoryCreatedAt returned %v", err)
	}
	if created.IsZero() {
		t.Fatal("CategoryCreatedAt returned the zero time for a known category")
	}

	if _, err := d.CategoryCreatedAt("999999999999999999"); err == nil {
		t.Fatal("expected an error for a deleted category")
	}
}
