package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/observability"
	"github.com/blist-xyz/review-service/internal/tracker"
	"github.com/blist-xyz/review-service/pkg/util"
)

type fakeMuteRepo struct {
	muted map[string]bool
}

func (r *fakeMuteRepo) IsMuted(_ context.Context, userID string) (bool, error) {
	return r.muted[userID], nil
}

func (r *fakeMuteRepo) Get(_ context.Context, userID string) (*domain.Mute, error) {
	return &domain.Mute{UserID: userID, Reason: "spam"}, nil
}

type lifecycleFixture struct {
	svc     *LifecycleService
	chat    *fakeChat
	tracker *tracker.Tracker
	mutes   *fakeMuteRepo
}

func newLifecycleFixture(t *testing.T, bot *domain.Bot) *lifecycleFixture {
	t.Helper()

	chat := newFakeChat()
	tr := tracker.New()
	t.Cleanup(tr.Stop)

	cfg := config.DiscordConfig{
		MainGuildID:       mainGuild,
		ReviewGuildID:     reviewGuild,
		TestingBotRoleID:  "role-testing",
		ModeratorRoleID:   "role-mod",
		AdminLogChannelID: "chan-adminlog",
		ErrorChannelID:    "chan-errors",
		CommandPrefix:     "b!",
	}
	logger := zap.NewNop()
	notifier := NewNotificationService(chat, cfg, observability.NewMetrics(), logger)
	mutes := &fakeMuteRepo{muted: make(map[string]bool)}

	var bots *fakeBotRepo
	if bot != nil {
		bots = newFakeBotRepo(bot)
	} else {
		bots = newFakeBotRepo()
	}

	svc := NewLifecycleService(LifecycleDependencies{
		Tracker:  tr,
		Chat:     chat,
		BotRepo:  bots,
		MuteRepo: mutes,
		Notifier: notifier,
		Discord:  cfg,
		SiteURL:  "https://blist.xyz",
		Logger:   logger,
	})
	return &lifecycleFixture{svc: svc, chat: chat, tracker: tr, mutes: mutes}
}

func TestCandidateJoinedCreatesWorkspace(t *testing.T) {
	fx := newLifecycleFixture(t, queuedBot())
	fx.chat.addMember(mainGuild, events.Member{ID: ownerID, Username: "Owner"})

	candidate := events.Member{ID: botID, Username: "TestBot", IsBot: true}
	fx.svc.HandleCandidateJoined(context.Background(), candidate)

	workspaceID, ok := fx.tracker.LookupWorkspace(botID)
	if !ok {
		t.Fatal("candidate was not recorded in the tracker")
	}
	if workspaceID != "cat-"+botID {
		t.Fatalf("workspace = %q; want cat-%s", workspaceID, botID)
	}
	// Submission summary posted and pinned in the general channel.
	if len(fx.chat.messages["gen-"+botID]) == 0 {
		t.Fatal("no submission summary was posted")
	}
	if len(fx.chat.pinned) != 1 {
		t.Fatalf("pinned %d messages; want 1", len(fx.chat.pinned))
	}
	// Testing role applied in the review guild.
	roles := fx.chat.roles[reviewGuild+":"+botID]
	if len(roles) != 1 || roles[0] != "role-testing" {
		t.Fatalf("candidate roles = %v; want [role-testing]", roles)
	}
}

func TestCandidateJoinedWarnsWhenOwnerMissing(t *testing.T) {
	fx := newLifecycleFixture(t, queuedBot())
	// Owner deliberately absent from the main guild.

	fx.svc.HandleCandidateJoined(context.Background(), events.Member{ID: botID, Username: "TestBot", IsBot: true})

	posted := fx.chat.messages["gen-"+botID]
	found := false
	for _, content := range posted {
		if content == "⚠️ **The owner of this bot cannot be found in the main server. Deny it!**" {
			found = true
		}
	}
	if !found {
		t.Fatalf("owner warning missing from posted messages: %v", posted)
	}
}

func TestCandidateLeftTearsDownAndForgets(t *testing.T) {
	fx := newLifecycleFixture(t, queuedBot())
	fx.tracker.Record(botID, "cat-"+botID)

	fx.svc.HandleCandidateLeft(context.Background(), events.Member{ID: botID, Username: "TestBot", IsBot: true})

	if _, ok := fx.tracker.LookupWorkspace(botID); ok {
		t.Fatal("tracker entry survived teardown")
	}
	if len(fx.chat.messages["chan-adminlog"]) == 0 {
		t.Fatal("no teardown summary reached the admin log")
	}
	if len(fx.chat.banned) != 0 {
		t.Fatalf("unmuted candidate was banned: %v", fx.chat.banned)
	}
}

func TestCandidateLeftWhileMutedIsBanned(t *testing.T) {
	fx := newLifecycleFixture(t, queuedBot())
	fx.tracker.Record(botID, "cat-"+botID)
	fx.mutes.muted[botID] = true

	fx.svc.HandleCandidateLeft(context.Background(), events.Member{ID: botID, Username: "TestBot", IsBot: true})

	want := reviewGuild + ":" + botID
	if len(fx.chat.banned) != 1 || fx.chat.banned[0] != want {
		t.Fatalf("banned = %v; want [%s]", fx.chat.banned, want)
	}
}

func TestHoldRequiresWorkspace(t *testing.T) {
	fx := newLifecycleFixture(t, nil)

	if err := fx.svc.Hold(context.Background(), staffID, "cat-unknown", ""); !util.IsGuardError(err) {
		t.Fatalf("Hold outside a workspace = %v; want guard error", err)
	}

	fx.tracker.Record(botID, "cat-1")
	if err := fx.svc.Hold(context.Background(), staffID, "cat-1", "waiting on owner"); err != nil {
		t.Fatalf("Hold returned %v", err)
	}
	overwrites := fx.chat.overrides["cat-1"]
	if len(overwrites) != 1 || overwrites[0] != staffID {
		t.Fatalf("overwrites = %v; want [%s]", overwrites, staffID)
	}

	if err := fx.svc.Unhold(context.Background(), staffID, "cat-1"); err != nil {
		t.Fatalf("Unhold returned %v", err)
	}
	if len(fx.chat.overrides["cat-1"]) != 0 {
		t.Fatal("Unhold left the overwrite in place")
	}
}
