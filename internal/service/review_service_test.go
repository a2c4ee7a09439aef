package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/domain"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/observability"
	"github.com/blist-xyz/review-service/pkg/util"
)

// fakeChat is an in-memory ChatGateway covering what the review flows touch.
type fakeChat struct {
	members   map[string]events.Member // key guildID:userID
	kicked    []string                 // guildID:userID
	banned    []string
	roles     map[string][]string // guildID:userID -> role ids
	messages  map[string][]string // channelID -> contents
	dms       map[string][]string
	presence  string
	pinned    []string
	reactions []string
	overrides map[string][]string
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		members:   make(map[string]events.Member),
		roles:     make(map[string][]string),
		messages:  make(map[string][]string),
		dms:       make(map[string][]string),
		overrides: make(map[string][]string),
	}
}

func (f *fakeChat) addMember(guildID string, m events.Member) {
	m.GuildID = guildID
	f.members[guildID+":"+m.ID] = m
}

func (f *fakeChat) SendMessage(_ context.Context, channelID, content string) (string, error) {
	f.messages[channelID] = append(f.messages[channelID], content)
	return fmt.Sprintf("msg-%d", len(f.messages[channelID])), nil
}

func (f *fakeChat) SendEmbed(_ context.Context, channelID string, embed gateway.Embed) (string, error) {
	f.messages[channelID] = append(f.messages[channelID], embed.Title+"|"+embed.Description)
	return fmt.Sprintf("msg-%d", len(f.messages[channelID])), nil
}

func (f *fakeChat) SendEmbedWithFile(_ context.Context, channelID string, embed gateway.Embed, _ string, _ io.Reader) error {
	f.messages[channelID] = append(f.messages[channelID], embed.Title)
	return nil
}

func (f *fakeChat) PinMessage(_ context.Context, _, messageID string) error {
	f.pinned = append(f.pinned, messageID)
	return nil
}

func (f *fakeChat) React(_ context.Context, _, messageID, emoji string) error {
	f.reactions = append(f.reactions, messageID+":"+emoji)
	return nil
}

func (f *fakeChat) SendDM(_ context.Context, userID, content string) error {
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeChat) AwaitReply(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (f *fakeChat) CreateWorkspace(_ context.Context, _ string, spec gateway.WorkspaceSpec) (*gateway.Workspace, error) {
	return &gateway.Workspace{CategoryID: "cat-" + spec.CandidateID, GeneralID: "gen-" + spec.CandidateID}, nil
}

func (f *fakeChat) DeleteChannel(_ context.Context, _ string) error { return nil }

func (f *fakeChat) GuildCategories(_ context.Context, _ string) ([]gateway.Category, error) {
	return nil, nil
}

func (f *fakeChat) CategoryChannels(_ context.Context, _, _ string) ([]gateway.Channel, error) {
	return nil, nil
}

func (f *fakeChat) CategoryCreatedAt(_ string) (time.Time, error) { return time.Now(), nil }

func (f *fakeChat) MemberOverwrites(_ context.Context, _, categoryID string) ([]string, error) {
	return f.overrides[categoryID], nil
}

func (f *fakeChat) GrantMemberOverwrite(_ context.Context, categoryID, userID string) error {
	f.overrides[categoryID] = append(f.overrides[categoryID], userID)
	return nil
}

func (f *fakeChat) RevokeMemberOverwrite(_ context.Context, categoryID, _ string) error {
	delete(f.overrides, categoryID)
	return nil
}

func (f *fakeChat) ChannelHistory(_ context.Context, _ string) ([]gateway.HistoryMessage, error) {
	return nil, nil
}

func (f *fakeChat) GuildMember(_ context.Context, guildID, userID string) (*events.Member, error) {
	member, ok := f.members[guildID+":"+userID]
	if !ok {
		return nil, errors.New("unknown member")
	}
	return &member, nil
}

func (f *fakeChat) GuildMembers(_ context.Context, guildID string) ([]events.Member, error) {
	var result []events.Member
	for _, member := range f.members {
		if member.GuildID == guildID {
			result = append(result, member)
		}
	}
	return result, nil
}

func (f *fakeChat) AddRole(_ context.Context, guildID, userID, roleID string) error {
	key := guildID + ":" + userID
	f.roles[key] = append(f.roles[key], roleID)
	return nil
}

func (f *fakeChat) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	key := guildID + ":" + userID
	kept := f.roles[key][:0]
	for _, id := range f.roles[key] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	f.roles[key] = kept
	return nil
}

func (f *fakeChat) Kick(_ context.Context, guildID, userID, _ string) error {
	f.kicked = append(f.kicked, guildID+":"+userID)
	delete(f.members, guildID+":"+userID)
	return nil
}

func (f *fakeChat) Ban(_ context.Context, guildID, userID, _ string) error {
	f.banned = append(f.banned, guildID+":"+userID)
	return nil
}

func (f *fakeChat) BotInviter(_ context.Context, _, _ string) (string, error) { return "", nil }

func (f *fakeChat) MemberPresence(_, _ string) string { return "offline" }

func (f *fakeChat) UpdatePresence(name string) error {
	f.presence = name
	return nil
}

type fakeBotRepo struct {
	bots    map[string]*domain.Bot
	deleted []string
}

func newFakeBotRepo(bots ...*domain.Bot) *fakeBotRepo {
	repo := &fakeBotRepo{bots: make(map[string]*domain.Bot)}
	for _, bot := range bots {
		repo.bots[bot.ID] = bot
	}
	return repo
}

func (r *fakeBotRepo) GetByID(_ context.Context, id string) (*domain.Bot, error) {
	bot, ok := r.bots[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *bot
	return &copied, nil
}

func (r *fakeBotRepo) list(filter func(domain.Bot) bool) []domain.Bot {
	var result []domain.Bot
	for _, bot := range r.bots {
		if filter(*bot) {
			result = append(result, *bot)
		}
	}
	return result
}

func (r *fakeBotRepo) ListQueued(_ context.Context) ([]domain.Bot, error) {
	return r.list(func(b domain.Bot) bool { return b.Queued() }), nil
}

func (r *fakeBotRepo) ListApproved(_ context.Context) ([]domain.Bot, error) {
	return r.list(func(b domain.Bot) bool { return b.Approved && !b.Denied }), nil
}

func (r *fakeBotRepo) ListAwaitingCertification(_ context.Context) ([]domain.Bot, error) {
	return r.list(func(b domain.Bot) bool { return b.AwaitingCertification }), nil
}

func (r *fakeBotRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Bot, error) {
	return r.list(func(b domain.Bot) bool { return b.MainOwnerID == ownerID }), nil
}

func (r *fakeBotRepo) CountApproved(_ context.Context) (int64, error) {
	return int64(len(r.list(func(b domain.Bot) bool { return b.Approved && !b.Denied }))), nil
}

func (r *fakeBotRepo) CountQueued(_ context.Context) (int64, error) {
	return int64(len(r.list(func(b domain.Bot) bool { return b.Queued() }))), nil
}

func (r *fakeBotRepo) CountAll(_ context.Context) (int64, error) {
	return int64(len(r.bots)), nil
}

func (r *fakeBotRepo) SetApproved(_ context.Context, id string) error {
	bot, ok := r.bots[id]
	if !ok {
		return pgx.ErrNoRows
	}
	bot.Approved = true
	return nil
}

func (r *fakeBotRepo) SetDenied(_ context.Context, id string) error {
	bot, ok := r.bots[id]
	if !ok {
		return pgx.ErrNoRows
	}
	bot.Denied = true
	return nil
}

func (r *fakeBotRepo) SetCertified(_ context.Context, id string, certified bool) error {
	bot, ok := r.bots[id]
	if !ok {
		return pgx.ErrNoRows
	}
	bot.Certified = certified
	bot.AwaitingCertification = false
	return nil
}

func (r *fakeBotRepo) SetAwaitingCertification(_ context.Context, id string, awaiting bool) error {
	bot, ok := r.bots[id]
	if !ok {
		return pgx.ErrNoRows
	}
	bot.AwaitingCertification = awaiting
	return nil
}

func (r *fakeBotRepo) UpdatePresenceStatus(_ context.Context, id, status string) error {
	if bot, ok := r.bots[id]; ok {
		bot.PresenceStatus = status
	}
	return nil
}

func (r *fakeBotRepo) DeleteCascade(_ context.Context, id string) error {
	if _, ok := r.bots[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.bots, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type fakeUserRepo struct {
	users      map[string]*domain.User
	developers map[string]bool
	referrals  map[string]int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{
		users:      make(map[string]*domain.User),
		developers: make(map[string]bool),
		referrals:  make(map[string]int),
	}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepo) GetIDByReferrerCode(_ context.Context, code string) (string, error) {
	for _, user := range r.users {
		if user.ReferrerCode == code {
			return user.ID, nil
		}
	}
	return "", pgx.ErrNoRows
}

func (r *fakeUserRepo) SetDeveloper(_ context.Context, id string, developer bool) error {
	r.developers[id] = developer
	return nil
}

func (r *fakeUserRepo) SetPremium(_ context.Context, _ string, _ bool) error { return nil }

func (r *fakeUserRepo) IncrementReferrals(_ context.Context, id string) error {
	r.referrals[id]++
	return nil
}

func (r *fakeUserRepo) CountAll(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

type fakeStaffRepo struct {
	records  map[string]*domain.StaffMember
	approved map[string]int
	denied   map[string]int
}

func newFakeStaffRepo(records ...*domain.StaffMember) *fakeStaffRepo {
	repo := &fakeStaffRepo{
		records:  make(map[string]*domain.StaffMember),
		approved: make(map[string]int),
		denied:   make(map[string]int),
	}
	for _, record := range records {
		repo.records[record.UserID] = record
	}
	return repo
}

func (r *fakeStaffRepo) Create(_ context.Context, staff *domain.StaffMember) error {
	r.records[staff.UserID] = staff
	return nil
}

func (r *fakeStaffRepo) Delete(_ context.Context, userID string) error {
	if _, ok := r.records[userID]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.records, userID)
	return nil
}

func (r *fakeStaffRepo) GetByID(_ context.Context, userID string) (*domain.StaffMember, error) {
	record, ok := r.records[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return record, nil
}

func (r *fakeStaffRepo) List(_ context.Context) ([]domain.StaffMember, error) {
	var result []domain.StaffMember
	for _, record := range r.records {
		result = append(result, *record)
	}
	return result, nil
}

func (r *fakeStaffRepo) SetRank(_ context.Context, userID string, rank domain.StaffRank) error {
	record, ok := r.records[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	record.Rank = rank
	return nil
}

func (r *fakeStaffRepo) SetCountry(_ context.Context, userID, code string) error {
	record, ok := r.records[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	record.CountryCode = code
	return nil
}

func (r *fakeStaffRepo) IncrementApproved(_ context.Context, userID string) error {
	r.approved[userID]++
	return nil
}

func (r *fakeStaffRepo) IncrementDenied(_ context.Context, userID string) error {
	r.denied[userID]++
	return nil
}

func (r *fakeStaffRepo) AddStrike(_ context.Context, userID string) error {
	record, ok := r.records[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	record.Strikes++
	return nil
}

type fakeActionRepo struct {
	rows []domain.ReviewAction
}

func (r *fakeActionRepo) Insert(_ context.Context, action *domain.ReviewAction) error {
	action.CreatedAt = time.Now()
	r.rows = append(r.rows, *action)
	return nil
}

func (r *fakeActionRepo) BackfillReason(_ context.Context, id, reason string) error {
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].Reason = reason
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeActionRepo) ListByBot(_ context.Context, botID string) ([]domain.ReviewAction, error) {
	var result []domain.ReviewAction
	for _, row := range r.rows {
		if row.BotID == botID {
			result = append(result, row)
		}
	}
	return result, nil
}

const (
	mainGuild   = "guild-main"
	reviewGuild = "guild-review"
	botID       = "bot-1"
	ownerID     = "owner-1"
	staffID     = "staff-1"
)

type reviewFixture struct {
	svc     *ReviewService
	chat    *fakeChat
	bots    *fakeBotRepo
	users   *fakeUserRepo
	staff   *fakeStaffRepo
	actions *fakeActionRepo
}

func newReviewFixture(bot *domain.Bot) *reviewFixture {
	chat := newFakeChat()
	bots := newFakeBotRepo(bot)
	users := newFakeUserRepo(&domain.User{ID: ownerID, UniqueID: "u-owner"})
	staff := newFakeStaffRepo(&domain.StaffMember{UserID: staffID, Rank: domain.RankWebsiteModerator})
	actions := &fakeActionRepo{}

	cfg := config.DiscordConfig{
		MainGuildID:        mainGuild,
		ReviewGuildID:      reviewGuild,
		DeveloperRoleID:    "role-dev",
		CertifiedDevRoleID: "role-certdev",
		CertifiedBotRoleID: "role-certbot",
		ApprovalChannelID:  "chan-approval",
		SiteLogChannelID:   "chan-sitelog",
		AnnounceChannelID:  "chan-announce",
	}
	logger := zap.NewNop()
	notifier := NewNotificationService(chat, cfg, observability.NewMetrics(), logger)
	svc := NewReviewService(ReviewDependencies{
		BotRepo:    bots,
		UserRepo:   users,
		StaffRepo:  staff,
		ActionRepo: actions,
		Chat:       chat,
		Notifier:   notifier,
		Dispatcher: events.NewInMemoryDispatcher(),
		Discord:    cfg,
		SiteURL:    "https://blist.xyz",
		Logger:     logger,
	})
	return &reviewFixture{svc: svc, chat: chat, bots: bots, users: users, staff: staff, actions: actions}
}

func queuedBot() *domain.Bot {
	return &domain.Bot{
		ID:          botID,
		UniqueID:    "u-bot",
		Username:    "TestBot",
		MainOwnerID: ownerID,
	}
}

func TestApproveRejectsWhenCandidateAbsent(t *testing.T) {
	fx := newReviewFixture(queuedBot())
	// Candidate never joined the review guild.
	fx.chat.addMember(mainGuild, events.Member{ID: ownerID, Username: "Owner"})

	_, err := fx.svc.Approve(context.Background(), staffID, botID)
	if !util.IsGuardError(err) {
		t.Fatalf("Approve = %v; want guard error", err)
	}
	if bot, _ := fx.bots.GetByID(context.Background(), botID); bot.Approved {
		t.Fatal("guard failure mutated the submission")
	}
	if len(fx.actions.rows) != 0 {
		t.Fatal("guard failure wrote an audit row")
	}
}

func TestApproveRejectsWhenOwnerMissing(t *testing.T) {
	fx := newReviewFixture(queuedBot())
	fx.chat.addMember(reviewGuild, events.Member{ID: botID, Username: "TestBot", IsBot: true})

	_, err := fx.svc.Approve(context.Background(), staffID, botID)
	if !util.IsGuardError(err) {
		t.Fatalf("Approve = %v; want guard error", err)
	}
	if bot, _ := fx.bots.GetByID(context.Background(), botID); bot.Approved {
		t.Fatal("guard failure mutated the submission")
	}
}

func TestApproveRejectsNonQueued(t *testing.T) {
	bot := queuedBot()
	bot.Approved = true
	fx := newReviewFixture(bot)
	fx.chat.addMember(reviewGuild, events.Member{ID: botID, Username: "TestBot", IsBot: true})
	fx.chat.addMember(mainGuild, events.Member{ID: ownerID, Username: "Owner"})

	if _, err := fx.svc.Approve(context.Background(), staffID, botID); !util.IsGuardError(err) {
		t.Fatalf("Approve on already-approved bot = %v; want guard error", err)
	}
}

func TestApproveHappyPath(t *testing.T) {
	fx := newReviewFixture(queuedBot())
	fx.chat.addMember(reviewGuild, events.Member{ID: botID, Username: "TestBot", IsBot: true})
	fx.chat.addMember(mainGuild, events.Member{ID: ownerID, Username: "Owner"})

	bot, err := fx.svc.Approve(context.Background(), staffID, botID)
	if err != nil {
		t.Fatalf("Approve returned %v", err)
	}
	if bot.Username != "TestBot" {
		t.Fatalf("Approve returned bot %q", bot.Username)
	}

	stored, _ := fx.bots.GetByID(context.Background(), botID)
	if !stored.Approved {
		t.Fatal("submission was not marked approved")
	}
	if !fx.users.developers[ownerID] {
		t.Fatal("owner was not flagged as developer")
	}
	if fx.staff.approved[staffID] != 1 {
		t.Fatalf("staff approve counter = %d; want 1", fx.staff.approved[staffID])
	}
	if len(fx.actions.rows) != 1 || fx.actions.rows[0].Action != domain.ActionApprove {
		t.Fatalf("audit rows = %+v; want one APPROVE", fx.actions.rows)
	}
	wantKick := reviewGuild + ":" + botID
	if len(fx.chat.kicked) != 1 || fx.chat.kicked[0] != wantKick {
		t.Fatalf("kicked = %v; want [%s]", fx.chat.kicked, wantKick)
	}
	if len(fx.chat.messages["chan-approval"]) == 0 {
		t.Fatal("no approval announcement was posted")
	}
	if len(fx.chat.dms[ownerID]) == 0 {
		t.Fatal("owner was not DMed")
	}
}

func TestApproveCreditsReferrer(t *testing.T) {
	bot := queuedBot()
	bot.ReferredBy = "REF123"
	fx := newReviewFixture(bot)
	fx.users.users["referrer"] = &domain.User{ID: "referrer", ReferrerCode: "REF123"}
	fx.chat.addMember(reviewGuild, events.Member{ID: botID, Username: "TestBot", IsBot: true})
	fx.chat.addMember(mainGuild, events.Member{ID: ownerID, Username: "Owner"})

	if _, err := fx.svc.Approve(context.Background(), staffID, botID); err != nil {
		t.Fatalf("Approve returned %v", err)
	}
	if fx.users.referrals["referrer"] != 1 {
		t.Fatalf("referrer credits = %d; want 1", fx.users.referrals["referrer"])
	}
}

func TestDeny(t *testing.T) {
	fx := newReviewFixture(queuedBot())
	fx.chat.addMember(reviewGuild, events.Member{ID: botID, Username: "TestBot", IsBot: true})

	bot, err := fx.svc.Deny(context.Background(), staffID, botID, "Offline throughout the review.")
	if err != nil {
		t.Fatalf("Deny returned %v", err)
	}
	if bot.ID != botID {
		t.Fatalf("Deny returned bot %q", bot.ID)
	}

	stored, _ := fx.bots.GetByID(context.Background(), botID)
	if !stored.Denied {
		t.Fatal("submission was not marked denied")
	}
	if fx.staff.denied[staffID] != 1 {
		t.Fatalf("staff deny counter = %d; want 1", fx.staff.denied[staffID])
	}
	if len(fx.actions.rows) != 1 || fx.actions.rows[0].Reason != "Offline throughout the review." {
		t.Fatalf("audit rows = %+v; want one DENY with reason", fx.actions.rows)
	}

	// Denying again must fail: the row is no longer queued.
	if _, err := fx.svc.Deny(context.Background(), staffID, botID, "again"); !util.IsGuardError(err) {
		t.Fatalf("second Deny = %v; want guard error", err)
	}
}

func TestDenyRejectsNonBot(t *testing.T) {
	fx := newReviewFixture(queuedBot())
	fx.chat.addMember(reviewGuild, events.Member{ID: botID, Username: "Imposter", IsBot: false})

	if _, err := fx.svc.Deny(context.Background(), staffID, botID, "reason"); !util.IsGuardError(err) {
		t.Fatalf("Deny of a human account = %v; want guard error", err)
	}

	stored, _ := fx.bots.GetByID(context.Background(), botID)
	if stored.Denied {
		t.Fatal("rejected deny still marked the submission denied")
	}
	if fx.staff.denied[staffID] != 0 {
		t.Fatalf("staff deny counter = %d; want 0", fx.staff.denied[staffID])
	}
	if len(fx.actions.rows) != 0 {
		t.Fatalf("audit rows = %+v; want none", fx.actions.rows)
	}
}

func TestDeleteRemovesBotAndDeveloperStatus(t *testing.T) {
	bot := queuedBot()
	bot.Approved = true
	fx := newReviewFixture(bot)
	fx.chat.addMember(mainGuild, events.Member{ID: ownerID, Username: "Owner"})
	fx.users.developers[ownerID] = true

	if _, err := fx.svc.Delete(context.Background(), staffID, botID, "Left the support server."); err != nil {
		t.Fatalf("Delete returned %v", err)
	}
	if len(fx.bots.deleted) != 1 || fx.bots.deleted[0] != botID {
		t.Fatalf("deleted = %v; want [%s]", fx.bots.deleted, botID)
	}
	// Last owned bot gone: the developer flag must drop.
	if fx.users.developers[ownerID] {
		t.Fatal("owner kept the developer flag with no bots left")
	}
	if len(fx.actions.rows) != 1 || fx.actions.rows[0].Action != domain.ActionDelete {
		t.Fatalf("audit rows = %+v; want one DELETE", fx.actions.rows)
	}

	if _, err := fx.svc.Delete(context.Background(), staffID, botID, "again"); !util.IsGuardError(err) {
		t.Fatalf("Delete of missing bot = %v; want guard error", err)
	}
}

func TestCertifyRequiresPendingRequest(t *testing.T) {
	bot := queuedBot()
	bot.Approved = true
	fx := newReviewFixture(bot)

	if _, err := fx.svc.Certify(context.Background(), staffID, botID); !util.IsGuardError(err) {
		t.Fatalf("Certify without pending request = %v; want guard error", err)
	}

	stored := fx.bots.bots[botID]
	stored.AwaitingCertification = true

	certified, err := fx.svc.Certify(context.Background(), staffID, botID)
	if err != nil {
		t.Fatalf("Certify returned %v", err)
	}
	if certified.ID != botID {
		t.Fatalf("Certify returned bot %q", certified.ID)
	}
	if !stored.Certified || stored.AwaitingCertification {
		t.Fatalf("stored flags = certified %v awaiting %v; want true/false", stored.Certified, stored.AwaitingCertification)
	}
}

func TestDeclineCertification(t *testing.T) {
	bot := queuedBot()
	bot.Approved = true
	bot.AwaitingCertification = true
	fx := newReviewFixture(bot)

	if _, err := fx.svc.DeclineCertification(context.Background(), staffID, botID, "Not enough servers."); err != nil {
		t.Fatalf("DeclineCertification returned %v", err)
	}
	stored := fx.bots.bots[botID]
	if stored.AwaitingCertification || stored.Certified {
		t.Fatal("decline left certification flags set")
	}
}
