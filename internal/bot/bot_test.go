package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-quota-bot/internal/backup"
	"github.com/tbourn/go-quota-bot/internal/gameapi"
	"github.com/tbourn/go-quota-bot/internal/period"
	"github.com/tbourn/go-quota-bot/internal/repo"
	"github.com/tbourn/go-quota-bot/internal/services"
)

const (
	adminID int64 = 7863700139
	userID  int64 = 555
	groupID int64 = -100123
)

// ---------- fakes ----------

type sent struct {
	Kind      string // reply|edit|photo
	ChatID    int64
	MessageID int
	Text      string
}

// fakeSender records everything the bot sends.
type fakeSender struct {
	mu     sync.Mutex
	nextID int
	out    []sent
	fail   error
}

func (s *fakeSender) Reply(_ context.Context, chatID int64, replyTo int, html string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	s.nextID++
	s.out = append(s.out, sent{Kind: "reply", ChatID: chatID, MessageID: s.nextID, Text: html})
	return s.nextID, nil
}

func (s *fakeSender) Edit(_ context.Context, chatID int64, messageID int, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, sent{Kind: "edit", ChatID: chatID, MessageID: messageID, Text: html})
	return nil
}

func (s *fakeSender) SendPhoto(_ context.Context, chatID int64, replyTo int, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, sent{Kind: "photo", ChatID: chatID, MessageID: replyTo, Text: url})
	return nil
}

func (s *fakeSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.out...)
}

// last returns the text of the last message, or "" if nothing was sent.
func (s *fakeSender) last() string {
	all := s.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1].Text
}

func (s *fakeSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = nil
}

// fakeAPI answers with canned results. Nil funcs panic to flag unexpected
// calls.
type fakeAPI struct {
	like    func(region, uid string) (*gameapi.LikeResult, error)
	spam    func(region, uid string) (*gameapi.SpamResult, error)
	visit   func(region, uid string) (*gameapi.VisitResult, error)
	search  func(nickname string) (*gameapi.SearchResult, error)
	profile func(uid, region string) (*gameapi.Profile, error)
	lookup  func(uid string) (*gameapi.PlayerInfo, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeAPI) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAPI) Like(_ context.Context, region, uid string) (*gameapi.LikeResult, error) {
	f.hit()
	return f.like(region, uid)
}

func (f *fakeAPI) Spam(_ context.Context, region, uid string) (*gameapi.SpamResult, error) {
	f.hit()
	return f.spam(region, uid)
}

func (f *fakeAPI) Visit(_ context.Context, region, uid string) (*gameapi.VisitResult, error) {
	f.hit()
	return f.visit(region, uid)
}

func (f *fakeAPI) Search(_ context.Context, nickname string) (*gameapi.SearchResult, error) {
	f.hit()
	return f.search(nickname)
}

func (f *fakeAPI) Profile(_ context.Context, uid, region string) (*gameapi.Profile, error) {
	f.hit()
	return f.profile(uid, region)
}

func (f *fakeAPI) LookupPlayer(_ context.Context, uid string) (*gameapi.PlayerInfo, error) {
	f.hit()
	return f.lookup(uid)
}

func (f *fakeAPI) BannerURL(uid, region string) string {
	return "https://img.test/banner?uid=" + uid + "&region=" + region
}

func (f *fakeAPI) OutfitURL(uid, region string) string {
	return "https://img.test/outfit?uid=" + uid + "&region=" + region
}

type fakeBackups struct {
	res *backup.Result
	err error
}

func (f fakeBackups) Run(context.Context) (*backup.Result, error) { return f.res, f.err }

// ---------- fixture ----------

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	now      time.Time
	clock    *period.Clock
	quota    *services.QuotaService
	grants   *services.EntitlementService
	settings *services.SettingsService
	api      *fakeAPI
	out      *fakeSender
	d        *Dispatcher
}

type fixtureOpt func(*Options)

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	dsn := "file:bot_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))

	f := &fixture{
		t:   t,
		db:  db,
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		api: &fakeAPI{},
		out: &fakeSender{},
	}
	f.clock = period.New(time.UTC, 4)
	f.clock.Now = func() time.Time { return f.now }
	f.settings = services.NewSettingsService(db)
	require.NoError(t, f.settings.Seed(context.Background()))
	f.quota = services.NewQuotaService(db, f.clock, nil)
	f.grants = services.NewEntitlementService(db, f.clock, f.settings)

	o := Options{
		Quota:         f.quota,
		Grants:        f.grants,
		Settings:      f.settings,
		Admins:        services.NewStaticAdmins(adminID),
		API:           f.api,
		Out:           f.out,
		Clock:         f.clock,
		BotName:       "QuotaBot",
		Regions:       []string{"ind", "sg", "eu"},
		LikeThreshold: 50,
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.d = New(o)
	return f
}

func withGrants(o *Options) { o.GrantsEnforced = true }

// send dispatches text from sender in the test group.
func (f *fixture) send(sender int64, text string) {
	f.sendMsg(Message{SenderID: sender, Text: text})
}

func (f *fixture) sendMsg(m Message) {
	if m.ChatID == 0 {
		m.ChatID = groupID
	}
	if m.ChatType == "" {
		m.ChatType = "supergroup"
	}
	if m.MessageID == 0 {
		m.MessageID = 1000
	}
	f.d.Dispatch(context.Background(), m)
}

func (f *fixture) grant(feature string, requests int) {
	_, err := f.grants.AddGrant(context.Background(), services.GrantInput{
		GroupID:  fmt.Sprint(groupID),
		Feature:  feature,
		Requests: requests,
		Days:     30,
	})
	require.NoError(f.t, err)
}

func (f *fixture) used(user int64, feature string) int {
	usage, err := f.quota.Remaining(context.Background(), user)
	require.NoError(f.t, err)
	for _, u := range usage {
		if string(u.Feature) == feature {
			return u.Used
		}
	}
	return -1
}
