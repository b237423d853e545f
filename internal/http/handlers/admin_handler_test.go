package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/period"
	"github.com/tbourn/go-quota-bot/internal/repo"
	"github.com/tbourn/go-quota-bot/internal/services"
)

// ---------- test plumbing ----------

type adminEnv struct {
	r        *gin.Engine
	quota    *services.QuotaService
	grants   *services.EntitlementService
	settings *services.SettingsService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:admin_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	clock := period.New(time.UTC, 4)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock.Now = func() time.Time { return now }

	env := &adminEnv{settings: services.NewSettingsService(db)}
	if err := env.settings.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	env.quota = services.NewQuotaService(db, clock, nil)
	env.grants = services.NewEntitlementService(db, clock, env.settings)

	h := NewAdmin(env.grants, env.quota, env.settings)
	env.r = gin.New()
	env.r.GET("/stats", h.Stats)
	env.r.GET("/groups", h.ListGroups)
	env.r.GET("/groups/:id", h.GetGroup)
	env.r.GET("/usage/:user_id", h.GetUsage)
	env.r.GET("/settings", h.ListSettings)
	return env
}

func (e *adminEnv) get(t *testing.T, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, w.Body.String())
		}
	}
	return w.Code
}

func (e *adminEnv) grant(t *testing.T, group, feature string, requests int) {
	t.Helper()
	_, err := e.grants.AddGrant(context.Background(), services.GrantInput{
		GroupID: group, Feature: feature, Requests: requests, Days: 30,
	})
	if err != nil {
		t.Fatalf("add grant: %v", err)
	}
}

// ---------- tests ----------

func TestAdmin_StatsAndGroup(t *testing.T) {
	env := newAdminEnv(t)
	ctx := context.Background()
	env.grant(t, "-100123", "like", 1500)
	env.grant(t, "-100123", "visit", 10)
	if _, err := env.grants.Consume(ctx, "-100123", domain.FeatureLike); err != nil {
		t.Fatalf("consume: %v", err)
	}

	var st services.Stats
	if code := env.get(t, "/stats", &st); code != http.StatusOK {
		t.Fatalf("stats status %d", code)
	}
	if st.TotalGrants != 2 || st.ActiveGrants != 2 || st.TotalUsed != 1 || st.TotalCap != 1510 || st.Maintenance {
		t.Fatalf("unexpected stats: %+v", st)
	}

	var g GroupResponse
	if code := env.get(t, "/groups/-100123", &g); code != http.StatusOK {
		t.Fatalf("group status %d", code)
	}
	if g.GroupID != "-100123" || len(g.Grants) != 2 {
		t.Fatalf("unexpected group: %+v", g)
	}
	for _, gs := range g.Grants {
		if gs.Grant.FeatureType == domain.FeatureLike && (gs.UsedToday != 1 || gs.DaysLeft != 30) {
			t.Fatalf("like standing: %+v", gs)
		}
	}
}

func TestAdmin_GetGroupErrors(t *testing.T) {
	env := newAdminEnv(t)

	var er ErrorResponse
	for _, id := range []string{"123", "abc", "0"} {
		if code := env.get(t, "/groups/"+id, &er); code != http.StatusBadRequest || er.Code != ErrCodeInvalidGroupID {
			t.Fatalf("id %q: %d %+v", id, code, er)
		}
	}
	if code := env.get(t, "/groups/-999", &er); code != http.StatusNotFound || er.Code != ErrCodeNotFound {
		t.Fatalf("unknown group: %d %+v", code, er)
	}
}

func TestAdmin_ListGroupsPaginates(t *testing.T) {
	env := newAdminEnv(t)
	for _, g := range []string{"-1", "-2", "-3"} {
		env.grant(t, g, "spam", 5)
	}

	var resp ListGroupsResponse
	if code := env.get(t, "/groups?page=2&page_size=2", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(resp.Groups) != 1 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 || resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp)
	}

	if code := env.get(t, "/groups?page=9", &resp); code != http.StatusOK || len(resp.Groups) != 0 {
		t.Fatalf("past-the-end page: %d %+v", code, resp)
	}
}

func TestAdmin_Usage(t *testing.T) {
	env := newAdminEnv(t)
	if err := env.quota.IncrementUsage(context.Background(), 555, domain.FeatureSpam); err != nil {
		t.Fatalf("increment: %v", err)
	}

	var u UsageResponse
	if code := env.get(t, "/usage/555", &u); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if u.UserID != 555 || u.Period != "2025-06-01" || u.NextReset != "2025-06-02T04:00:00Z" {
		t.Fatalf("unexpected usage header: %+v", u)
	}
	found := false
	for _, f := range u.Features {
		if f.Feature == domain.FeatureSpam {
			found = true
			if f.Used != 1 || f.Cap != 15 || f.Remaining != 14 {
				t.Fatalf("spam usage: %+v", f)
			}
		}
	}
	if !found {
		t.Fatalf("spam missing from %+v", u.Features)
	}

	var er ErrorResponse
	for _, id := range []string{"abc", "-5", "0"} {
		if code := env.get(t, "/usage/"+id, &er); code != http.StatusBadRequest || er.Code != ErrCodeInvalidUserID {
			t.Fatalf("id %q: %d %+v", id, code, er)
		}
	}
}

func TestAdmin_Settings(t *testing.T) {
	env := newAdminEnv(t)
	if err := env.settings.SetMaintenance(context.Background(), true); err != nil {
		t.Fatalf("set maintenance: %v", err)
	}

	var all []domain.Setting
	if code := env.get(t, "/settings", &all); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	got := map[string]string{}
	for _, s := range all {
		got[s.Key] = s.Value
	}
	if got[domain.SettingMaintenance] != "1" || got[domain.SettingFooter] != domain.DefaultFooter {
		t.Fatalf("unexpected settings: %v", got)
	}
}

type brokenReader struct{}

func (brokenReader) Stats(context.Context) (*services.Stats, error) { return nil, errors.New("boom") }
func (brokenReader) DescribeGroup(context.Context, string) ([]services.GrantStatus, error) {
	return nil, errors.New("boom")
}
func (brokenReader) Remaining(context.Context, int64) ([]services.FeatureUsage, error) {
	return nil, errors.New("boom")
}
func (brokenReader) All(context.Context) ([]domain.Setting, error) { return nil, errors.New("boom") }

func TestAdmin_ServiceErrors(t *testing.T) {
	captureLogs(t)
	gin.SetMode(gin.TestMode)
	h := NewAdmin(brokenReader{}, brokenReader{}, brokenReader{})
	r := gin.New()
	r.GET("/stats", h.Stats)
	r.GET("/groups", h.ListGroups)
	r.GET("/groups/:id", h.GetGroup)
	r.GET("/usage/:user_id", h.GetUsage)
	r.GET("/settings", h.ListSettings)

	for _, p := range []string{"/stats", "/groups", "/groups/-1", "/usage/1", "/settings"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status %d", p, w.Code)
		}
	}
}
