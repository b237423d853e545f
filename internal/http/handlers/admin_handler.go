// Admin HTTP handlers.
//
// Read-only views over the bot's state for operators:
//   - GET /stats              (grant totals, distinct users, maintenance flag)
//   - GET /groups             (grant standings, paginated)
//   - GET /groups/{id}        (standing of one group's grants)
//   - GET /usage/{user_id}    (a user's quota in the current period)
//   - GET /settings           (process-wide settings)
//
// Mutations stay in the chat commands, which are audited by the bot.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/services"
	"github.com/tbourn/go-quota-bot/internal/utils"
)

// GrantReader exposes group grants. *services.EntitlementService
// implements it.
type GrantReader interface {
	Stats(ctx context.Context) (*services.Stats, error)
	DescribeGroup(ctx context.Context, groupID string) ([]services.GrantStatus, error)
}

// UsageReader exposes per-user quota. *services.QuotaService implements it.
type UsageReader interface {
	Remaining(ctx context.Context, userID int64) ([]services.FeatureUsage, error)
}

// SettingsReader exposes the settings table. *services.SettingsService
// implements it.
type SettingsReader interface {
	All(ctx context.Context) ([]domain.Setting, error)
}

// Admin groups the admin API endpoints.
type Admin struct {
	grants   GrantReader
	usage    UsageReader
	settings SettingsReader
}

// NewAdmin returns the admin endpoints bound to the given readers.
func NewAdmin(grants GrantReader, usage UsageReader, settings SettingsReader) *Admin {
	return &Admin{grants: grants, usage: usage, settings: settings}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// ListGroupsResponse wraps a page of grant standings.
type ListGroupsResponse struct {
	Groups     []services.GrantStatus `json:"groups"`
	Pagination Pagination             `json:"pagination"`
}

// GroupResponse is the standing of one group.
type GroupResponse struct {
	GroupID string                 `json:"group_id" example:"-1001234567890"`
	Grants  []services.GrantStatus `json:"grants"`
}

// UsageResponse is a user's quota in the current period.
type UsageResponse struct {
	UserID    int64                   `json:"user_id" example:"7863700139"`
	Period    string                  `json:"period" example:"2025-06-01"`
	NextReset string                  `json:"next_reset" example:"2025-06-02T04:00:00+05:30"`
	Features  []services.FeatureUsage `json:"features"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// Stats godoc
// @ID          getStats
// @Summary     Grant and usage totals
// @Description Aggregates every grant with today's usage, the number of distinct users and the maintenance flag.
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  services.Stats
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Admin) Stats(c *gin.Context) {
	st, err := h.grants.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// ListGroups godoc
// @ID          listGroups
// @Summary     List grant standings (paginated)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListGroupsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups [get]
func (h *Admin) ListGroups(c *gin.Context) {
	page, pageSize := clampPagination(c)
	st, err := h.grants.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	lo, hi, pages := utils.Window(len(st.Grants), page, pageSize)
	ok(c, http.StatusOK, ListGroupsResponse{
		Groups: st.Grants[lo:hi],
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      len(st.Grants),
			TotalPages: pages,
			HasNext:    page < pages,
		},
	})
}

// GetGroup godoc
// @ID          getGroup
// @Summary     Standing of one group
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Telegram group id (negative)"  example(-1001234567890)
// @Success     200  {object}  handlers.GroupResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid group id"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "Group has no grants"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id} [get]
func (h *Admin) GetGroup(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n >= 0 {
		fail(c, http.StatusBadRequest, ErrCodeInvalidGroupID, "group id must be a negative integer")
		return
	}
	grants, err := h.grants.DescribeGroup(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if len(grants) == 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "group has no grants")
		return
	}
	ok(c, http.StatusOK, GroupResponse{GroupID: id, Grants: grants})
}

// GetUsage godoc
// @ID          getUsage
// @Summary     A user's quota in the current period
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       user_id  path  int  true  "Telegram user id"  example(7863700139)
// @Success     200  {object}  handlers.UsageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid user id"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /usage/{user_id} [get]
func (h *Admin) GetUsage(c *gin.Context) {
	uid, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || uid <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeInvalidUserID, "user id must be a positive integer")
		return
	}
	usage, err := h.usage.Remaining(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	resp := UsageResponse{UserID: uid, Features: usage}
	// Period details (best effort).
	if q, isQuota := h.usage.(*services.QuotaService); isQuota && q.Clock != nil {
		resp.Period = q.Clock.Today()
		resp.NextReset = q.NextReset().Format(time.RFC3339)
	}
	ok(c, http.StatusOK, resp)
}

// ListSettings godoc
// @ID          listSettings
// @Summary     Process-wide settings
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Success     200  {array}   domain.Setting
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settings [get]
func (h *Admin) ListSettings(c *gin.Context) {
	all, err := h.settings.All(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, all)
}
