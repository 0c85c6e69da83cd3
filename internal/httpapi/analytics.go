package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"call-analytics/internal/analytics"
	"call-analytics/internal/apperr"
	"call-analytics/internal/auth"
	"call-analytics/internal/tenancy"
	"call-analytics/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Dashboard handles GET /analytics/dashboard.
func (h Handlers) Dashboard(c *gin.Context) {
	scope, err := h.scope(c)
	if err != nil {
		writeError(c, err)
		return
	}
	d, err := h.Engine.Dashboard(c.Request.Context(), scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// RealTime handles GET /analytics/real-time.
func (h Handlers) RealTime(c *gin.Context) {
	scope, err := h.scope(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rt, err := h.Engine.RealTime(c.Request.Context(), scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rt)
}

// ListCalls handles GET /analytics/calls.
func (h Handlers) ListCalls(c *gin.Context) {
	var req tenancy.FilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		writeError(c, apperr.Validation("invalid query"))
		return
	}
	page, err := intQuery(c, "page", 1)
	if err != nil {
		writeError(c, err)
		return
	}
	perPage, err := intQuery(c, "perPage", analytics.DefaultPerPage)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	f, err := h.Resolver.Filter(ctx, auth.PrincipalFrom(ctx), req)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.Engine.ListCalls(ctx, f, page, perPage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// DailyView handles GET /analytics/daily?date=YYYY-MM-DD (default today).
func (h Handlers) DailyView(c *gin.Context) {
	scope, err := h.scope(c)
	if err != nil {
		writeError(c, err)
		return
	}
	day, err := h.dateQuery(c, "date")
	if err != nil {
		writeError(c, err)
		return
	}
	m, err := h.Engine.DailyView(c.Request.Context(), day, scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// WeeklyTrend handles GET /analytics/weekly?endDate=YYYY-MM-DD (default today).
func (h Handlers) WeeklyTrend(c *gin.Context) {
	scope, err := h.scope(c)
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := h.dateQuery(c, "endDate")
	if err != nil {
		writeError(c, err)
		return
	}
	days, err := h.Engine.WeeklyTrend(c.Request.Context(), end, scope)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("invalid " + key)
	}
	return n, nil
}

func (h Handlers) dateQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return h.now().In(h.loc()), nil
	}
	t, err := utils.ParseDate(raw, h.loc())
	if err != nil {
		return time.Time{}, apperr.Validation("invalid " + key)
	}
	return t, nil
}
