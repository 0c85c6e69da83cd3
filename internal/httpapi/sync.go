package httpapi

import (
	"net/http"

	"call-analytics/internal/apperr"

	"github.com/gin-gonic/gin"
)

const (
	SyncCalls   = "calls"
	SyncMetrics = "metrics"
	SyncAll     = "all"
)

type syncRequest struct {
	Type string `json:"type" binding:"required,oneof=calls metrics all"`
}

// TriggerSync handles POST /sync. calls runs the call sync, metrics the rollup fan-out,
// all runs both in that order. An overlapping run yields 409; a provider outage 500.
func (h Handlers) TriggerSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "type must be one of calls, metrics, all"})
		return
	}
	if (req.Type != SyncMetrics && h.Calls == nil) || (req.Type != SyncCalls && h.Rollup == nil) {
		notConfigured(c, "sync")
		return
	}

	ctx := c.Request.Context()
	resp := gin.H{"success": true}
	var errs []string

	if req.Type == SyncCalls || req.Type == SyncAll {
		res, err := h.Calls.Sync(ctx, h.CallLimit)
		if err != nil {
			h.syncFailed(c, req.Type, err)
			return
		}
		resp["newCalls"] = res.Created
		resp["updatedCalls"] = res.Updated
		resp["failedCalls"] = res.Failed
		errs = append(errs, res.Errors...)
	}
	if req.Type == SyncMetrics || req.Type == SyncAll {
		res, err := h.Rollup.RollupAll(ctx, h.WindowDays)
		if err != nil {
			h.syncFailed(c, req.Type, err)
			return
		}
		resp["daysProcessed"] = res.DaysProcessed
		errs = append(errs, res.Errors...)
	}
	if len(errs) > 0 {
		resp["errors"] = errs
	}

	h.Audit.LogSyncTriggered(ctx, actor(c), "", req.Type, resp)
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) syncFailed(c *gin.Context, syncType string, err error) {
	status := apperr.HTTPStatus(err)
	msg := apperr.PublicMessage(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	h.Audit.LogSyncTriggered(c.Request.Context(), actor(c), "", syncType, gin.H{"success": false, "error": msg})
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// SyncAssistants handles POST /assistants/sync (full resync).
func (h Handlers) SyncAssistants(c *gin.Context) {
	if h.Assistants == nil {
		notConfigured(c, "assistant sync")
		return
	}
	res, err := h.Assistants.SyncAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	h.Audit.LogAssistantsSynced(c.Request.Context(), actor(c), len(res.Assistants))
	resp := gin.H{"success": true, "assistants": res.Assistants, "failed": res.Failed}
	if len(res.Errors) > 0 {
		resp["errors"] = res.Errors
	}
	c.JSON(http.StatusOK, resp)
}
