package main

import (
	"context"
	"net/http"
	"time"

	"call-analytics/internal/httpapi"
	"call-analytics/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type routeDeps struct {
	handlers httpapi.Handlers
	authMW   gin.HandlerFunc
	gatherer prometheus.Gatherer
	health   func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.health != nil {
			if err := d.health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))

	// Provider webhooks are authenticated by HMAC signature, not bearer token.
	r.POST("/webhooks/provider/assistants", h.AssistantWebhook)

	v1 := r.Group("/v1")
	v1.Use(d.authMW, rbac.RequireTenant())
	{
		a := v1.Group("/analytics")
		a.GET("/dashboard", h.Dashboard)
		a.GET("/real-time", h.RealTime)
		a.GET("/calls", h.ListCalls)
		a.GET("/daily", h.DailyView)
		a.GET("/weekly", h.WeeklyTrend)

		// Manual syncs hit the provider; keep them admin-only and throttled.
		admin := v1.Group("")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/sync", httpapi.RateLimit(rate.NewLimiter(rate.Every(10*time.Second), 3)), h.TriggerSync)
			admin.POST("/assistants/sync", h.SyncAssistants)
		}
	}
}
