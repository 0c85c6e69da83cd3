// Package httpapi holds the thin HTTP handlers: parse and validate input, resolve the
// tenant scope, call the internal services, return JSON.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"call-analytics/internal/analytics"
	"call-analytics/internal/apperr"
	"call-analytics/internal/assistants"
	"call-analytics/internal/audit"
	"call-analytics/internal/auth"
	"call-analytics/internal/callsync"
	"call-analytics/internal/provider"
	"call-analytics/internal/rollup"
	"call-analytics/internal/tenancy"
	"call-analytics/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CallSyncer interface {
	Sync(ctx context.Context, limit int) (callsync.Result, error)
}

type RollupRunner interface {
	RollupAll(ctx context.Context, windowDays int) (rollup.Result, error)
}

type AssistantSyncer interface {
	SyncAll(ctx context.Context) (assistants.SyncResult, error)
	ApplyWebhook(ctx context.Context, ev provider.AssistantEvent) (*assistants.AssistantConfig, error)
}

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Engine     *analytics.Engine
	Resolver   *tenancy.Resolver
	Calls      CallSyncer
	Rollup     RollupRunner
	Assistants AssistantSyncer
	Audit      *audit.Service

	Location      *time.Location
	CallLimit     int
	WindowDays    int
	WebhookSecret string

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h Handlers) loc() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.Local
}

// scope resolves ?clientId=&assistantId= against the caller.
func (h Handlers) scope(c *gin.Context) (tenancy.Scope, error) {
	ctx := c.Request.Context()
	return h.Resolver.Resolve(ctx, auth.PrincipalFrom(ctx), c.Query("clientId"), c.Query("assistantId"))
}

func actor(c *gin.Context) audit.Actor {
	a := audit.Actor{IP: c.ClientIP()}
	if p := auth.PrincipalFrom(c.Request.Context()); p != nil {
		a.UserID = p.UserID
		a.Role = p.Role
	}
	return a
}

// writeError maps err to a status and a safe message. Server-side failures are logged
// with their cause; clients only see the public message.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

func notConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": what + " not configured"})
}
