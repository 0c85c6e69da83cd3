package httpapi

import (
	"errors"
	"io"
	"net/http"

	"call-analytics/internal/provider"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// AssistantWebhook handles POST /webhooks/provider/assistants. The body must carry a
// valid X-Provider-Signature; deliveries are applied through the assistant syncer.
func (h Handlers) AssistantWebhook(c *gin.Context) {
	if h.Assistants == nil || h.WebhookSecret == "" {
		notConfigured(c, "assistant webhook")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}
	if err := provider.VerifySignature(h.WebhookSecret, body, c.GetHeader(provider.SignatureHeader)); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	ev, err := provider.ParseAssistantEvent(body)
	if err != nil {
		if errors.Is(err, provider.ErrBadEvent) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
			return
		}
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.Assistants.ApplyWebhook(ctx, ev)
	if err != nil {
		writeError(c, err)
		return
	}

	if ev.Type == provider.AssistantDeleted {
		h.Audit.LogAssistantDeleted(ctx, ev.Assistant.ID)
		c.JSON(http.StatusOK, gin.H{"received": true, "deleted": ev.Assistant.ID})
		return
	}
	owner := ""
	if cfg != nil && cfg.ClientID != nil {
		owner = *cfg.ClientID
	}
	h.Audit.LogAssistantChanged(ctx, owner, ev.Assistant.ID, string(ev.Type))
	c.JSON(http.StatusOK, gin.H{"received": true, "assistant": cfg})
}
