package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicecoach/internal/accounts"
	"voicecoach/internal/httpapi"
	"voicecoach/internal/telephony"
	"voicecoach/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, engine telephony.DialogueEngine, svc *accounts.Service) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	telephony.NewWebhookHandler(engine).Register(r)

	v1 := r.Group("/v1")
	{
		h := httpapi.Handlers{Accounts: svc}

		accts := v1.Group("/accounts")
		{
			accts.POST("", h.RegisterAccount)
			accts.GET("", h.ListAccounts)
			accts.POST("/:id/activate", h.ActivateAccount)
			accts.POST("/:id/deactivate", h.DeactivateAccount)
			accts.POST("/:id/call", h.CallAccountNow)
			accts.DELETE("/:id", h.DeleteAccount)
		}
	}
}
