package handlers

import (
	"context"
	"net/http"
	"time"

	"cima-backend/database"
	"cima-backend/logging"

	"github.com/gin-gonic/gin"
)

// Root - GET /
func (h *Handler) Root(c *gin.Context) {
	respondMessage(c, http.StatusOK, "CIMA Backend API")
}

// Healthz - GET /healthz
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := database.Ping(ctx, h.DB); err != nil {
		logging.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "realtimeClients": h.Hub.Count()})
}
