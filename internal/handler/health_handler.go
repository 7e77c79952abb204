package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/digistore/internal/sse"
	"github.com/GTDGit/digistore/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides health endpoint.
type HealthHandler struct {
	backend string
	ping    func(ctx context.Context) error
	hub     *sse.Hub
}

// NewHealthHandler creates a new HealthHandler. ping may be nil for backends
// without a connection.
func NewHealthHandler(backend string, ping func(ctx context.Context) error, hub *sse.Hub) *HealthHandler {
	return &HealthHandler{backend: backend, ping: ping, hub: hub}
}

// GetHealth responds with service and store status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	storeStatus := "connected"
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			storeStatus = "disconnected"
		}
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	utils.Success(c, http.StatusOK, "Service is healthy", gin.H{
		"status": "healthy",
		"uptime": int(time.Since(startTime).Seconds()),
		"store": gin.H{
			"backend": h.backend,
			"status":  storeStatus,
		},
		"sseClients": clients,
	})
}
