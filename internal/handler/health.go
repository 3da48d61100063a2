package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "issue-tracker"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storage Pinger
	driver  string
	log     *slog.Logger
}

func NewHealthHandler(storage Pinger, driver string, log *slog.Logger) *HealthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{storage: storage, driver: driver, log: log}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"time":    time.Now().Unix(),
	})
}

// Ready answers 503 while storage cannot be reached.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.storage.Ping(ctx); err != nil {
		h.log.WarnContext(ctx, "ready: storage ping failed", "driver", h.driver, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "storage": h.driver})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "storage": h.driver})
}
