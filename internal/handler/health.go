package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	broker Pinger
}

// NewHealthHandler checks the database and, when broker is non-nil, the job
// queue.
func NewHealthHandler(db Pinger, broker Pinger) *HealthHandler {
	return &HealthHandler{db: db, broker: broker}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": err.Error(),
		})
		return
	}

	if h.broker != nil {
		if err := h.broker.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"broker": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
