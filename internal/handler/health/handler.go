package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Handler struct {
	db    *sqlx.DB
	redis *redis.Client
}

// NewHandler reports service health. redis may be nil when not configured;
// that is an acceptable, non-degraded state.
func NewHandler(db *sqlx.DB, redisClient *redis.Client) *Handler {
	return &Handler{db: db, redis: redisClient}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Check)
}

// Check probes the backing stores and reports ok/degraded, mirroring what the
// admin dashboard's status widget expects.
func (h *Handler) Check(c *gin.Context) {
	status := gin.H{
		"service": "jobintel-notify",
		"status":  "ok",
	}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		status["postgres"] = "disconnected"
		status["status"] = "degraded"
	} else {
		status["postgres"] = "connected"
	}

	if h.redis == nil {
		status["redis"] = "not-configured"
	} else {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := h.redis.Ping(pingCtx).Err(); err != nil {
			status["redis"] = "disconnected"
			status["status"] = "degraded"
		} else {
			status["redis"] = "connected"
		}
	}

	code := http.StatusOK
	if status["status"] == "degraded" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
