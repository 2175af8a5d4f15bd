package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"item_recovery/internal/config"
)

type HealthHandler struct {
	environment string
	startedAt   time.Time
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		environment: cfg.Environment,
		startedAt:   time.Now(),
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"environment": h.environment,
		"uptime":      time.Since(h.startedAt).String(),
	})
}
