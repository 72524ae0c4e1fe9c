package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// QueueStatus состояние очереди для health check.
type QueueStatus interface {
	Paused() bool
}

// VaultStatus состояние хранилища для health check.
type VaultStatus interface {
	Locked() bool
}

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct {
	db    *sqlx.DB
	queue QueueStatus
	vault VaultStatus
}

// NewHealthHandler создаёт новый health handler.
func NewHealthHandler(db *sqlx.DB, queue QueueStatus, vault VaultStatus) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, vault: vault}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Проверка подключения к БД
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	// Проверка статистики пула соединений
	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections > stats.MaxOpenConnections {
		checks["connection_pool"] = "warning: too many connections"
	} else {
		checks["connection_pool"] = "healthy"
	}

	if h.queue != nil {
		checks["queue"] = "running"
		if h.queue.Paused() {
			checks["queue"] = "paused"
		}
	}
	if h.vault != nil {
		checks["vault"] = "unlocked"
		if h.vault.Locked() {
			checks["vault"] = "locked"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}
