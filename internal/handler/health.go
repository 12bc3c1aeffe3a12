package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/rca-worker/internal/model"
)

// 헬스체크 엔드포인트
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} model.PingResponse
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// 루트 엔드포인트
// @Summary Service banner
// @Tags health
// @Produce json
// @Success 200 {object} model.RootResponse
// @Router / [get]
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "rca-worker gateway is running",
	})
}

type queueInspector interface {
	Ping(ctx context.Context) error
	QueueLength(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler - redis / postgres 연결 상태와 큐 길이
type HealthHandler struct {
	queue    queueInspector
	postgres pinger
	started  time.Time
	now      func() time.Time
}

// postgres가 nil이면 "disabled"로 보고
func NewHealthHandler(queue queueInspector, postgres pinger) *HealthHandler {
	return &HealthHandler{queue: queue, postgres: postgres, started: time.Now(), now: time.Now}
}

// Health godoc
// @Summary Dependency health
// @Description healthy when redis (and postgres, if configured) respond
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := model.HealthResponse{
		Status:        "healthy",
		Redis:         "ok",
		Postgres:      "disabled",
		UptimeSeconds: int64(h.now().Sub(h.started).Seconds()),
	}

	if err := h.queue.Ping(ctx); err != nil {
		log.Printf("[Health] redis unreachable: %v", err)
		resp.Redis = "error"
		resp.Status = "degraded"
	} else if n, err := h.queue.QueueLength(ctx); err == nil {
		resp.QueueLength = n
	}

	if h.postgres != nil {
		resp.Postgres = "ok"
		if err := h.postgres.Ping(ctx); err != nil {
			log.Printf("[Health] postgres unreachable: %v", err)
			resp.Postgres = "error"
			resp.Status = "degraded"
		}
	}

	c.JSON(http.StatusOK, resp)
}
