// 알림 수집 엔드포인트
//
// 요청 흐름:
//  1. 수집기(zabbix, loki, crowdsec ...)가 POST /api/v1/analyze로 AlertEvent 전송
//  2. service 레이어에서 정규화 + dedup + 큐 적재
//  3. job_id 반환 (분석 결과는 /api/v1/jobs/{id}로 조회)

package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/service"
)

type alertSubmitter interface {
	Submit(ctx context.Context, event model.AlertEvent) (*model.AnalyzeResponse, error)
}

type AnalyzeHandler struct {
	svc alertSubmitter
}

func NewAnalyzeHandler(svc alertSubmitter) *AnalyzeHandler {
	return &AnalyzeHandler{svc: svc}
}

// Analyze godoc
// @Summary Queue an alert for analysis
// @Tags analyze
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.AlertEvent true "Alert event"
// @Success 200 {object} model.AnalyzeResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401,403 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/analyze [post]
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var event model.AlertEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := h.svc.Submit(c.Request.Context(), event)
	if errors.Is(err, service.ErrInvalidAlert) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		log.Printf("[Gateway] submit failed (source=%s, caller=%s): %v", event.Source, GetAuthSubject(c), err)
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "queue unavailable"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
