// Alertmanager 웹훅 엔드포인트
//
// 요청 흐름:
//  1. Alertmanager가 POST /api/v1/alertmanager로 그룹 알림 전송
//  2. firing 상태 알림만 AlertEvent로 변환 (resolved는 건너뜀)
//  3. 각 알림을 수집 게이트웨이와 같은 경로(dedup + 큐 적재)로 전달

package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/service"
)

// AlertmanagerResponse - 알림별 접수 결과
type AlertmanagerResponse struct {
	Status   string                  `json:"status"`
	Received int                     `json:"received"`
	Skipped  int                     `json:"skipped"`
	Jobs     []model.AnalyzeResponse `json:"jobs"`
}

type AlertmanagerHandler struct {
	svc alertSubmitter
}

func NewAlertmanagerHandler(svc alertSubmitter) *AlertmanagerHandler {
	return &AlertmanagerHandler{svc: svc}
}

// Webhook godoc
// @Summary Receive an Alertmanager webhook
// @Tags analyze
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.AlertmanagerWebhook true "Alertmanager payload"
// @Success 200 {object} handler.AlertmanagerResponse
// @Failure 400,401,403,503 {object} model.ErrorResponse
// @Router /api/v1/alertmanager [post]
func (h *AlertmanagerHandler) Webhook(c *gin.Context) {
	var webhook model.AlertmanagerWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		log.Printf("[Alertmanager] failed to parse webhook: %v", err)
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid payload"})
		return
	}

	log.Printf("[Alertmanager] webhook received (status=%s, alerts=%d, receiver=%s)",
		webhook.Status, len(webhook.Alerts), webhook.Receiver)

	resp := AlertmanagerResponse{Status: "received", Received: len(webhook.Alerts), Jobs: []model.AnalyzeResponse{}}
	for _, alert := range webhook.Alerts {
		if !alert.IsFiring() {
			resp.Skipped++
			continue
		}

		res, err := h.svc.Submit(c.Request.Context(), alert.ToAlertEvent())
		if errors.Is(err, service.ErrInvalidAlert) {
			log.Printf("[Alertmanager] alert skipped (fingerprint=%s): %v", alert.Fingerprint, err)
			resp.Skipped++
			continue
		}
		if err != nil {
			log.Printf("[Alertmanager] submit failed (fingerprint=%s): %v", alert.Fingerprint, err)
			c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "queue unavailable"})
			return
		}
		resp.Jobs = append(resp.Jobs, *res)
	}

	c.JSON(http.StatusOK, resp)
}
