package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/rca-worker/internal/model"
)

type auditReader interface {
	ListAnalysisLogs(ctx context.Context, jobID string, limit int) ([]model.AnalysisLogEntry, error)
}

// AuditHandler - analysis_log 조회 (pgvector 사용 시에만 등록)
// job hash는 TTL로 사라져도 감사 레코드는 남으므로 job 존재 여부는 확인하지 않음
type AuditHandler struct {
	logs auditReader
}

func NewAuditHandler(logs auditReader) *AuditHandler {
	return &AuditHandler{logs: logs}
}

// GetJobAudit godoc
// @Summary List audit records of a job (newest first)
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param limit query int false "Limit (1-100)" default(20)
// @Success 200 {object} model.AnalysisLogListResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/jobs/{id}/audit [get]
func (h *AuditHandler) GetJobAudit(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "limit must be between 1 and 100"})
		return
	}

	jobID := c.Param("id")
	entries, err := h.logs.ListAnalysisLogs(c.Request.Context(), jobID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.AnalysisLogListResponse{JobID: jobID, Entries: entries, Count: len(entries)})
}
