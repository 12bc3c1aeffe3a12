package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/rca-worker/internal/db"
	"github.com/kube-rca/rca-worker/internal/model"
)

type jobReader interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, offset, limit int64) (*model.JobListResponse, error)
}

type JobHandler struct {
	jobs jobReader
}

func NewJobHandler(jobs jobReader) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListJobs godoc
// @Summary List analysis jobs (newest first)
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Limit (1-100)" default(20)
// @Success 200 {object} model.JobListResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid offset"})
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid limit"})
		return
	}

	res, err := h.jobs.List(c.Request.Context(), offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetJob godoc
// @Summary Get a job by ID
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} model.JobDetailEnvelope
// @Failure 404,500 {object} model.ErrorResponse
// @Router /api/v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "job not found or expired"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.JobDetailEnvelope{Status: "success", Data: job})
}
