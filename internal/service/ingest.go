// 알림 수집(게이트웨이) 비즈니스 로직
//
// 처리 흐름:
//  1. AlertEvent 정규화 (severity 보정, 길이 제한)
//  2. dedup 키 선점 (같은 source/host/description 앞부분이 window 안에 있으면 중단)
//  3. Job 생성 + 큐 적재

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kube-rca/rca-worker/internal/db"
	"github.com/kube-rca/rca-worker/internal/model"
)

// ErrInvalidAlert - source / description 누락
var ErrInvalidAlert = errors.New("invalid alert")

const (
	SubmitStatusQueued       = "queued"
	SubmitStatusDeduplicated = "deduplicated"
)

type JobQueue interface {
	AcquireDedup(ctx context.Context, key, jobID string, window time.Duration) (bool, string, error)
	ReleaseDedup(ctx context.Context, key string) error
	Create(ctx context.Context, job *model.Job) error
}

type GatewayService struct {
	jobs        JobQueue
	dedupWindow time.Duration
	newID       func() (string, error)
	now         func() time.Time
}

func NewGatewayService(jobs JobQueue, dedupWindow time.Duration) *GatewayService {
	if dedupWindow <= 0 {
		dedupWindow = 900 * time.Second
	}
	return &GatewayService{
		jobs:        jobs,
		dedupWindow: dedupWindow,
		newID:       newJobID,
		now:         time.Now,
	}
}

// UUIDv7 - 생성 시각 순으로 정렬되는 id
func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Submit - 알림 1건 접수
func (s *GatewayService) Submit(ctx context.Context, event model.AlertEvent) (*model.AnalyzeResponse, error) {
	event.Normalize()
	if event.Source == "" || strings.TrimSpace(event.Description) == "" {
		return nil, fmt.Errorf("%w: source and description are required", ErrInvalidAlert)
	}

	jobID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	key := db.DedupKey(event.Source, event.Host, event.Description)
	acquired, existing, err := s.jobs.AcquireDedup(ctx, key, jobID, s.dedupWindow)
	if err != nil {
		return nil, fmt.Errorf("dedup check failed: %w", err)
	}
	if !acquired {
		log.Printf("[Gateway] duplicate alert suppressed (source=%s, host=%s, job_id=%s)", event.Source, event.Host, existing)
		return &model.AnalyzeResponse{
			Status:  SubmitStatusDeduplicated,
			JobID:   existing,
			Message: "identical alert already queued within dedup window",
		}, nil
	}

	job := &model.Job{
		ID:        jobID,
		CreatedAt: s.now().UTC(),
		Status:    model.JobStatusPending,
		Event:     event,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if rerr := s.jobs.ReleaseDedup(ctx, key); rerr != nil {
			log.Printf("[Gateway] failed to release dedup key (key=%s): %v", key, rerr)
		}
		return nil, err
	}

	log.Printf("[Gateway] alert queued (job_id=%s, source=%s, host=%s, severity=%s)", jobID, event.Source, event.Host, event.Severity)
	return &model.AnalyzeResponse{
		Status:  SubmitStatusQueued,
		JobID:   jobID,
		Message: "alert queued for analysis",
	}, nil
}
