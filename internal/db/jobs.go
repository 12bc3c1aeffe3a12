// Redis 기반 Job 저장소 / 작업 큐
//
// 키 구성:
//   - mcp:queue:analyze         처리 대기 job id 리스트 (LPUSH / BRPOP)
//   - mcp:job:{id}              job 레코드 hash (TTL: 진행 중 짧게, 종료 후 길게)
//   - mcp:jobs:index            생성 시각을 score로 하는 job id sorted set (목록 조회용)
//   - mcp:dedup:{src}:{host}:.. 중복 제출 방지 마커 (SET NX EX)

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
)

const (
	QueueKey      = "mcp:queue:analyze"
	jobKeyPrefix  = "mcp:job:"
	jobIndexKey   = "mcp:jobs:index"
	dedupPrefix   = "mcp:dedup:"
	dedupDescRune = 50

	maxListLimit = 100
)

// ErrJobNotFound - job 레코드가 없거나 만료됨
var ErrJobNotFound = errors.New("job not found")

// JobStore - Job 레코드 / 큐 / 중복 마커를 관리
type JobStore struct {
	rdb          *redis.Client
	pendingTTL   time.Duration
	completedTTL time.Duration
	now          func() time.Time
}

func NewJobStore(rdb *redis.Client, cfg config.JobsConfig) *JobStore {
	pendingTTL := cfg.PendingTTL
	if pendingTTL <= 0 {
		pendingTTL = time.Hour
	}
	completedTTL := cfg.CompletedTTL
	if completedTTL <= 0 {
		completedTTL = 7 * 24 * time.Hour
	}
	return &JobStore{
		rdb:          rdb,
		pendingTTL:   pendingTTL,
		completedTTL: completedTTL,
		now:          time.Now,
	}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// DedupKey - mcp:dedup:{source}:{host}:{description 앞 50자}
func DedupKey(source, host, description string) string {
	return dedupPrefix + source + ":" + host + ":" + model.Truncate(description, dedupDescRune)
}

func (s *JobStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Create - 레코드 저장 + 인덱스 등록 + 큐 적재
// 단일 pipeline으로 보내지만 원자적이지 않음
func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now().UTC()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	fields, err := encodeJob(job)
	if err != nil {
		return err
	}

	key := jobKey(job.ID)
	cutoff := s.now().Add(-s.completedTTL)
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.ttlFor(job.Status))
		pipe.ZAdd(ctx, jobIndexKey, &redis.Z{Score: scoreOf(job.CreatedAt), Member: job.ID})
		// 완료 TTL보다 오래된 인덱스 항목은 레코드도 이미 만료됨
		pipe.ZRemRangeByScore(ctx, jobIndexKey, "-inf", "("+strconv.FormatFloat(scoreOf(cutoff), 'f', -1, 64))
		pipe.LPush(ctx, QueueKey, job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// Get - job 조회, 없으면 ErrJobNotFound
func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	fields, err := s.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return decodeJob(id, fields)
}

// Transition - 상태 변경 + update에 지정된 필드만 덮어씀
// TTL은 상태에 맞게 갱신 (종료 상태면 completedTTL)
func (s *JobStore) Transition(ctx context.Context, id, status string, update model.JobUpdate) error {
	key := jobKey(id)
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrJobNotFound
	}

	fields, err := encodeUpdate(status, update)
	if err != nil {
		return err
	}

	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.ttlFor(status))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to transition job %s to %s: %w", id, status, err)
	}
	return nil
}

// List - 최신순 목록
// offset < 0 → 0, limit은 [1, 100]으로 보정
// 레코드가 만료된 인덱스 항목은 조회 중에 제거
func (s *JobStore) List(ctx context.Context, offset, limit int64) (*model.JobListResponse, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	total, err := s.rdb.ZCard(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, err
	}
	ids, err := s.rdb.ZRevRange(ctx, jobIndexKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]model.Job, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if len(stale) > 0 {
		if err := s.rdb.ZRem(ctx, jobIndexKey, stale...).Err(); err == nil {
			total -= int64(len(stale))
		}
	}

	return &model.JobListResponse{Jobs: jobs, Total: total, Offset: offset, Limit: limit}, nil
}

// Pop - 큐에서 job id 하나를 꺼냄 (최대 timeout 대기)
// 타임아웃이면 ("", nil)
func (s *JobStore) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := s.rdb.BRPop(ctx, timeout, QueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// QueueLength - 처리 대기 중인 job 수
func (s *JobStore) QueueLength(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, QueueKey).Result()
}

// AcquireDedup - 중복 마커 선점 (SET NX EX)
// 이미 있으면 (false, 기존 job id)
func (s *JobStore) AcquireDedup(ctx context.Context, key, jobID string, window time.Duration) (bool, string, error) {
	ok, err := s.rdb.SetNX(ctx, key, jobID, window).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, jobID, nil
	}
	existing, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return false, existing, nil
}

// ReleaseDedup - job 생성 실패 시 마커 반환
func (s *JobStore) ReleaseDedup(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *JobStore) ttlFor(status string) time.Duration {
	if model.IsTerminalStatus(status) {
		return s.completedTTL
	}
	return s.pendingTTL
}

func scoreOf(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func encodeJob(job *model.Job) (map[string]interface{}, error) {
	event, err := json.Marshal(job.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	fields := map[string]interface{}{
		"id":                 job.ID,
		"created_at":         job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"status":             job.Status,
		"event":              string(event),
		"source":             job.Event.Source,
		"severity":           job.Event.Severity,
		"host":               job.Event.Host,
		"model_used":         job.ModelUsed,
		"backend":            job.Backend,
		"processing_time_ms": job.ProcessingTimeMs,
		"ticket_id":          job.TicketID,
		"error":              job.Error,
	}
	if job.CompletedAt != nil {
		fields["completed_at"] = job.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if job.Result != nil {
		result, err := json.Marshal(job.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		fields["result"] = string(result)
	}
	return fields, nil
}

func encodeUpdate(status string, u model.JobUpdate) (map[string]interface{}, error) {
	fields := map[string]interface{}{"status": status}
	if u.CompletedAt != nil {
		fields["completed_at"] = u.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if u.Result != nil {
		result, err := json.Marshal(u.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		fields["result"] = string(result)
	}
	if u.ModelUsed != nil {
		fields["model_used"] = *u.ModelUsed
	}
	if u.Backend != nil {
		fields["backend"] = *u.Backend
	}
	if u.ProcessingTimeMs != nil {
		fields["processing_time_ms"] = *u.ProcessingTimeMs
	}
	if u.TicketID != nil {
		fields["ticket_id"] = *u.TicketID
	}
	if u.Error != nil {
		fields["error"] = *u.Error
	}
	return fields, nil
}

func decodeJob(id string, fields map[string]string) (*model.Job, error) {
	job := &model.Job{
		ID:        id,
		Status:    fields["status"],
		ModelUsed: fields["model_used"],
		Backend:   fields["backend"],
		TicketID:  fields["ticket_id"],
		Error:     fields["error"],
	}

	if v := fields["created_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at for job %s: %w", id, err)
		}
		job.CreatedAt = t
	}
	if v := fields["completed_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at for job %s: %w", id, err)
		}
		job.CompletedAt = &t
	}
	if v := fields["processing_time_ms"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.ProcessingTimeMs = n
		}
	}
	if v := fields["event"]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.Event); err != nil {
			return nil, fmt.Errorf("invalid event for job %s: %w", id, err)
		}
	}
	if v := fields["result"]; v != "" {
		var result model.AnalysisResult
		if err := json.Unmarshal([]byte(v), &result); err != nil {
			return nil, fmt.Errorf("invalid result for job %s: %w", id, err)
		}
		job.Result = &result
	}
	return job, nil
}
