package db

import (
	"context"
	"encoding/json"

	"github.com/kube-rca/rca-worker/internal/model"
)

// EnsureAnalysisLogSchema - analysis_log 감사 테이블 생성
func (db *Postgres) EnsureAnalysisLogSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS analysis_log (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL DEFAULT '',
			event_source TEXT NOT NULL,
			event_data JSONB NOT NULL DEFAULT '{}',
			analysis_result JSONB NOT NULL DEFAULT '{}',
			confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			ticket_id TEXT,
			model_used TEXT NOT NULL DEFAULT '',
			processing_time_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS analysis_log_job_id_idx ON analysis_log(job_id)`,
		`CREATE INDEX IF NOT EXISTS analysis_log_created_at_idx ON analysis_log(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// InsertAnalysisLog - 분석 감사 레코드 저장
func (db *Postgres) InsertAnalysisLog(ctx context.Context, entry model.AnalysisLogEntry) (int64, error) {
	eventData := entry.EventData
	if len(eventData) == 0 {
		eventData = json.RawMessage("{}")
	}
	result := entry.AnalysisResult
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}

	query := `
		INSERT INTO analysis_log (
			job_id, event_source, event_data, analysis_result,
			confidence_score, ticket_id, model_used, processing_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := db.Pool.QueryRow(ctx, query,
		entry.JobID,
		entry.EventSource,
		eventData,
		result,
		entry.ConfidenceScore,
		entry.TicketID,
		entry.ModelUsed,
		entry.ProcessingTimeMs,
	).Scan(&id)
	return id, err
}

// ListAnalysisLogs - 최근 감사 레코드 조회 (job_id 지정 시 해당 job만)
func (db *Postgres) ListAnalysisLogs(ctx context.Context, jobID string, limit int) ([]model.AnalysisLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, job_id, event_source, event_data, analysis_result,
		       confidence_score, ticket_id, model_used, processing_time_ms, created_at
		FROM analysis_log
		WHERE ($1 = '' OR job_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := db.Pool.Query(ctx, query, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.AnalysisLogEntry, 0)
	for rows.Next() {
		var e model.AnalysisLogEntry
		if err := rows.Scan(
			&e.ID, &e.JobID, &e.EventSource, &e.EventData, &e.AnalysisResult,
			&e.ConfidenceScore, &e.TicketID, &e.ModelUsed, &e.ProcessingTimeMs, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
