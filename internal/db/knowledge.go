package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/pgvector/pgvector-go"
)

// EnsureKnowledgeSchema - vector extension / embeddings 테이블 생성
// dimensions는 embedding 모델 출력 차원과 같아야 함
func (db *Postgres) EnsureKnowledgeSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		dimensions = 768
	}
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS embeddings (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			content_hash TEXT,
			embedding vector(%d) NOT NULL,
			source_type TEXT NOT NULL DEFAULT 'analysis',
			source_id TEXT,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`, dimensions),
		`CREATE UNIQUE INDEX IF NOT EXISTS embeddings_content_hash_source_type_uidx
			ON embeddings(content_hash, source_type) WHERE content_hash IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS embeddings_source_type_idx ON embeddings(source_type)`,
		`CREATE INDEX IF NOT EXISTS embeddings_created_at_idx ON embeddings(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// ContentHash - content의 sha256 hex
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func knowledgeInsertQuery() string {
	return `
		INSERT INTO embeddings (content, content_hash, embedding, source_type, source_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_hash, source_type) WHERE content_hash IS NOT NULL
		DO NOTHING
		RETURNING id
	`
}

// InsertKnowledge - 지식 항목 저장
// (content_hash, source_type) 중복이면 (nil, nil) 반환
func (db *Postgres) InsertKnowledge(ctx context.Context, entry model.KnowledgeEntry) (*int64, error) {
	if len(entry.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	if entry.ContentHash == "" {
		entry.ContentHash = ContentHash(entry.Content)
	}
	if entry.SourceType == "" {
		entry.SourceType = "analysis"
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var sourceID *string
	if entry.SourceID != "" {
		sourceID = &entry.SourceID
	}

	var id int64
	err = db.Pool.QueryRow(ctx, knowledgeInsertQuery(),
		entry.Content,
		entry.ContentHash,
		pgvector.NewVector(entry.Embedding),
		entry.SourceType,
		sourceID,
		metadataJSON,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// SearchSimilar - 코사인 거리 기준 상위 limit건 중 similarity >= threshold만 반환
// similarity = 1 - (embedding <=> query)
func (db *Postgres) SearchSimilar(ctx context.Context, vector []float32, limit int, threshold float64) ([]model.SearchResult, error) {
	if len(vector) == 0 {
		return []model.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, content, source_type, COALESCE(source_id, ''), metadata,
		       1 - (embedding <=> $1) AS similarity
		FROM embeddings
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := db.Pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.SearchResult, 0, limit)
	for rows.Next() {
		var (
			r            model.SearchResult
			metadataJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &r.SourceType, &r.SourceID, &metadataJSON, &r.Similarity); err != nil {
			return nil, err
		}
		if r.Similarity < threshold {
			continue
		}
		r.Metadata = map[string]any{}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &r.Metadata)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
