// 지식(RAG) 인덱스 비즈니스 로직
//
//   - Embed: 텍스트 1건 embedding 후 저장
//   - Search: 질의 텍스트와 유사한 항목 조회
//   - Ingest: 긴 문서를 chunk로 나눠 각각 저장
//   - Retrieve / Remember: 파이프라인에서 쓰는 검색 / 저장

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/db"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/rag"
)

var (
	// ErrInvalidRequest - 필수 입력 누락 / 잘못된 파라미터
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmbeddingUnavailable - embedding backend 재시도 소진
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

const maxSearchTopK = 50

type KnowledgeRepo interface {
	InsertKnowledge(ctx context.Context, entry model.KnowledgeEntry) (*int64, error)
	SearchSimilar(ctx context.Context, vector []float32, limit int, threshold float64) ([]model.SearchResult, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

type KnowledgeService struct {
	repo     KnowledgeRepo
	embedder Embedder
	cfg      config.RAGConfig
}

func NewKnowledgeService(repo KnowledgeRepo, embedder Embedder, cfg config.RAGConfig) *KnowledgeService {
	cfg.Sanitize()
	return &KnowledgeService{repo: repo, embedder: embedder, cfg: cfg}
}

func (s *KnowledgeService) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrEmbeddingUnavailable
	}
	return vec, nil
}

// Embed - 텍스트 1건 저장
// 같은 (content_hash, source_type)이 이미 있으면 Stored=false
func (s *KnowledgeService) Embed(ctx context.Context, req model.EmbeddingRequest) (*model.EmbeddingResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	vec, err := s.embed(ctx, req.Text)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.InsertKnowledge(ctx, model.KnowledgeEntry{
		Content:     req.Text,
		ContentHash: db.ContentHash(req.Text),
		Embedding:   vec,
		SourceType:  orDefault(req.SourceType, "manual"),
		SourceID:    req.SourceID,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store embedding: %w", err)
	}

	return &model.EmbeddingResponse{
		Status:      "ok",
		EmbeddingID: id,
		Dimensions:  len(vec),
		Stored:      id != nil,
		Model:       s.embedder.Model(),
	}, nil
}

// Search - topK <= 0 이면 설정값, 최대 50
func (s *KnowledgeService) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.repo.SearchSimilar(ctx, vec, topK, s.cfg.SimilarityThreshold)
}

// Ingest - 문서를 chunk로 나눠 저장
// chunk 하나의 실패는 건너뛰고 계속 진행 (ChunksSkipped에 포함)
func (s *KnowledgeService) Ingest(ctx context.Context, req model.IngestRequest) (*model.IngestResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.cfg.ChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap < 0 || (overlap > 0 && overlap >= chunkSize) {
		return nil, fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", ErrInvalidRequest)
	}
	// 미지정이면 설정값, 작은 chunk_size에는 chunk의 1/10로 줄임
	if overlap == 0 {
		overlap = s.cfg.ChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 10
		}
	}

	sourceType := orDefault(req.SourceType, "document")
	resp := &model.IngestResponse{Status: "ok", SourceType: sourceType, SourceID: req.SourceID}

	chunks := rag.Chunk(req.Text, chunkSize, overlap)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := s.embed(ctx, chunk)
		if err != nil {
			log.Printf("[Knowledge] chunk skipped, embedding failed (source_id=%s, chunk=%d): %v", req.SourceID, i, err)
			resp.ChunksSkipped++
			continue
		}

		metadata := make(map[string]any, len(req.Metadata)+2)
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		metadata["chunk_index"] = i
		metadata["chunk_total"] = len(chunks)

		id, err := s.repo.InsertKnowledge(ctx, model.KnowledgeEntry{
			Content:     chunk,
			ContentHash: db.ContentHash(chunk),
			Embedding:   vec,
			SourceType:  sourceType,
			SourceID:    req.SourceID,
			Metadata:    metadata,
		})
		if err != nil {
			log.Printf("[Knowledge] chunk skipped, insert failed (source_id=%s, chunk=%d): %v", req.SourceID, i, err)
			resp.ChunksSkipped++
			continue
		}
		if id == nil {
			resp.ChunksSkipped++
			continue
		}
		resp.ChunksCreated++
	}

	log.Printf("[Knowledge] ingest done (source_type=%s, source_id=%s, created=%d, skipped=%d)",
		sourceType, req.SourceID, resp.ChunksCreated, resp.ChunksSkipped)
	return resp, nil
}

// Retrieve - 파이프라인 RAG 단계
// embedding이 비어 있으면 ErrEmbeddingUnavailable
func (s *KnowledgeService) Retrieve(ctx context.Context, text string) ([]model.SearchResult, error) {
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	results, err := s.repo.SearchSimilar(ctx, vec, s.cfg.TopK, s.cfg.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	if len(results) > s.cfg.TopK {
		results = results[:s.cfg.TopK]
	}
	return results, nil
}

// Remember - 분석 결과 요약을 지식으로 저장 (source_type=analysis)
// 반환: 새로 저장되었는지 여부
func (s *KnowledgeService) Remember(ctx context.Context, content, sourceID string, metadata map[string]any) (bool, error) {
	vec, err := s.embed(ctx, content)
	if err != nil {
		return false, err
	}
	id, err := s.repo.InsertKnowledge(ctx, model.KnowledgeEntry{
		Content:     content,
		ContentHash: db.ContentHash(content),
		Embedding:   vec,
		SourceType:  "analysis",
		SourceID:    sourceID,
		Metadata:    metadata,
	})
	if err != nil {
		return false, err
	}
	return id != nil, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
