package client

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/kube-rca/rca-worker/internal/retry"
)

// EmbeddingBackend - 텍스트 1건을 벡터로 변환하는 backend (ollama, gemini)
type EmbeddingBackend interface {
	Name() string
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingProvider - backend 호출 + 재시도
// 재시도 소진 시 빈 벡터를 반환하고 호출자가 RAG 단계를 건너뜀
type EmbeddingProvider struct {
	backend    EmbeddingBackend
	dimensions int
	policy     retry.Policy
}

func NewEmbeddingProvider(backend EmbeddingBackend, dimensions int) *EmbeddingProvider {
	return &EmbeddingProvider{
		backend:    backend,
		dimensions: dimensions,
		policy:     retry.Exponential(3, 2*time.Second),
	}
}

// WithPolicy - 테스트용 재시도 정책 교체
func (p *EmbeddingProvider) WithPolicy(policy retry.Policy) *EmbeddingProvider {
	p.policy = policy
	return p
}

func (p *EmbeddingProvider) Model() string {
	return p.backend.Model()
}

func (p *EmbeddingProvider) Dimensions() int {
	return p.dimensions
}

// Embed - 재시도 소진 시 (빈 slice, nil) 반환
// ctx가 취소된 경우에만 에러 반환
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		v, err := p.backend.Embed(ctx, text)
		if err != nil {
			return classify(err)
		}
		vec = v
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		log.Printf("[Embedding] attempt failed (backend=%s, attempt=%d, retry_in=%s): %v", p.backend.Name(), attempt, wait, err)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Printf("[Embedding] giving up (backend=%s): %v", p.backend.Name(), err)
		return []float32{}, nil
	}
	if len(vec) == 0 {
		log.Printf("[Embedding] empty vector returned (backend=%s, model=%s)", p.backend.Name(), p.backend.Model())
		return []float32{}, nil
	}
	if p.dimensions > 0 && len(vec) != p.dimensions {
		log.Printf("[Embedding] dimension mismatch (model=%s, got=%d, want=%d)", p.backend.Model(), len(vec), p.dimensions)
	}
	return vec, nil
}
