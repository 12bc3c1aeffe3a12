// 설정값으로 collaborator 구성
// 선택 collaborator는 사용할 수 없으면 nil (해당 단계 skipped)

package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/kube-rca/rca-worker/internal/client"
	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/db"
)

const defaultGeminiEmbeddingModel = "text-embedding-004"

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := db.NewRedisClient(cfg)
	if err := db.ConnectRedis(ctx, rdb, cfg); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// openKnowledgeStore - pgvector 연결 + 스키마 보장
// 실패하면 nil 반환 (RAG / 감사 로그 없이 동작)
func openKnowledgeStore(ctx context.Context, cfg config.Config) *db.Postgres {
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Printf("[Main] pgvector unavailable, continuing without knowledge index: %v", err)
		return nil
	}
	pg := &db.Postgres{Pool: pool}
	if err := pg.EnsureKnowledgeSchema(ctx, cfg.RAG.EmbeddingDimensions); err != nil {
		log.Printf("[Main] knowledge schema setup failed, continuing without knowledge index: %v", err)
		pool.Close()
		return nil
	}
	if err := pg.EnsureAnalysisLogSchema(ctx); err != nil {
		log.Printf("[Main] analysis log schema setup failed, continuing without knowledge index: %v", err)
		pool.Close()
		return nil
	}
	return pg
}

func newCompletionBackend(ctx context.Context, name string, cfg config.LLMConfig) (client.CompletionBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "litellm":
		return client.NewLiteLLMClient(cfg.LiteLLMHost, cfg.LiteLLMKey, cfg.Model, cfg.Timeout).
			WithSampling(cfg.Temperature, cfg.MaxTokens), nil
	case "ollama":
		return client.NewOllamaClient(cfg.OllamaHost, cfg.Model, cfg.Timeout).
			WithSampling(cfg.Temperature, cfg.MaxTokens), nil
	case "gemini":
		gc, err := client.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return gc.WithSampling(cfg.Temperature, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown completion backend %q", name)
	}
}

func newCompletionProvider(ctx context.Context, cfg config.LLMConfig) (*client.CompletionProvider, error) {
	primary, err := newCompletionBackend(ctx, cfg.Primary, cfg)
	if err != nil {
		return nil, fmt.Errorf("primary backend: %w", err)
	}
	if primary == nil {
		return nil, fmt.Errorf("primary backend: %w", client.ErrNotConfigured)
	}

	secondary, err := newCompletionBackend(ctx, cfg.Secondary, cfg)
	if err != nil {
		log.Printf("[Main] secondary backend disabled (backend=%s): %v", cfg.Secondary, err)
	}
	if secondary != nil {
		log.Printf("[Main] completion backends (primary=%s, secondary=%s)", cfg.Primary, cfg.Secondary)
	} else {
		log.Printf("[Main] completion backends (primary=%s, secondary=none)", cfg.Primary)
	}
	return client.NewCompletionProvider(primary, secondary), nil
}

func newEmbeddingProvider(ctx context.Context, cfg config.Config) (*client.EmbeddingProvider, error) {
	var backend client.EmbeddingBackend
	switch strings.ToLower(cfg.Embedding.Backend) {
	case "", "ollama":
		backend = client.NewOllamaClient(cfg.Embedding.OllamaHost, cfg.Embedding.Model, cfg.Embedding.Timeout)
	case "gemini":
		model := cfg.Embedding.Model
		if model == "" || model == "nomic-embed-text" {
			model = defaultGeminiEmbeddingModel
		}
		gc, err := client.NewGeminiClient(ctx, cfg.Embedding.APIKey, model, cfg.Embedding.Timeout)
		if err != nil {
			return nil, err
		}
		backend = gc
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Embedding.Backend)
	}
	return client.NewEmbeddingProvider(backend, cfg.RAG.EmbeddingDimensions), nil
}
