package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RAG_CONFIG_FILE", "")
	t.Setenv("DEDUP_WINDOW", "")
	t.Setenv("REDIS_QUEUE_ADDR", "")
	t.Setenv("REDIS_QUEUE_HOST", "")
	t.Setenv("REDIS_QUEUE_PORT", "")
	t.Setenv("EVENT_TIMEOUT", "")

	cfg := Load()
	if cfg.Jobs.DedupWindow != 900*time.Second {
		t.Fatalf("dedup window = %v", cfg.Jobs.DedupWindow)
	}
	if cfg.Jobs.PopTimeout != 5*time.Second {
		t.Fatalf("pop timeout = %v", cfg.Jobs.PopTimeout)
	}
	if cfg.Redis.Addr != "redis-queue:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.RAG.TopK != 5 || cfg.RAG.SimilarityThreshold != 0.7 {
		t.Fatalf("unexpected rag defaults: %+v", cfg.RAG)
	}
	if cfg.Events.Timeout != 10*time.Second {
		t.Fatalf("event timeout = %v", cfg.Events.Timeout)
	}
}

func TestLoadInvalidIntegerFallsBack(t *testing.T) {
	t.Setenv("RAG_TOP_K", "many")
	cfg := Load()
	if cfg.RAG.TopK != 5 {
		t.Fatalf("top_k = %d, want 5", cfg.RAG.TopK)
	}
}

func TestRAGConfigMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag-config.yml")
	body := "rag:\n  top_k: 3\n  similarity_threshold: 0.8\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	r := RAGConfig{ChunkSize: 512, ChunkOverlap: 50, TopK: 5, SimilarityThreshold: 0.7}
	if err := r.MergeFile(path); err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	if r.TopK != 3 || r.SimilarityThreshold != 0.8 {
		t.Fatalf("override not applied: %+v", r)
	}
	if r.ChunkSize != 512 || r.ChunkOverlap != 50 {
		t.Fatalf("unrelated fields changed: %+v", r)
	}
}

func TestRAGConfigSanitize(t *testing.T) {
	r := RAGConfig{ChunkSize: 100, ChunkOverlap: 100, TopK: 0, SimilarityThreshold: 2}
	r.Sanitize()
	if r.ChunkOverlap != 0 || r.TopK != 5 || r.SimilarityThreshold != 0.7 {
		t.Fatalf("sanitize failed: %+v", r)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("splitList = %v", got)
	}
}

func TestSplitPairs(t *testing.T) {
	got := splitPairs("X-Api-Key = abc, broken, =novalue,Authorization=Bearer t=1")
	if len(got) != 2 || got["X-Api-Key"] != "abc" || got["Authorization"] != "Bearer t=1" {
		t.Fatalf("splitPairs = %v", got)
	}
}
