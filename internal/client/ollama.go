// Ollama HTTP API 클라이언트
//
// 환경변수:
//   - OLLAMA_HOST: Ollama 서버 URL (예: http://ollama:11434)
//   - PRIMARY_MODEL / EMBEDDING_MODEL: 사용할 모델 이름
//
// completion(secondary backend)과 embedding backend 둘 다 지원

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaClient 구조체 정의
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaClient 객체 생성
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: 0.1,
		maxTokens:   2048,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// WithSampling - temperature / num_predict 설정
func (c *OllamaClient) WithSampling(temperature float64, maxTokens int) *OllamaClient {
	c.temperature = temperature
	if maxTokens > 0 {
		c.maxTokens = maxTokens
	}
	return c
}

func (c *OllamaClient) Name() string {
	return "ollama"
}

func (c *OllamaClient) Model() string {
	return c.model
}

// POST /api/generate (stream=false)
func (c *OllamaClient) Generate(ctx context.Context, prompt, system string) (string, string, error) {
	req := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Stream: false,
		Options: map[string]any{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}

	var resp ollamaGenerateResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", c.model, fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Response, c.model, nil
}

// POST /api/embed
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaEmbedRequest{Model: c.model, Input: text}

	var resp ollamaEmbedResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/api/embed", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, nil
	}
	return resp.Embeddings[0], nil
}

// GET /api/tags - 헬스체크용
func (c *OllamaClient) Ping(ctx context.Context) error {
	return doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/api/tags", nil, nil, nil)
}
