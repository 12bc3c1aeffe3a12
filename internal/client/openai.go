// LiteLLM 프록시(OpenAI 호환 /chat/completions) 클라이언트
//
// 환경변수:
//   - LITELLM_HOST: LiteLLM URL (예: http://litellm:4000)
//   - LITELLM_API_KEY: (선택) Bearer 토큰

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LiteLLMClient 구조체 정의
type LiteLLMClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LiteLLMClient 객체 생성
func NewLiteLLMClient(baseURL, apiKey, model string, timeout time.Duration) *LiteLLMClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LiteLLMClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: 0.1,
		maxTokens:   2048,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *LiteLLMClient) WithSampling(temperature float64, maxTokens int) *LiteLLMClient {
	c.temperature = temperature
	if maxTokens > 0 {
		c.maxTokens = maxTokens
	}
	return c
}

func (c *LiteLLMClient) Name() string {
	return "litellm"
}

// POST /chat/completions
func (c *LiteLLMClient) Generate(ctx context.Context, prompt, system string) (string, string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	var resp chatCompletionResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", c.model, fmt.Errorf("litellm chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", c.model, fmt.Errorf("litellm chat completion: empty choices")
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return resp.Choices[0].Message.Content, model, nil
}
