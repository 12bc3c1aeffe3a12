package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiClient - Google GenAI(Gemini) backend
// completion / embedding 모두 동일 client 사용
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGeminiClient - timeout은 요청 1회 상한 (0이면 SDK 기본값)
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY: %w", ErrNotConfigured)
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if timeout > 0 {
		cc.HTTPOptions = genai.HTTPOptions{Timeout: &timeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: model, temperature: 0.1, maxTokens: 2048}, nil
}

func (c *GeminiClient) WithSampling(temperature float64, maxTokens int) *GeminiClient {
	c.temperature = float32(temperature)
	if maxTokens > 0 {
		c.maxTokens = int32(maxTokens)
	}
	return c
}

func (c *GeminiClient) Name() string {
	return "gemini"
}

func (c *GeminiClient) Model() string {
	return c.model
}

func (c *GeminiClient) Generate(ctx context.Context, prompt, system string) (string, string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: c.maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", c.model, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return "", c.model, fmt.Errorf("gemini generate: empty response")
	}
	model := c.model
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	return resp.Text(), model, nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	res, err := c.client.Models.EmbedContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil {
		return nil, nil
	}
	return res.Embeddings[0].Values, nil
}
