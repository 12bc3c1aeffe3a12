// 환경변수 기반 설정 로딩
//
// 로컬 개발 시에는 main에서 godotenv로 .env를 먼저 읽음
// RAG 관련 값은 RAG_CONFIG_FILE(YAML)로 덮어쓸 수 있음

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	LLM        LLMConfig
	Embedding  EmbeddingConfig
	RAG        RAGConfig
	Jobs       JobsConfig
	Zammad     ZammadConfig
	Ntfy       NtfyConfig
	Slack      SlackConfig
	Webhook    WebhookConfig
	Events     EventsConfig
	Auth       AuthConfig
	PromptFile string
}

type ServerConfig struct {
	Addr               string
	CORSAllowedOrigins []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// 시작 시 연결 재시도 (횟수, 간격)
	MaxConnectRetries int
	ReconnectDelay    time.Duration
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
}

// LLMConfig - completion backend 설정
// Primary/Secondary: litellm | ollama | gemini
type LLMConfig struct {
	Primary      string
	Secondary    string
	LiteLLMHost  string
	LiteLLMKey   string
	OllamaHost   string
	Model        string
	GeminiAPIKey string
	GeminiModel  string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// EmbeddingConfig - embedding backend 설정 (ollama | gemini)
type EmbeddingConfig struct {
	Backend    string
	OllamaHost string
	Model      string
	APIKey     string
	Timeout    time.Duration
}

type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions"`
}

type JobsConfig struct {
	PendingTTL   time.Duration
	CompletedTTL time.Duration
	DedupWindow  time.Duration
	PopTimeout   time.Duration
}

type ZammadConfig struct {
	URL     string
	Token   string
	Group   string
	Timeout time.Duration
}

type NtfyConfig struct {
	URL              string
	Topic            string
	MaxMessageLength int
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

// WebhookConfig - 범용 outbound 웹훅 알림
// BodyTemplate이 비어 있으면 기본 JSON 본문
type WebhookConfig struct {
	URLs         []string
	Headers      map[string]string
	BodyTemplate string
	Timeout      time.Duration
}

// EventsConfig - Timeout은 이벤트 1건 발행(브로커 응답 대기 포함) 상한
type EventsConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

type AuthConfig struct {
	GatewaySecret string
}

func Load() Config {
	cfg := Config{
		Server: ServerConfig{
			Addr:               getenv("LISTEN_ADDR", ":8080"),
			CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		Redis: RedisConfig{
			Addr:              getenv("REDIS_QUEUE_ADDR", hostPort("REDIS_QUEUE_HOST", "redis-queue", "REDIS_QUEUE_PORT", "6379")),
			Password:          os.Getenv("REDIS_QUEUE_PASSWORD"),
			DB:                getenvInt("REDIS_QUEUE_DB", 0),
			MaxConnectRetries: getenvInt("REDIS_MAX_RETRIES", 30),
			ReconnectDelay:    getenvSeconds("REDIS_RECONNECT_DELAY", 2),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGVECTOR_HOST", "pgvector"),
			Port:        getenv("PGVECTOR_PORT", "5432"),
			User:        getenv("PGVECTOR_USER", "pgvector"),
			Password:    os.Getenv("PGVECTOR_PASSWORD"),
			Database:    getenv("PGVECTOR_DB", "mcp_vectors"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
			MaxConns:    int32(getenvInt("PGVECTOR_MAX_CONNS", 5)),
		},
		LLM: LLMConfig{
			Primary:      getenv("LLM_PRIMARY_BACKEND", "litellm"),
			Secondary:    getenv("LLM_SECONDARY_BACKEND", "ollama"),
			LiteLLMHost:  getenv("LITELLM_HOST", "http://litellm:4000"),
			LiteLLMKey:   os.Getenv("LITELLM_API_KEY"),
			OllamaHost:   getenv("OLLAMA_HOST", "http://ollama:11434"),
			Model:        getenv("PRIMARY_MODEL", "mistral:7b"),
			GeminiAPIKey: os.Getenv("AI_API_KEY"),
			GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature:  getenvFloat("LLM_TEMPERATURE", 0.1),
			MaxTokens:    getenvInt("LLM_MAX_TOKENS", 2048),
			Timeout:      getenvSeconds("LLM_TIMEOUT", 120),
		},
		Embedding: EmbeddingConfig{
			Backend:    getenv("EMBEDDING_BACKEND", "ollama"),
			OllamaHost: getenv("OLLAMA_HOST", "http://ollama:11434"),
			Model:      getenv("EMBEDDING_MODEL", "nomic-embed-text"),
			APIKey:     os.Getenv("AI_API_KEY"),
			Timeout:    getenvSeconds("EMBEDDING_TIMEOUT", 30),
		},
		RAG: RAGConfig{
			ChunkSize:           getenvInt("RAG_CHUNK_SIZE", 512),
			ChunkOverlap:        getenvInt("RAG_CHUNK_OVERLAP", 50),
			TopK:                getenvInt("RAG_TOP_K", 5),
			SimilarityThreshold: getenvFloat("RAG_SIMILARITY_THRESHOLD", 0.7),
			EmbeddingDimensions: getenvInt("EMBEDDING_DIMENSIONS", 768),
		},
		Jobs: JobsConfig{
			PendingTTL:   getenvSeconds("JOB_PENDING_TTL", 3600),
			CompletedTTL: getenvSeconds("JOB_COMPLETED_TTL", 7*24*3600),
			DedupWindow:  getenvSeconds("DEDUP_WINDOW", 900),
			PopTimeout:   getenvSeconds("QUEUE_POP_TIMEOUT", 5),
		},
		Zammad: ZammadConfig{
			URL:     getenv("ZAMMAD_URL", "http://zammad-rails:3000"),
			Token:   os.Getenv("ZAMMAD_TOKEN"),
			Group:   getenv("ZAMMAD_GROUP", "Users"),
			Timeout: getenvSeconds("ZAMMAD_TIMEOUT", 15),
		},
		Ntfy: NtfyConfig{
			URL:              getenv("NTFY_URL", "http://ntfy:80"),
			Topic:            getenv("NTFY_TOPIC", "mcp-alerts"),
			MaxMessageLength: getenvInt("NTFY_MAX_MSG_LEN", 4000),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Webhook: WebhookConfig{
			URLs:         splitList(os.Getenv("NOTIFY_WEBHOOK_URLS")),
			Headers:      splitPairs(os.Getenv("NOTIFY_WEBHOOK_HEADERS")),
			BodyTemplate: os.Getenv("NOTIFY_WEBHOOK_BODY"),
			Timeout:      getenvSeconds("NOTIFY_WEBHOOK_TIMEOUT", 10),
		},
		Events: EventsConfig{
			Brokers: splitList(os.Getenv("EVENT_BROKERS")),
			Topic:   getenv("EVENT_TOPIC", "mcp.analysis.completed"),
			Timeout: getenvSeconds("EVENT_TIMEOUT", 10),
		},
		Auth: AuthConfig{
			GatewaySecret: os.Getenv("AI_GATEWAY_SECRET"),
		},
		PromptFile: getenv("PROMPT_FILE", "/app/config/prompts/alert-analysis.txt"),
	}

	if path := os.Getenv("RAG_CONFIG_FILE"); path != "" {
		if err := cfg.RAG.MergeFile(path); err != nil {
			log.Printf("[Config] RAG config file ignored (path=%s): %v", path, err)
		}
	}
	cfg.RAG.Sanitize()
	return cfg
}

// MergeFile - YAML 파일에 명시된 값만 덮어씀
func (r *RAGConfig) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file struct {
		RAG *RAGConfig `yaml:"rag"`
	}
	override := *r
	file.RAG = &override
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse rag config: %w", err)
	}
	*r = override
	return nil
}

// Sanitize - chunk overlap/top_k 등 잘못된 조합 보정
func (r *RAGConfig) Sanitize() {
	if r.ChunkSize <= 0 {
		r.ChunkSize = 512
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		r.ChunkOverlap = 0
	}
	if r.TopK <= 0 {
		r.TopK = 5
	}
	if r.SimilarityThreshold < 0 || r.SimilarityThreshold > 1 {
		r.SimilarityThreshold = 0.7
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		log.Printf("[Config] invalid integer for %s=%q, using %d", key, val, fallback)
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		log.Printf("[Config] invalid number for %s=%q, using %v", key, val, fallback)
		return fallback
	}
	return f
}

// 초 단위 정수 환경변수를 Duration으로 변환
func getenvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getenvInt(key, fallback)) * time.Second
}

func hostPort(hostKey, hostFallback, portKey, portFallback string) string {
	return getenv(hostKey, hostFallback) + ":" + getenv(portKey, portFallback)
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitPairs - "Key=Value,Key2=Value2" 형식
func splitPairs(val string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitList(val) {
		k, v, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
