// ntfy 푸시 알림 클라이언트
//
// 환경변수:
//   - NTFY_URL: ntfy 서버 URL (예: http://ntfy:80)
//   - NTFY_TOPIC: 토픽 이름 (기본 mcp-alerts)
//   - NTFY_MAX_MSG_LEN: 본문 최대 길이 (기본 4000)

package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/retry"
)

const (
	ntfyMaxTitleLength = 200
	ntfyDefaultTag     = "robot"
)

// NtfyClient 구조체 정의
type NtfyClient struct {
	baseURL    string
	topic      string
	maxLength  int
	httpClient *http.Client
	policy     retry.Policy
}

// NtfyClient 객체 생성
func NewNtfyClient(cfg config.NtfyConfig) *NtfyClient {
	maxLength := cfg.MaxMessageLength
	if maxLength <= 0 {
		maxLength = 4000
	}
	return &NtfyClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		topic:      strings.Trim(cfg.Topic, "/"),
		maxLength:  maxLength,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy:     retry.Fixed(2, 2*time.Second),
	}
}

// WithPolicy - 테스트용 재시도 정책 교체
func (c *NtfyClient) WithPolicy(policy retry.Policy) *NtfyClient {
	c.policy = policy
	return c
}

func (c *NtfyClient) IsConfigured() bool {
	return c.baseURL != "" && c.topic != ""
}

func (c *NtfyClient) Name() string {
	return "ntfy"
}

// Notify - POST {url}/{topic}
// 헤더: Title, Priority, Tags, Click / 본문: plain text
func (c *NtfyClient) Notify(ctx context.Context, n model.Notification) error {
	if !c.IsConfigured() {
		return fmt.Errorf("ntfy url or topic: %w", ErrNotConfigured)
	}

	title := model.Truncate(headerSafe(n.Title), ntfyMaxTitleLength)
	body := model.Truncate(n.Message, c.maxLength)
	priority := n.Priority
	if priority < 1 || priority > 5 {
		priority = 3
	}
	tags := ntfyDefaultTag
	if len(n.Tags) > 0 {
		tags = strings.Join(n.Tags, ",")
	}

	return c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.topic, strings.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Title", title)
		req.Header.Set("Priority", strconv.Itoa(priority))
		req.Header.Set("Tags", tags)
		if n.Click != "" {
			req.Header.Set("Click", n.Click)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return classify(&HTTPStatusError{StatusCode: resp.StatusCode, Body: truncateBody(respBody)})
		}
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		log.Printf("[Ntfy] send failed (attempt=%d, retry_in=%s): %v", attempt, wait, err)
	})
}

// 헤더 값에는 개행이 들어갈 수 없음
func headerSafe(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
