// 범용 outbound 웹훅 알림
//
// 환경변수:
//   - NOTIFY_WEBHOOK_URLS: 전송 대상 URL 목록 (콤마 구분)
//   - NOTIFY_WEBHOOK_HEADERS: 추가 헤더 (Key=Value,...)
//   - NOTIFY_WEBHOOK_BODY: (선택) 본문 템플릿, {{title}} 등 placeholder 치환
//
// URL 하나의 실패가 나머지 전송을 막지 않음

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
)

type webhookPayload struct {
	JobID    string   `json:"job_id"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
	Severity string   `json:"severity"`
	Impact   string   `json:"impact"`
	TicketID string   `json:"ticket_id,omitempty"`
	Click    string   `json:"click,omitempty"`
}

type WebhookNotifier struct {
	urls         []string
	headers      map[string]string
	bodyTemplate string
	httpClient   *http.Client
}

func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		urls:         cfg.URLs,
		headers:      cfg.Headers,
		bodyTemplate: cfg.BodyTemplate,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *WebhookNotifier) IsConfigured() bool {
	return len(c.urls) > 0
}

func (c *WebhookNotifier) Name() string {
	return "webhook"
}

func (c *WebhookNotifier) Notify(ctx context.Context, n model.Notification) error {
	body, err := c.render(n)
	if err != nil {
		return err
	}

	var errs []error
	for _, url := range c.urls {
		if err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.headers, body, nil); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		log.Printf("[Webhook] delivered (url=%s, job_id=%s)", url, n.JobID)
	}
	return errors.Join(errs...)
}

// render - 템플릿이 없으면 기본 JSON
// placeholder 값은 JSON 문자열 escape 후 치환
func (c *WebhookNotifier) render(n model.Notification) (json.RawMessage, error) {
	if strings.TrimSpace(c.bodyTemplate) == "" {
		return json.Marshal(webhookPayload{
			JobID:    n.JobID,
			Title:    n.Title,
			Message:  n.Message,
			Priority: n.Priority,
			Tags:     n.Tags,
			Severity: n.Severity,
			Impact:   n.Impact,
			TicketID: n.TicketID,
			Click:    n.Click,
		})
	}

	replacer := strings.NewReplacer(
		"{{job_id}}", jsonEscape(n.JobID),
		"{{title}}", jsonEscape(n.Title),
		"{{message}}", jsonEscape(n.Message),
		"{{priority}}", strconv.Itoa(n.Priority),
		"{{severity}}", jsonEscape(n.Severity),
		"{{impact}}", jsonEscape(n.Impact),
		"{{ticket_id}}", jsonEscape(n.TicketID),
		"{{click}}", jsonEscape(n.Click),
	)
	body := replacer.Replace(c.bodyTemplate)
	if !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("webhook body template does not render valid JSON")
	}
	return json.RawMessage(body), nil
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}
