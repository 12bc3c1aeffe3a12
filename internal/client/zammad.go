// Zammad 티켓 생성 클라이언트
//
// 환경변수:
//   - ZAMMAD_URL: Zammad URL (예: http://zammad-rails:3000)
//   - ZAMMAD_TOKEN: API 토큰 (없으면 티켓 생성 건너뜀)
//   - ZAMMAD_GROUP: 티켓 그룹 (기본 Users)

package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/retry"
)

// TicketRequest - 티켓 생성 입력
type TicketRequest struct {
	Title      string
	Body       string // HTML
	PriorityID int
	Tags       []string
}

type zammadArticle struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Type        string `json:"type"`
	Internal    bool   `json:"internal"`
	ContentType string `json:"content_type"`
}

type zammadTicketRequest struct {
	Title      string        `json:"title"`
	Group      string        `json:"group"`
	Article    zammadArticle `json:"article"`
	PriorityID int           `json:"priority_id"`
	Tags       string        `json:"tags,omitempty"`
}

type zammadTicketResponse struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

// ZammadClient 구조체 정의
type ZammadClient struct {
	baseURL    string
	token      string
	group      string
	httpClient *http.Client
	policy     retry.Policy
}

// ZammadClient 객체 생성
func NewZammadClient(cfg config.ZammadConfig) *ZammadClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	group := cfg.Group
	if group == "" {
		group = "Users"
	}
	return &ZammadClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		group:      group,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.Exponential(3, 2*time.Second),
	}
}

// WithPolicy - 테스트용 재시도 정책 교체
func (c *ZammadClient) WithPolicy(policy retry.Policy) *ZammadClient {
	c.policy = policy
	return c
}

func (c *ZammadClient) IsConfigured() bool {
	return c.baseURL != "" && c.token != ""
}

// TicketURL - 티켓 상세 페이지 링크
func (c *ZammadClient) TicketURL(ticketID string) string {
	if c.baseURL == "" || ticketID == "" {
		return ""
	}
	return c.baseURL + "/#ticket/zoom/" + ticketID
}

// CreateTicket - POST /api/v1/tickets
// 타임아웃만 재시도 (최대 3회, 2s/4s), HTTP 상태 에러는 즉시 실패
func (c *ZammadClient) CreateTicket(ctx context.Context, t TicketRequest) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("zammad token: %w", ErrNotConfigured)
	}

	payload := zammadTicketRequest{
		Title: t.Title,
		Group: c.group,
		Article: zammadArticle{
			Subject:     t.Title,
			Body:        t.Body,
			Type:        "note",
			Internal:    false,
			ContentType: "text/html",
		},
		PriorityID: t.PriorityID,
		Tags:       strings.Join(t.Tags, ","),
	}
	headers := map[string]string{"Authorization": "Token token=" + c.token}

	var resp zammadTicketResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/api/v1/tickets", headers, payload, &resp)
		if err != nil && !isTimeout(err) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		log.Printf("[Zammad] timeout (attempt=%d, retry_in=%s): %v", attempt, wait, err)
	})
	if err != nil {
		return "", fmt.Errorf("zammad create ticket: %w", err)
	}

	ticketID := strconv.FormatInt(resp.ID, 10)
	log.Printf("[Zammad] ticket created (ticket_id=%s, number=%s)", ticketID, resp.Number)
	return ticketID, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
