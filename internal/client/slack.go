// 외부 Slack API와 통신하는 클라이언트 정의
//
// 환경변수:
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//   - SLACK_CHANNEL_ID: Slack 채널 ID (C...)
//
// Bot Token을 쓰면 thread_ts를 돌려받으므로
// 같은 source/host 알림의 분석 결과를 한 쓰레드로 이어서 보낼 수 있음

package client

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// SlackClient 구조체 정의
type SlackClient struct {
	botToken   string
	channelID  string
	apiURL     string
	httpClient *http.Client

	// threadMap: thread key(source/host) -> thread_ts
	threadMap sync.Map
}

// SlackMessage(메시지 내용) 구조체 정의
type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
}

// SlackAttachment(메시지 포맷) 구조체 정의
type SlackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField(메시지 포맷 필드) 구조체 정의
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SlackResponse(메시지 응답) 구조체 정의
type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// SlackClient 객체 생성
func NewSlackClient(cfg config.SlackConfig) *SlackClient {
	return &SlackClient{
		botToken:  cfg.BotToken,
		channelID: cfg.ChannelID,
		apiURL:    slackPostMessageURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SlackClient에 Bot Token과 Channel ID가 모두 설정되어 있는지 체크
func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

func (c *SlackClient) Name() string {
	return "slack"
}

// Slack API 호출
func (c *SlackClient) send(ctx context.Context, msg SlackMessage) (*SlackResponse, error) {
	headers := map[string]string{"Authorization": "Bearer " + c.botToken}

	var slackResp SlackResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.apiURL, headers, msg, &slackResp); err != nil {
		return nil, err
	}
	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}
	return &slackResp, nil
}

// Notify - 분석 결과를 채널로 전송
// 같은 ThreadKey로 이전에 보낸 메시지가 있으면 그 쓰레드에 답글로 전송
func (c *SlackClient) Notify(ctx context.Context, n model.Notification) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID: %w", ErrNotConfigured)
	}

	fields := []SlackField{
		{Title: "Severity", Value: n.Severity, Short: true},
		{Title: "Impact", Value: n.Impact, Short: true},
		{Title: "Job", Value: n.JobID, Short: true},
	}
	if n.TicketID != "" {
		ticket := n.TicketID
		if n.Click != "" {
			ticket = fmt.Sprintf("<%s|#%s>", n.Click, n.TicketID)
		}
		fields = append(fields, SlackField{Title: "Ticket", Value: ticket, Short: true})
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:  colorByPriority(n.Priority),
				Title:  "🤖 " + n.Title,
				Text:   toSlackMarkdown(n.Message),
				Fields: fields,
				Footer: "rca-worker",
				Ts:     time.Now().Unix(),
			},
		},
	}
	if n.ThreadKey != "" {
		if threadTS, ok := c.GetThreadTS(n.ThreadKey); ok {
			msg.ThreadTS = threadTS
		}
	}

	resp, err := c.send(ctx, msg)
	if err != nil {
		return err
	}
	if n.ThreadKey != "" && msg.ThreadTS == "" && resp.TS != "" {
		c.StoreThreadTS(n.ThreadKey, resp.TS)
	}
	return nil
}

func (c *SlackClient) StoreThreadTS(key, threadTS string) {
	c.threadMap.Store(key, threadTS)
}

func (c *SlackClient) GetThreadTS(key string) (string, bool) {
	val, ok := c.threadMap.Load(key)
	if !ok {
		return "", false
	}
	return val.(string), true
}

// ntfy priority(1~5)에 맞춘 첨부 색상
func colorByPriority(priority int) string {
	switch {
	case priority >= 5:
		return "#dc3545" // red
	case priority == 4:
		return "#fd7e14" // orange
	case priority == 3:
		return "#ffc107" // yellow
	default:
		return "#17a2b8" // blue
	}
}

var (
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*$`)
	mdBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdCode    = regexp.MustCompile("(?s)```.*?```|`[^`\n]*`")
)

// toSlackMarkdown - LLM이 생성한 Markdown을 Slack mrkdwn으로 변환
// 코드 블록/인라인 코드 안의 내용은 건드리지 않음
func toSlackMarkdown(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range mdCode.FindAllStringIndex(s, -1) {
		b.WriteString(convertMarkdownSegment(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(convertMarkdownSegment(s[last:]))
	return b.String()
}

func convertMarkdownSegment(s string) string {
	s = mdBold.ReplaceAllString(s, "*$1*")
	return mdHeading.ReplaceAllString(s, "*$1*")
}
