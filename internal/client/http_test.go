package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/retry"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "503", err: &HTTPStatusError{StatusCode: 503}, want: true},
		{name: "429", err: &HTTPStatusError{StatusCode: 429}, want: true},
		{name: "408", err: &HTTPStatusError{StatusCode: 408}, want: true},
		{name: "404", err: &HTTPStatusError{StatusCode: 404}, want: false},
		{name: "wrapped-401", err: errors.Join(errors.New("ctx"), &HTTPStatusError{StatusCode: 401}), want: false},
		{name: "unknown", err: errors.New("connection reset"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Stream || req.Prompt != "prompt" || req.System != "system" || req.Model != "mistral:7b" {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "mistral:7b", "response": "analysis"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "mistral:7b", time.Second)
	text, modelName, err := c.Generate(context.Background(), "prompt", "system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "analysis" || modelName != "mistral:7b" {
		t.Fatalf("got (%q, %q)", text, modelName)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.5, 0.25}}})
	}))
	defer srv.Close()

	vec, err := NewOllamaClient(srv.URL, "nomic-embed-text", time.Second).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestOllamaStatusErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "missing", time.Second).Embed(context.Background(), "hello")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPStatusError, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("404 should not be retryable")
	}
}

func TestLiteLLMGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		var req chatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "prompt" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
		_, _ = io.WriteString(w, `{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"{\"root_cause\":\"x\"}"}}]}`)
	}))
	defer srv.Close()

	text, modelName, err := NewLiteLLMClient(srv.URL, "sk-test", "default", time.Second).Generate(context.Background(), "prompt", "system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"root_cause":"x"}` || modelName != "gpt-4o-mini" {
		t.Fatalf("got (%q, %q)", text, modelName)
	}
}

func TestLiteLLMEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	if _, _, err := NewLiteLLMClient(srv.URL, "", "m", time.Second).Generate(context.Background(), "p", ""); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestNtfyNotifyHeaders(t *testing.T) {
	var gotTitle, gotPriority, gotTags, gotClick, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp-alerts" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotTags = r.Header.Get("Tags")
		gotClick = r.Header.Get("Click")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	c := NewNtfyClient(config.NtfyConfig{URL: srv.URL, Topic: "mcp-alerts", MaxMessageLength: 10})
	err := c.Notify(context.Background(), model.Notification{
		Title:    strings.Repeat("t", 250),
		Message:  "0123456789abcdef",
		Priority: 5,
		Click:    "http://zammad/#ticket/zoom/7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotTitle) != 200 {
		t.Fatalf("title length = %d, want 200", len(gotTitle))
	}
	if gotPriority != "5" || gotTags != "robot" || gotClick != "http://zammad/#ticket/zoom/7" {
		t.Fatalf("headers priority=%q tags=%q click=%q", gotPriority, gotTags, gotClick)
	}
	if gotBody != "0123456789" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestNtfyRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	policy := retry.Fixed(2, 2*time.Second)
	policy.Sleep = rec.sleep

	c := NewNtfyClient(config.NtfyConfig{URL: srv.URL, Topic: "mcp-alerts"}).WithPolicy(policy)
	if err := c.Notify(context.Background(), model.Notification{Title: "t", Message: "m"}); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(rec.waits) != 1 || rec.waits[0] != 2*time.Second {
		t.Fatalf("waits = %v", rec.waits)
	}
}

func TestZammadCreateTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tickets" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token token=secret" {
			t.Fatalf("Authorization = %q", got)
		}
		var req zammadTicketRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Group != "Users" || req.PriorityID != 3 || req.Article.ContentType != "text/html" || req.Article.Type != "note" {
			t.Fatalf("unexpected payload: %+v", req)
		}
		if req.Tags != "ai,critical" {
			t.Fatalf("tags = %q", req.Tags)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":42,"number":"31042"}`)
	}))
	defer srv.Close()

	c := NewZammadClient(config.ZammadConfig{URL: srv.URL, Token: "secret"})
	id, err := c.CreateTicket(context.Background(), TicketRequest{Title: "t", Body: "<p>b</p>", PriorityID: 3, Tags: []string{"ai", "critical"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "42" {
		t.Fatalf("id = %q, want 42", id)
	}
	if url := c.TicketURL(id); url != srv.URL+"/#ticket/zoom/42" {
		t.Fatalf("TicketURL = %q", url)
	}
}

func TestZammadNoRetryOnStatusError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	policy := retry.Exponential(3, 2*time.Second)
	policy.Sleep = rec.sleep

	c := NewZammadClient(config.ZammadConfig{URL: srv.URL, Token: "secret"}).WithPolicy(policy)
	if _, err := c.CreateTicket(context.Background(), TicketRequest{Title: "t"}); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestZammadNotConfigured(t *testing.T) {
	c := NewZammadClient(config.ZammadConfig{URL: "http://zammad"})
	if _, err := c.CreateTicket(context.Background(), TicketRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSlackNotifyThreadsByKey(t *testing.T) {
	var msgs []SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg SlackMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		msgs = append(msgs, msg)
		_, _ = io.WriteString(w, `{"ok":true,"ts":"1700000000.000100"}`)
	}))
	defer srv.Close()

	c := NewSlackClient(config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C123"})
	c.apiURL = srv.URL

	n := model.Notification{Title: "disk full", Message: "**root cause**", Priority: 5, ThreadKey: "zabbix:db01"}
	if err := c.Notify(context.Background(), n); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := c.Notify(context.Background(), n); err != nil {
		t.Fatalf("second notify: %v", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].ThreadTS != "" || msgs[1].ThreadTS != "1700000000.000100" {
		t.Fatalf("thread ts = %q, %q", msgs[0].ThreadTS, msgs[1].ThreadTS)
	}
	if msgs[0].Attachments[0].Text != "*root cause*" {
		t.Fatalf("text = %q", msgs[0].Attachments[0].Text)
	}
}

func TestSlackNotConfigured(t *testing.T) {
	c := NewSlackClient(config.SlackConfig{})
	if err := c.Notify(context.Background(), model.Notification{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

type fakeProducer struct {
	topic    string
	key      string
	value    []byte
	deadline time.Time
}

func (f *fakeProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	f.topic, f.key, f.value = topic, key, value
	f.deadline, _ = ctx.Deadline()
	return nil
}

func (f *fakeProducer) Close() {}

func TestEventPublisherPublishAnalysis(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewEventPublisher(producer, config.EventsConfig{})

	event := model.AnalysisCompletedEvent{JobID: "job-1", Status: model.JobStatusCompleted, TicketID: "7"}
	if err := pub.PublishAnalysis(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if producer.topic != "mcp.analysis.completed" || producer.key != "job-1" {
		t.Fatalf("topic=%q key=%q", producer.topic, producer.key)
	}
	var decoded model.AnalysisCompletedEvent
	if err := json.Unmarshal(producer.value, &decoded); err != nil || decoded.TicketID != "7" {
		t.Fatalf("decoded=%+v err=%v", decoded, err)
	}
}

func TestEventPublisherBoundsEachPublish(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewEventPublisher(producer, config.EventsConfig{Timeout: 2 * time.Second})

	before := time.Now()
	if err := pub.PublishAnalysis(context.WithoutCancel(context.Background()), model.AnalysisCompletedEvent{JobID: "job-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if producer.deadline.IsZero() {
		t.Fatalf("publish context has no deadline")
	}
	if d := producer.deadline.Sub(before); d <= 0 || d > 2*time.Second {
		t.Fatalf("deadline in %s, want <= 2s", d)
	}
}

func TestEventPublisherUnreachableBrokerFails(t *testing.T) {
	// 1초 미만 timeout은 kgo 최소값으로 올라가고 생성은 성공
	producer, err := NewKafkaProducer([]string{"127.0.0.1:1"}, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("NewKafkaProducer: %v", err)
	}
	pub := NewEventPublisher(producer, config.EventsConfig{Timeout: 300 * time.Millisecond})
	defer pub.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- pub.PublishAnalysis(context.WithoutCancel(context.Background()), model.AnalysisCompletedEvent{JobID: "job-1"})
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected error against unreachable broker")
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("publish still blocked against unreachable broker")
	}
}

func TestNewKafkaProducerRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaProducer(nil, time.Second); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
