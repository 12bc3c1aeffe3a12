package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kube-rca/rca-worker/internal/retry"
)

// ErrCompletionExhausted - primary/secondary backend 모두 실패
var ErrCompletionExhausted = errors.New("all completion backends exhausted")

// CompletionBackend - 프롬프트 1건에 대한 텍스트 생성 backend
// 반환값: (생성 텍스트, 실제 사용된 모델 이름, 에러)
type CompletionBackend interface {
	Name() string
	Generate(ctx context.Context, prompt, system string) (string, string, error)
}

// Completion - 성공한 호출 결과
type Completion struct {
	Text      string
	Model     string
	Backend   string
	LatencyMs int64
}

// CompletionProvider - primary → secondary 순서로 fallback
type CompletionProvider struct {
	primary         CompletionBackend
	secondary       CompletionBackend
	primaryPolicy   retry.Policy
	secondaryPolicy retry.Policy
	now             func() time.Time
}

// NewCompletionProvider - secondary는 nil 허용 (fallback 없음)
func NewCompletionProvider(primary, secondary CompletionBackend) *CompletionProvider {
	return &CompletionProvider{
		primary:         primary,
		secondary:       secondary,
		primaryPolicy:   retry.Fixed(2, 2*time.Second),
		secondaryPolicy: retry.Exponential(3, 2*time.Second),
		now:             time.Now,
	}
}

// WithSleep - 테스트에서 재시도 대기를 건너뛰기 위해 사용
func (p *CompletionProvider) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *CompletionProvider {
	p.primaryPolicy.Sleep = sleep
	p.secondaryPolicy.Sleep = sleep
	return p
}

// Complete - primary 재시도 소진 후 secondary로 넘어감
// 둘 다 실패하면 ErrCompletionExhausted
func (p *CompletionProvider) Complete(ctx context.Context, prompt, system string) (*Completion, error) {
	if p.primary == nil {
		return nil, fmt.Errorf("no primary completion backend: %w", ErrNotConfigured)
	}

	res, primaryErr := p.try(ctx, p.primary, p.primaryPolicy, prompt, system)
	if primaryErr == nil {
		return res, nil
	}
	if errors.Is(primaryErr, context.Canceled) {
		return nil, primaryErr
	}

	if p.secondary == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompletionExhausted, p.primary.Name(), primaryErr)
	}
	log.Printf("[Completion] primary failed, falling back (primary=%s, secondary=%s): %v", p.primary.Name(), p.secondary.Name(), primaryErr)

	res, secondaryErr := p.try(ctx, p.secondary, p.secondaryPolicy, prompt, system)
	if secondaryErr == nil {
		return res, nil
	}
	return nil, fmt.Errorf("%w: %s: %v; %s: %v", ErrCompletionExhausted,
		p.primary.Name(), primaryErr, p.secondary.Name(), secondaryErr)
}

func (p *CompletionProvider) try(ctx context.Context, backend CompletionBackend, policy retry.Policy, prompt, system string) (*Completion, error) {
	var (
		text  string
		model string
	)
	start := p.now()
	err := policy.Do(ctx, func(ctx context.Context) error {
		t, m, err := backend.Generate(ctx, prompt, system)
		if err != nil {
			return classify(err)
		}
		if t == "" {
			return fmt.Errorf("%s returned empty completion", backend.Name())
		}
		text, model = t, m
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		log.Printf("[Completion] attempt failed (backend=%s, attempt=%d, retry_in=%s): %v", backend.Name(), attempt, wait, err)
	})
	if err != nil {
		return nil, err
	}

	latency := p.now().Sub(start).Milliseconds()
	log.Printf("[Completion] success (backend=%s, model=%s, latency_ms=%d)", backend.Name(), model, latency)
	return &Completion{Text: text, Model: model, Backend: backend.Name(), LatencyMs: latency}, nil
}
