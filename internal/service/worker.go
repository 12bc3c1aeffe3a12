// 큐 소비 루프
//
//   - Pop은 최대 popTimeout 동안 대기, 타임아웃이면 종료 신호를 확인하고 다시 대기
//   - 종료 신호(ctx 취소)는 루프 시작 시점에만 확인, 처리 중인 job은 끝까지 진행
//   - Pop 실패(연결 끊김)는 지수 backoff(최대 60s)로 재연결될 때까지 대기

package service

import (
	"context"
	"log"
	"time"

	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/retry"
)

type QueueSource interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Ping(ctx context.Context) error
}

type JobProcessor interface {
	Process(ctx context.Context, jobID string) (*Outcome, error)
}

type Worker struct {
	queue      QueueSource
	processor  JobProcessor
	popTimeout time.Duration
	backoff    retry.Policy
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewWorker(queue QueueSource, processor JobProcessor, popTimeout time.Duration) *Worker {
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	return &Worker{
		queue:      queue,
		processor:  processor,
		popTimeout: popTimeout,
		backoff:    retry.Policy{BaseDelay: time.Second, Multiplier: 2, MaxDelay: 60 * time.Second},
		sleep:      retry.SleepContext,
	}
}

// WithSleep - 테스트에서 재연결 대기를 건너뛰기 위해 사용
func (w *Worker) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Worker {
	w.sleep = sleep
	return w
}

// Run - ctx가 취소될 때까지 job을 하나씩 처리
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[Worker] ready, waiting for jobs (pop_timeout=%s)", w.popTimeout)

	// pop 도중 ctx가 취소되어도 꺼낸 id를 잃지 않도록 취소되지 않는 ctx 사용
	popCtx := context.WithoutCancel(ctx)
	failures := 0

	for {
		if ctx.Err() != nil {
			log.Printf("[Worker] shutdown requested, stopping")
			return nil
		}

		jobID, err := w.queue.Pop(popCtx, w.popTimeout)
		if err != nil {
			wait := w.backoff.Delay(failures)
			failures++
			log.Printf("[Worker] queue unavailable, reconnecting (attempt=%d, retry_in=%s): %v", failures, wait, err)
			if serr := w.sleep(ctx, wait); serr != nil {
				continue
			}
			if perr := w.queue.Ping(ctx); perr == nil {
				log.Printf("[Worker] queue reconnected")
			}
			continue
		}
		failures = 0
		if jobID == "" {
			continue
		}

		w.handle(ctx, jobID)
	}
}

// 처리 중 job은 종료 신호와 무관하게 끝까지 진행
func (w *Worker) handle(ctx context.Context, jobID string) {
	jobCtx := context.WithoutCancel(ctx)

	out, err := w.processor.Process(jobCtx, jobID)
	if err != nil {
		log.Printf("[Worker] job processing error (job_id=%s): %v", jobID, err)
		return
	}
	switch out.Status {
	case model.JobStatusCompleted:
		log.Printf("[Worker] job done (job_id=%s, rag=%s, parse=%s, ticket=%s, notify=%s, knowledge=%s, audit=%s)",
			jobID, out.Retrieval, out.Parse, out.Ticket, out.Notify, out.Knowledge, out.Audit)
	case model.JobStatusFailed:
		log.Printf("[Worker] job failed (job_id=%s)", jobID)
	}
}
