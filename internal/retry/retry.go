// Package retry runs an operation under a fixed attempt budget with
// exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy - 재시도 정책
//
//	Attempts: 총 시도 횟수 (1이면 재시도 없음)
//	BaseDelay: 첫 대기 시간, 이후 Multiplier 배씩 증가
//	MaxDelay: 0이면 상한 없음
type Policy struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration

	// 테스트에서 대기 없이 돌리기 위해 교체 가능
	Sleep func(ctx context.Context, d time.Duration) error
}

// Exponential - base부터 두 배씩 늘어나는 정책 (attempts=3, base=2s → 2s, 4s)
func Exponential(attempts int, base time.Duration) Policy {
	return Policy{Attempts: attempts, BaseDelay: base, Multiplier: 2}
}

// Fixed - 매 시도 사이 동일한 간격
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, BaseDelay: delay, Multiplier: 1}
}

// Delay - n번째 실패(0부터) 후 대기 시간
func (p Policy) Delay(n int) time.Duration {
	d := p.BaseDelay
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	for i := 0; i < n; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent - 재시도해도 의미 없는 에러로 표시 (즉시 중단)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent - Permanent로 감싼 에러인지 확인
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do - fn을 최대 Attempts번 실행
// onRetry는 대기 직전에 (시도 번호, 에러, 대기 시간)으로 호출됨 (nil 허용)
// 마지막 에러를 그대로 반환 (Permanent 래핑은 벗기지 않음)
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, err error, wait time.Duration)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || attempt == attempts {
			return err
		}

		wait := p.Delay(attempt - 1)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}

// SleepContext - ctx 취소 시 즉시 반환하는 sleep
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
