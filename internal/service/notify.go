package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kube-rca/rca-worker/internal/model"
)

// Notifier - 운영자 알림 채널 (ntfy, Slack)
type Notifier interface {
	Name() string
	IsConfigured() bool
	Notify(ctx context.Context, n model.Notification) error
}

// NotificationService - 설정된 모든 채널로 전송
// 한 채널의 실패가 다른 채널 전송을 막지 않음
type NotificationService struct {
	notifiers []Notifier
}

func NewNotificationService(notifiers ...Notifier) *NotificationService {
	return &NotificationService{notifiers: notifiers}
}

// Dispatch - 결과 요약
//
//	ok: 모든 채널 성공 / degraded: 일부 실패 / failed: 전부 실패 / skipped: 설정된 채널 없음
func (s *NotificationService) Dispatch(ctx context.Context, n model.Notification) StepResult {
	var (
		sent int
		errs []error
	)
	for _, notifier := range s.notifiers {
		if notifier == nil || !notifier.IsConfigured() {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			log.Printf("[Notify] send failed (channel=%s, job_id=%s): %v", notifier.Name(), n.JobID, err)
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
			continue
		}
		sent++
	}

	switch {
	case sent == 0 && len(errs) == 0:
		return Skipped("no notification channel configured")
	case len(errs) == 0:
		return OK()
	case sent == 0:
		return Failed(errors.Join(errs...))
	default:
		return Degraded(errors.Join(errs...))
	}
}
