package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kube-rca/rca-worker/internal/model"
)

type fakeJobQueue struct {
	markers   map[string]string
	created   []*model.Job
	createErr error
	released  []string
}

func newFakeJobQueue() *fakeJobQueue {
	return &fakeJobQueue{markers: map[string]string{}}
}

func (q *fakeJobQueue) AcquireDedup(ctx context.Context, key, jobID string, window time.Duration) (bool, string, error) {
	if existing, ok := q.markers[key]; ok {
		return false, existing, nil
	}
	q.markers[key] = jobID
	return true, jobID, nil
}

func (q *fakeJobQueue) ReleaseDedup(ctx context.Context, key string) error {
	delete(q.markers, key)
	q.released = append(q.released, key)
	return nil
}

func (q *fakeJobQueue) Create(ctx context.Context, job *model.Job) error {
	if q.createErr != nil {
		return q.createErr
	}
	q.created = append(q.created, job)
	return nil
}

func TestGatewaySubmitDeduplicates(t *testing.T) {
	queue := newFakeJobQueue()
	svc := NewGatewayService(queue, 900*time.Second)
	event := model.AlertEvent{Source: "zabbix", Host: "db01", Severity: "CRITICAL", Description: "disk usage above 95%"}

	first, err := svc.Submit(context.Background(), event)
	if err != nil || first.Status != SubmitStatusQueued || first.JobID == "" {
		t.Fatalf("first submit = %+v, %v", first, err)
	}
	second, err := svc.Submit(context.Background(), event)
	if err != nil || second.Status != SubmitStatusDeduplicated || second.JobID != first.JobID {
		t.Fatalf("second submit = %+v, %v", second, err)
	}

	if len(queue.created) != 1 {
		t.Fatalf("created jobs = %d, want 1", len(queue.created))
	}
	job := queue.created[0]
	if job.Status != model.JobStatusPending || job.Event.Severity != model.SeverityCritical {
		t.Fatalf("job = %+v", job)
	}
}

func TestGatewaySubmitNormalizes(t *testing.T) {
	queue := newFakeJobQueue()
	svc := NewGatewayService(queue, time.Minute)

	if _, err := svc.Submit(context.Background(), model.AlertEvent{Source: "loki", Severity: "panic", Description: "oom"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ev := queue.created[0].Event
	if ev.Severity != model.SeverityWarning || ev.Host != "unknown" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestGatewaySubmitRejectsMissingFields(t *testing.T) {
	svc := NewGatewayService(newFakeJobQueue(), time.Minute)
	_, err := svc.Submit(context.Background(), model.AlertEvent{Source: "  ", Description: "x"})
	if !errors.Is(err, ErrInvalidAlert) {
		t.Fatalf("expected ErrInvalidAlert, got %v", err)
	}
}

func TestGatewaySubmitReleasesDedupOnCreateFailure(t *testing.T) {
	queue := newFakeJobQueue()
	queue.createErr = errors.New("redis down")
	svc := NewGatewayService(queue, time.Minute)

	if _, err := svc.Submit(context.Background(), model.AlertEvent{Source: "s", Description: "d"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(queue.released) != 1 || len(queue.markers) != 0 {
		t.Fatalf("dedup marker not released")
	}
}
