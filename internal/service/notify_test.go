package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kube-rca/rca-worker/internal/model"
)

type fakeNotifier struct {
	name       string
	configured bool
	err        error
	sent       int
}

func (n *fakeNotifier) Name() string       { return n.name }
func (n *fakeNotifier) IsConfigured() bool { return n.configured }

func (n *fakeNotifier) Notify(ctx context.Context, _ model.Notification) error {
	n.sent++
	return n.err
}

func TestNotificationDispatch(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		notifiers []Notifier
		want      StepStatus
	}{
		{name: "none-configured", notifiers: []Notifier{&fakeNotifier{name: "ntfy"}}, want: StepSkipped},
		{name: "all-ok", notifiers: []Notifier{&fakeNotifier{name: "ntfy", configured: true}, &fakeNotifier{name: "slack", configured: true}}, want: StepOK},
		{name: "partial", notifiers: []Notifier{&fakeNotifier{name: "ntfy", configured: true}, &fakeNotifier{name: "slack", configured: true, err: boom}}, want: StepDegraded},
		{name: "all-failed", notifiers: []Notifier{&fakeNotifier{name: "ntfy", configured: true, err: boom}}, want: StepFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewNotificationService(tt.notifiers...).Dispatch(context.Background(), model.Notification{JobID: "job-1"})
			if got.Status != tt.want {
				t.Fatalf("Dispatch = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNotificationDispatchSkipsUnconfigured(t *testing.T) {
	off := &fakeNotifier{name: "slack"}
	on := &fakeNotifier{name: "ntfy", configured: true}
	NewNotificationService(off, on).Dispatch(context.Background(), model.Notification{})
	if off.sent != 0 || on.sent != 1 {
		t.Fatalf("sent off=%d on=%d", off.sent, on.sent)
	}
}
