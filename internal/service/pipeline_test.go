package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kube-rca/rca-worker/internal/client"
	"github.com/kube-rca/rca-worker/internal/db"
	"github.com/kube-rca/rca-worker/internal/model"
)

type fakeJobRepo struct {
	jobs        map[string]*model.Job
	transitions []string
	getErr      error
}

func newFakeJobRepo(jobs ...*model.Job) *fakeJobRepo {
	repo := &fakeJobRepo{jobs: map[string]*model.Job{}}
	for _, j := range jobs {
		repo.jobs[j.ID] = j
	}
	return repo
}

func (f *fakeJobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[id]
	if !ok {
		return nil, db.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobRepo) Transition(ctx context.Context, id, status string, u model.JobUpdate) error {
	job, ok := f.jobs[id]
	if !ok {
		return db.ErrJobNotFound
	}
	f.transitions = append(f.transitions, status)
	job.Status = status
	if u.CompletedAt != nil {
		job.CompletedAt = u.CompletedAt
	}
	if u.Result != nil {
		job.Result = u.Result
	}
	if u.ModelUsed != nil {
		job.ModelUsed = *u.ModelUsed
	}
	if u.Backend != nil {
		job.Backend = *u.Backend
	}
	if u.ProcessingTimeMs != nil {
		job.ProcessingTimeMs = *u.ProcessingTimeMs
	}
	if u.TicketID != nil {
		job.TicketID = *u.TicketID
	}
	if u.Error != nil {
		job.Error = *u.Error
	}
	return nil
}

type fakeCompleter struct {
	text   string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt, system string) (*client.Completion, error) {
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &client.Completion{Text: f.text, Model: "mistral:7b", Backend: "ollama", LatencyMs: 12}, nil
}

type fakeRetriever struct {
	results     []model.SearchResult
	err         error
	remembered  []string
	rememberErr error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, text string) ([]model.SearchResult, error) {
	return f.results, f.err
}

func (f *fakeRetriever) Remember(ctx context.Context, content, sourceID string, metadata map[string]any) (bool, error) {
	if f.rememberErr != nil {
		return false, f.rememberErr
	}
	f.remembered = append(f.remembered, content)
	return true, nil
}

type fakeTicketer struct {
	requests []client.TicketRequest
	err      error
}

func (f *fakeTicketer) IsConfigured() bool { return true }

func (f *fakeTicketer) CreateTicket(ctx context.Context, t client.TicketRequest) (string, error) {
	f.requests = append(f.requests, t)
	if f.err != nil {
		return "", f.err
	}
	return "42", nil
}

func (f *fakeTicketer) TicketURL(id string) string { return "http://zammad/#ticket/zoom/" + id }

type fakeDispatcher struct {
	sent []model.Notification
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, n model.Notification) StepResult {
	f.sent = append(f.sent, n)
	return OK()
}

type fakeEventSink struct {
	events []model.AnalysisCompletedEvent
}

func (f *fakeEventSink) PublishAnalysis(ctx context.Context, e model.AnalysisCompletedEvent) error {
	f.events = append(f.events, e)
	return nil
}

// blockingEventSink - 브로커 무응답 상황 (ctx 만료까지 대기)
type blockingEventSink struct {
	calls int
}

func (f *blockingEventSink) PublishAnalysis(ctx context.Context, e model.AnalysisCompletedEvent) error {
	f.calls++
	<-ctx.Done()
	return ctx.Err()
}

type fakeAuditRepo struct {
	entries []model.AnalysisLogEntry
}

func (f *fakeAuditRepo) InsertAnalysisLog(ctx context.Context, e model.AnalysisLogEntry) (int64, error) {
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

type pipelineFixture struct {
	jobs       *fakeJobRepo
	completer  *fakeCompleter
	retriever  *fakeRetriever
	ticketer   *fakeTicketer
	dispatcher *fakeDispatcher
	events     *fakeEventSink
	audit      *fakeAuditRepo
	pipeline   *Pipeline
}

func newPipelineFixture(job *model.Job, completionText string) *pipelineFixture {
	f := &pipelineFixture{
		jobs:       newFakeJobRepo(job),
		completer:  &fakeCompleter{text: completionText},
		retriever:  &fakeRetriever{},
		ticketer:   &fakeTicketer{},
		dispatcher: &fakeDispatcher{},
		events:     &fakeEventSink{},
		audit:      &fakeAuditRepo{},
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Jobs:      f.jobs,
		Completer: f.completer,
		Retriever: f.retriever,
		Ticketer:  f.ticketer,
		Notifier:  f.dispatcher,
		Events:    f.events,
		Audit:     f.audit,
	})
	return f
}

func pendingJob(severity string) *model.Job {
	return &model.Job{
		ID:        "job-1",
		CreatedAt: time.Now(),
		Status:    model.JobStatusPending,
		Event: model.AlertEvent{
			Source:      "zabbix",
			Severity:    severity,
			Host:        "db01",
			Description: "disk usage above 95%",
		},
	}
}

const confidentCritical = `{"root_cause":"log rotation stopped","impact":"Kritisch","confidence":"High","immediate_action":"clean /var/log","ticket_title":"Disk full on db01","ticket_priority":"4_urgent"}`

func TestPipelineCompletesWithTicket(t *testing.T) {
	f := newPipelineFixture(pendingJob(model.SeverityCritical), confidentCritical)
	f.retriever.results = []model.SearchResult{{Content: "previous disk incident", Similarity: 0.82}}

	out, err := f.pipeline.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}

	job := f.jobs.jobs["job-1"]
	if got := strings.Join(f.jobs.transitions, ","); got != "processing,completed" {
		t.Fatalf("transitions = %s", got)
	}
	if job.TicketID != "42" || job.Backend != "ollama" || job.ModelUsed != "mistral:7b" || job.Result == nil || job.CompletedAt == nil {
		t.Fatalf("unexpected stored job: %+v", job)
	}
	if len(f.ticketer.requests) != 1 || f.ticketer.requests[0].PriorityID != 4 || f.ticketer.requests[0].Title != "Disk full on db01" {
		t.Fatalf("ticket requests = %+v", f.ticketer.requests)
	}
	if !strings.Contains(f.completer.prompt, "[Aehnlichkeit: 0.82] previous disk incident") {
		t.Fatalf("RAG context not in prompt")
	}

	if len(f.dispatcher.sent) != 1 {
		t.Fatalf("notifications = %d", len(f.dispatcher.sent))
	}
	n := f.dispatcher.sent[0]
	if n.Priority != 5 || n.TicketID != "42" || n.Click != "http://zammad/#ticket/zoom/42" || n.ThreadKey != "zabbix:db01" {
		t.Fatalf("notification = %+v", n)
	}

	if len(f.events.events) != 1 || f.events.events[0].TicketID != "42" {
		t.Fatalf("events = %+v", f.events.events)
	}
	if len(f.retriever.remembered) != 1 || out.Knowledge.Status != StepOK {
		t.Fatalf("knowledge not stored: %v", out.Knowledge)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].ConfidenceScore != 0.9 || *f.audit.entries[0].TicketID != "42" {
		t.Fatalf("audit = %+v", f.audit.entries)
	}
}

func TestPipelineCompletionFailureFailsJob(t *testing.T) {
	f := newPipelineFixture(pendingJob(model.SeverityCritical), "")
	f.completer.err = errors.Join(client.ErrCompletionExhausted, errors.New(strings.Repeat("x", 800)))

	out, err := f.pipeline.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.JobStatusFailed {
		t.Fatalf("status = %s", out.Status)
	}

	job := f.jobs.jobs["job-1"]
	if job.Status != model.JobStatusFailed || job.Error == "" {
		t.Fatalf("job = %+v", job)
	}
	if n := len([]rune(job.Error)); n > 500 {
		t.Fatalf("error length = %d, want <= 500", n)
	}
	if len(f.ticketer.requests) != 0 || len(f.dispatcher.sent) != 0 || len(f.events.events) != 0 {
		t.Fatalf("side effects recorded on failed job")
	}
	if len(f.retriever.remembered) != 0 || len(f.audit.entries) != 0 {
		t.Fatalf("knowledge/audit written on failed job")
	}
}

func TestPipelineDegradedParseNoTicket(t *testing.T) {
	f := newPipelineFixture(pendingJob(model.SeverityCritical), "I think the disk is full.")

	out, err := f.pipeline.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.JobStatusCompleted || out.Parse.Status != StepDegraded {
		t.Fatalf("status=%s parse=%s", out.Status, out.Parse)
	}
	// Low confidence → gate closed
	if out.Ticket.Status != StepSkipped || len(f.ticketer.requests) != 0 {
		t.Fatalf("ticket = %s", out.Ticket)
	}
	if f.jobs.jobs["job-1"].Result.Confidence != "Low" {
		t.Fatalf("expected degraded result stored")
	}
	if len(f.dispatcher.sent) != 1 {
		t.Fatalf("notification should still be sent")
	}
}

func TestPipelineRAGFailureIsNonFatal(t *testing.T) {
	f := newPipelineFixture(pendingJob(model.SeverityHigh), confidentCritical)
	f.retriever.err = ErrEmbeddingUnavailable

	out, err := f.pipeline.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.JobStatusCompleted || out.Retrieval.Status != StepDegraded {
		t.Fatalf("status=%s retrieval=%s", out.Status, out.Retrieval)
	}
	if !strings.Contains(f.completer.prompt, "Keine aehnlichen Incidents gefunden.") {
		t.Fatalf("expected empty-context placeholder in prompt")
	}
}

func TestPipelineTicketFailureStillCompletes(t *testing.T) {
	f := newPipelineFixture(pendingJob(model.SeverityCritical), confidentCritical)
	f.ticketer.err = errors.New("zammad down")

	out, err := f.pipeline.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.JobStatusCompleted || out.Ticket.Status != StepFailed {
		t.Fatalf("status=%s ticket=%s", out.Status, out.Ticket)
	}
	if f.jobs.jobs["job-1"].TicketID != "" {
		t.Fatalf("ticket id should stay empty")
	}
	if len(f.dispatcher.sent) != 1 || f.dispatcher.sent[0].TicketID != "" {
		t.Fatalf("notification = %+v", f.dispatcher.sent)
	}
}

func TestPipelineSkipsMissingAndNonPending(t *testing.T) {
	f := newPipelineFixture(pendingJob(model.SeverityHigh), confidentCritical)

	out, err := f.pipeline.Process(context.Background(), "unknown")
	if err != nil || out.Status != OutcomeSkipped {
		t.Fatalf("missing job: out=%+v err=%v", out, err)
	}

	f.jobs.jobs["job-1"].Status = model.JobStatusProcessing
	out, err = f.pipeline.Process(context.Background(), "job-1")
	if err != nil || out.Status != OutcomeSkipped || out.SkipReason != "job already processing" {
		t.Fatalf("processing job: out=%+v err=%v", out, err)
	}

	f.jobs.jobs["job-1"].Status = model.JobStatusCompleted
	out, err = f.pipeline.Process(context.Background(), "job-1")
	if err != nil || out.Status != OutcomeSkipped || out.SkipReason != "job already completed" {
		t.Fatalf("completed job: out=%+v err=%v", out, err)
	}
	if len(f.jobs.transitions) != 0 {
		t.Fatalf("unexpected transitions: %v", f.jobs.transitions)
	}
}

func TestPipelineStalledEventStreamIsBounded(t *testing.T) {
	jobs := newFakeJobRepo(pendingJob(model.SeverityHigh))
	retriever := &fakeRetriever{}
	audit := &fakeAuditRepo{}
	sink := &blockingEventSink{}
	p := NewPipeline(PipelineDeps{
		Jobs:        jobs,
		Completer:   &fakeCompleter{text: confidentCritical},
		Retriever:   retriever,
		Events:      sink,
		Audit:       audit,
		StepTimeout: 20 * time.Millisecond,
	})

	done := make(chan *Outcome, 1)
	go func() {
		// worker와 동일하게 취소 불가 context로 실행
		out, err := p.Process(context.WithoutCancel(context.Background()), "job-1")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- out
	}()

	var out *Outcome
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Process did not return while event stream was stalled")
	}
	if out == nil {
		t.Fatalf("no outcome")
	}
	if out.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}
	if sink.calls != 1 || out.Event.Status != StepFailed {
		t.Fatalf("event = %s (calls=%d)", out.Event, sink.calls)
	}
	if !errors.Is(out.Event.Err, context.DeadlineExceeded) {
		t.Fatalf("event err = %v", out.Event.Err)
	}
	if out.Knowledge.Status != StepOK || len(retriever.remembered) != 1 {
		t.Fatalf("knowledge = %s (remembered=%d)", out.Knowledge, len(retriever.remembered))
	}
	if out.Audit.Status != StepOK || len(audit.entries) != 1 {
		t.Fatalf("audit = %s (entries=%d)", out.Audit, len(audit.entries))
	}
}

func TestPipelineOptionalCollaboratorsSkipped(t *testing.T) {
	jobs := newFakeJobRepo(pendingJob(model.SeverityCritical))
	p := NewPipeline(PipelineDeps{Jobs: jobs, Completer: &fakeCompleter{text: confidentCritical}})

	out, err := p.Process(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s", out.Status)
	}
	for name, step := range map[string]StepResult{
		"retrieval": out.Retrieval, "ticket": out.Ticket, "notify": out.Notify,
		"event": out.Event, "knowledge": out.Knowledge, "audit": out.Audit,
	} {
		if step.Status != StepSkipped {
			t.Fatalf("%s = %s, want skipped", name, step)
		}
	}
}

func TestPipelineStoreErrorPropagates(t *testing.T) {
	f := newPipelineFixture(pendingJob(model.SeverityHigh), confidentCritical)
	f.jobs.getErr = errors.New("connection refused")

	if _, err := f.pipeline.Process(context.Background(), "job-1"); err == nil {
		t.Fatalf("expected error")
	}
}
