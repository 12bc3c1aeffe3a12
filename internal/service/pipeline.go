// 알림 분석 파이프라인 (job 1건 처리)
//
// 처리 흐름:
//  1. job 조회 (없거나 pending이 아니면 건너뜀) → processing
//  2. RAG 검색 (실패해도 빈 컨텍스트로 진행)
//  3. 프롬프트 렌더링
//  4. LLM completion (실패 시 job → failed, 이후 단계 중단)
//  5. 응답 파싱 (실패 시 degraded 기본값)
//  6. 티켓 생성 여부 판단 + 생성
//  7. 운영자 알림
//  8. job → completed
//  9. 분석 완료 이벤트, 지식 저장, 감사 로그 (모두 best-effort)

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kube-rca/rca-worker/internal/client"
	"github.com/kube-rca/rca-worker/internal/db"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/template"
)

// job에 저장하는 에러 메시지 최대 길이
const maxJobErrorLength = 500

// best-effort 후처리 단계 1개의 기본 상한
const defaultStepTimeout = 10 * time.Second

type StepStatus string

const (
	StepOK       StepStatus = "ok"
	StepDegraded StepStatus = "degraded"
	StepSkipped  StepStatus = "skipped"
	StepFailed   StepStatus = "failed"
)

// StepResult - best-effort 단계의 결과
type StepResult struct {
	Status StepStatus
	Reason string
	Err    error
}

func OK() StepResult                   { return StepResult{Status: StepOK} }
func Skipped(reason string) StepResult { return StepResult{Status: StepSkipped, Reason: reason} }
func Degraded(err error) StepResult    { return StepResult{Status: StepDegraded, Err: err} }
func Failed(err error) StepResult      { return StepResult{Status: StepFailed, Err: err} }

func (r StepResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Status, r.Err)
	}
	if r.Reason != "" {
		return fmt.Sprintf("%s: %s", r.Status, r.Reason)
	}
	return string(r.Status)
}

// Outcome - Process 1회 결과
// Status: completed | failed | skipped
type Outcome struct {
	JobID      string
	Status     string
	SkipReason string

	Retrieval StepResult
	Parse     StepResult
	Ticket    StepResult
	Notify    StepResult
	Event     StepResult
	Knowledge StepResult
	Audit     StepResult

	Completion *client.Completion
	Result     *model.AnalysisResult
	TicketID   string
	Context    []model.SearchResult
}

const OutcomeSkipped = "skipped"

type JobRepo interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	Transition(ctx context.Context, id, status string, update model.JobUpdate) error
}

type Retriever interface {
	Retrieve(ctx context.Context, text string) ([]model.SearchResult, error)
	Remember(ctx context.Context, content, sourceID string, metadata map[string]any) (bool, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt, system string) (*client.Completion, error)
}

type Ticketer interface {
	IsConfigured() bool
	CreateTicket(ctx context.Context, t client.TicketRequest) (string, error)
	TicketURL(ticketID string) string
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification) StepResult
}

type EventSink interface {
	PublishAnalysis(ctx context.Context, event model.AnalysisCompletedEvent) error
}

type AuditRepo interface {
	InsertAnalysisLog(ctx context.Context, entry model.AnalysisLogEntry) (int64, error)
}

// PipelineDeps - Jobs, Completer 외에는 nil 허용 (해당 단계 skipped)
// StepTimeout: 이벤트/지식 저장/감사 로그 단계별 상한 (0이면 10초)
type PipelineDeps struct {
	Jobs      JobRepo
	Completer Completer
	Retriever Retriever
	Ticketer  Ticketer
	Notifier  Dispatcher
	Events    EventSink
	Audit     AuditRepo
	Prompt    string

	StepTimeout time.Duration
}

type Pipeline struct {
	deps        PipelineDeps
	prompt      string
	stepTimeout time.Duration
	now         func() time.Time
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	prompt := deps.Prompt
	if prompt == "" {
		prompt = template.FallbackPrompt
	}
	stepTimeout := deps.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	return &Pipeline{deps: deps, prompt: prompt, stepTimeout: stepTimeout, now: time.Now}
}

// Process - job 1건 처리
// 에러는 job 저장소 접근 실패일 때만 반환 (LLM 실패는 Outcome.Status=failed)
func (p *Pipeline) Process(ctx context.Context, jobID string) (*Outcome, error) {
	out := &Outcome{JobID: jobID}

	job, err := p.deps.Jobs.Get(ctx, jobID)
	if errors.Is(err, db.ErrJobNotFound) {
		log.Printf("[Pipeline] job not found, skipping (job_id=%s)", jobID)
		out.Status, out.SkipReason = OutcomeSkipped, "job not found"
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	// 재전달된 id (이미 처리 중이거나 끝난 job)
	if job.Status != model.JobStatusPending {
		log.Printf("[Pipeline] job not pending, skipping (job_id=%s, status=%s)", jobID, job.Status)
		out.Status, out.SkipReason = OutcomeSkipped, "job already processing"
		if job.IsTerminal() {
			out.SkipReason = "job already " + job.Status
		}
		return out, nil
	}

	start := p.now()
	if err := p.deps.Jobs.Transition(ctx, jobID, model.JobStatusProcessing, model.JobUpdate{}); err != nil {
		return nil, fmt.Errorf("failed to mark job %s processing: %w", jobID, err)
	}
	log.Printf("[Pipeline] processing (job_id=%s, source=%s, host=%s, severity=%s)", jobID, job.Event.Source, job.Event.Host, job.Event.Severity)

	// 1. RAG
	out.Context, out.Retrieval = p.retrieve(ctx, job)

	// 2. prompt
	prompt := template.RenderPrompt(p.prompt, template.PromptDataFromJob(job), out.Context)

	// 3. completion
	completion, err := p.deps.Completer.Complete(ctx, prompt, template.SystemPrompt)
	if err != nil {
		return out, p.fail(ctx, out, start, err)
	}
	out.Completion = completion

	// 4. parse
	result, parsed := ParseAnalysisOK(completion.Text)
	out.Result = &result
	out.Parse = OK()
	if !parsed {
		out.Parse = Degraded(errors.New("model output is not valid JSON"))
		log.Printf("[Pipeline] degraded analysis (job_id=%s, backend=%s)", jobID, completion.Backend)
	}

	// 5. ticket
	out.TicketID, out.Ticket = p.openTicket(ctx, job, result)

	// 6. notification
	out.Notify = p.notify(ctx, job, result, out.TicketID)

	// 7. completed
	completedAt := p.now().UTC()
	elapsed := p.now().Sub(start).Milliseconds()
	update := model.JobUpdate{
		CompletedAt:      &completedAt,
		Result:           &result,
		ModelUsed:        &completion.Model,
		Backend:          &completion.Backend,
		ProcessingTimeMs: &elapsed,
		TicketID:         &out.TicketID,
	}
	if err := p.deps.Jobs.Transition(ctx, jobID, model.JobStatusCompleted, update); err != nil {
		return out, fmt.Errorf("failed to mark job %s completed: %w", jobID, err)
	}
	out.Status = model.JobStatusCompleted
	log.Printf("[Pipeline] completed (job_id=%s, backend=%s, model=%s, confidence=%s, impact=%s, ticket_id=%s, elapsed_ms=%d)",
		jobID, completion.Backend, completion.Model, result.Confidence, result.Impact, out.TicketID, elapsed)

	// 8. best-effort 후처리 (단계마다 별도 deadline, 한 단계가 멈춰도 다음 단계 진행)
	out.Event = p.bounded(ctx, func(ctx context.Context) StepResult {
		return p.publish(ctx, job, result, completion, out.TicketID, completedAt, elapsed)
	})
	out.Knowledge = p.bounded(ctx, func(ctx context.Context) StepResult {
		return p.remember(ctx, job, result)
	})
	out.Audit = p.bounded(ctx, func(ctx context.Context) StepResult {
		return p.audit(ctx, job, result, completion, out.TicketID, elapsed)
	})

	return out, nil
}

func (p *Pipeline) bounded(ctx context.Context, step func(context.Context) StepResult) StepResult {
	ctx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	return step(ctx)
}

func (p *Pipeline) fail(ctx context.Context, out *Outcome, start time.Time, cause error) error {
	msg := model.Truncate(cause.Error(), maxJobErrorLength)
	completedAt := p.now().UTC()
	elapsed := p.now().Sub(start).Milliseconds()

	log.Printf("[Pipeline] completion failed, job failed (job_id=%s): %s", out.JobID, msg)
	err := p.deps.Jobs.Transition(ctx, out.JobID, model.JobStatusFailed, model.JobUpdate{
		CompletedAt:      &completedAt,
		ProcessingTimeMs: &elapsed,
		Error:            &msg,
	})
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", out.JobID, err)
	}
	out.Status = model.JobStatusFailed
	return nil
}

func (p *Pipeline) retrieve(ctx context.Context, job *model.Job) ([]model.SearchResult, StepResult) {
	if p.deps.Retriever == nil {
		return nil, Skipped("knowledge index not configured")
	}
	results, err := p.deps.Retriever.Retrieve(ctx, job.Event.Description)
	if err != nil {
		log.Printf("[Pipeline] RAG unavailable, continuing without context (job_id=%s): %v", job.ID, err)
		return nil, Degraded(err)
	}
	log.Printf("[Pipeline] RAG context (job_id=%s, hits=%d)", job.ID, len(results))
	return results, OK()
}

func (p *Pipeline) openTicket(ctx context.Context, job *model.Job, result model.AnalysisResult) (string, StepResult) {
	if !ShouldOpenTicket(result.Confidence, job.Event.Severity, result.Impact) {
		return "", Skipped("decision gate closed")
	}
	if p.deps.Ticketer == nil || !p.deps.Ticketer.IsConfigured() {
		return "", Skipped("ticketing not configured")
	}

	title := result.TicketTitle
	if title == "" {
		title = "[AI] " + model.Truncate(job.Event.Description, 60)
	}
	ticketID, err := p.deps.Ticketer.CreateTicket(ctx, client.TicketRequest{
		Title:      title,
		Body:       template.RenderTicketBody(job, result),
		PriorityID: MapPriority(result.TicketPriority),
		Tags:       []string{"ai-analysis", job.Event.Source, job.Event.Severity},
	})
	if err != nil {
		log.Printf("[Pipeline] ticket creation failed (job_id=%s): %v", job.ID, err)
		return "", Failed(err)
	}
	return ticketID, OK()
}

func (p *Pipeline) notify(ctx context.Context, job *model.Job, result model.AnalysisResult, ticketID string) StepResult {
	if p.deps.Notifier == nil {
		return Skipped("notifications not configured")
	}
	title, message := template.RenderNotification(job, result, ticketID)

	n := model.Notification{
		JobID:     job.ID,
		Title:     title,
		Message:   message,
		Priority:  NotifyPriority(result.Impact),
		Tags:      NotifyTags(result.Impact, ticketID != ""),
		Severity:  job.Event.Severity,
		Impact:    result.Impact,
		TicketID:  ticketID,
		ThreadKey: job.Event.Source + ":" + job.Event.Host,
	}
	if ticketID != "" && p.deps.Ticketer != nil {
		n.Click = p.deps.Ticketer.TicketURL(ticketID)
	}
	return p.deps.Notifier.Dispatch(ctx, n)
}

func (p *Pipeline) publish(ctx context.Context, job *model.Job, result model.AnalysisResult, c *client.Completion, ticketID string, completedAt time.Time, elapsed int64) StepResult {
	if p.deps.Events == nil {
		return Skipped("event stream not configured")
	}
	err := p.deps.Events.PublishAnalysis(ctx, model.AnalysisCompletedEvent{
		JobID:            job.ID,
		Status:           model.JobStatusCompleted,
		Source:           job.Event.Source,
		Host:             job.Event.Host,
		Severity:         job.Event.Severity,
		Result:           result,
		ModelUsed:        c.Model,
		Backend:          c.Backend,
		TicketID:         ticketID,
		ProcessingTimeMs: elapsed,
		CompletedAt:      completedAt.Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[Pipeline] event publish failed (job_id=%s): %v", job.ID, err)
		return Failed(err)
	}
	return OK()
}

func (p *Pipeline) remember(ctx context.Context, job *model.Job, result model.AnalysisResult) StepResult {
	if p.deps.Retriever == nil {
		return Skipped("knowledge index not configured")
	}
	metadata := map[string]any{
		"job_id":     job.ID,
		"source":     job.Event.Source,
		"host":       job.Event.Host,
		"severity":   job.Event.Severity,
		"impact":     result.Impact,
		"confidence": result.Confidence,
	}
	stored, err := p.deps.Retriever.Remember(ctx, template.KnowledgeSummary(job, result), job.ID, metadata)
	if err != nil {
		log.Printf("[Pipeline] knowledge store failed (job_id=%s): %v", job.ID, err)
		return Failed(err)
	}
	if !stored {
		return Skipped("identical knowledge entry exists")
	}
	return OK()
}

func (p *Pipeline) audit(ctx context.Context, job *model.Job, result model.AnalysisResult, c *client.Completion, ticketID string, elapsed int64) StepResult {
	if p.deps.Audit == nil {
		return Skipped("audit log not configured")
	}
	eventData, err := json.Marshal(job.Event)
	if err != nil {
		return Failed(err)
	}
	resultData, err := json.Marshal(result)
	if err != nil {
		return Failed(err)
	}

	entry := model.AnalysisLogEntry{
		JobID:            job.ID,
		EventSource:      job.Event.Source,
		EventData:        eventData,
		AnalysisResult:   resultData,
		ConfidenceScore:  ConfidenceScore(result.Confidence),
		ModelUsed:        c.Model,
		ProcessingTimeMs: elapsed,
	}
	if ticketID != "" {
		entry.TicketID = &ticketID
	}
	if _, err := p.deps.Audit.InsertAnalysisLog(ctx, entry); err != nil {
		log.Printf("[Pipeline] audit log failed (job_id=%s): %v", job.ID, err)
		return Failed(err)
	}
	return OK()
}
