package model

import "time"

// Job 상태 값
//
//	pending -[dequeue]-> processing -[성공]-> completed
//	processing -[completion 실패]-> failed
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job - AlertEvent 하나의 처리 상태 레코드
// Redis hash로 저장되며 직렬화는 db 레이어에서만 수행
type Job struct {
	ID               string          `json:"id"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	Status           string          `json:"status"`
	Event            AlertEvent      `json:"event"`
	Result           *AnalysisResult `json:"result,omitempty"`
	ModelUsed        string          `json:"model_used,omitempty"`
	Backend          string          `json:"backend,omitempty"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	TicketID         string          `json:"ticket_id,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// IsTerminal - completed/failed 여부
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// JobUpdate - Transition 시 변경할 필드 (nil이면 유지)
type JobUpdate struct {
	CompletedAt      *time.Time
	Result           *AnalysisResult
	ModelUsed        *string
	Backend          *string
	ProcessingTimeMs *int64
	TicketID         *string
	Error            *string
}

// JobListResponse - Job 목록 조회 응답
type JobListResponse struct {
	Jobs   []Job `json:"jobs"`
	Total  int64 `json:"total"`
	Offset int64 `json:"offset"`
	Limit  int64 `json:"limit"`
}
