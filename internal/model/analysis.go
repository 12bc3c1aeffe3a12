package model

import (
	"encoding/json"
	"time"
)

// AnalysisResult - LLM 응답에서 추출한 구조화된 장애 분석 결과
type AnalysisResult struct {
	RootCause        string   `json:"root_cause"`
	Impact           string   `json:"impact"` // Gering | Mittel | Hoch | Kritisch (low..critical도 허용)
	AffectedServices []string `json:"affected_services"`
	ImmediateAction  string   `json:"immediate_action"`
	LongTermSolution string   `json:"long_term_solution"`
	Confidence       string   `json:"confidence"` // High | Medium | Low
	ConfidenceReason string   `json:"confidence_reason"`
	TicketTitle      string   `json:"ticket_title"`
	TicketPriority   string   `json:"ticket_priority"` // 1_low | 2_normal | 3_high | 4_urgent
}

// AnalysisLogEntry - analysis_log 테이블 감사 레코드
type AnalysisLogEntry struct {
	ID               int64           `json:"id"`
	JobID            string          `json:"job_id"`
	EventSource      string          `json:"event_source"`
	EventData        json.RawMessage `json:"event_data" swaggertype:"object"`
	AnalysisResult   json.RawMessage `json:"analysis_result" swaggertype:"object"`
	ConfidenceScore  float64         `json:"confidence_score"`
	TicketID         *string         `json:"ticket_id"`
	ModelUsed        string          `json:"model_used"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AnalysisLogListResponse - job별 감사 레코드 조회 응답
type AnalysisLogListResponse struct {
	JobID   string             `json:"job_id"`
	Entries []AnalysisLogEntry `json:"entries"`
	Count   int                `json:"count"`
}
