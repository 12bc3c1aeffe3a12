package model

// Notification - 분석 완료 후 운영자에게 보내는 메시지
// ntfy / Slack / 이벤트 스트림이 같은 값을 사용
type Notification struct {
	JobID    string
	Title    string
	Message  string
	Priority int      // 1(min) ~ 5(max), ntfy 기준
	Tags     []string // ntfy 태그 (emoji shortcode)
	Severity string
	Impact   string
	TicketID string
	Click    string // 클릭 시 열 URL (티켓 링크)

	// 같은 source/host 알림을 Slack 한 쓰레드로 묶기 위한 키
	ThreadKey string
}

// AnalysisCompletedEvent - 이벤트 스트림으로 발행하는 분석 완료 이벤트
type AnalysisCompletedEvent struct {
	JobID            string         `json:"job_id"`
	Status           string         `json:"status"`
	Source           string         `json:"source"`
	Host             string         `json:"host"`
	Severity         string         `json:"severity"`
	Result           AnalysisResult `json:"result"`
	ModelUsed        string         `json:"model_used"`
	Backend          string         `json:"backend"`
	TicketID         string         `json:"ticket_id,omitempty"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	CompletedAt      string         `json:"completed_at"`
}
