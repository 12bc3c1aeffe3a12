package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AnalyzeResponse - POST /api/v1/analyze 응답
// status: queued | deduplicated
type AnalyzeResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type JobDetailEnvelope struct {
	Status string `json:"status"`
	Data   *Job   `json:"data"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Redis         string `json:"redis"`
	Postgres      string `json:"postgres"`
	QueueLength   int64  `json:"queue_length"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
