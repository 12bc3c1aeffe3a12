// 수집 게이트웨이로 들어오는 알림(AlertEvent) 구조체 정의
// handler, service, db 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import "strings"

// 심각도 값 (허용 목록 밖의 값은 warning으로 보정)
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// 입력 필드 길이 제한
const (
	MaxDescriptionLength  = 4000
	MaxLogsLength         = 20000
	MaxExtraContextLength = 10000
	MaxMetricKeys         = 50
)

// AlertEvent - 분석 대상이 되는 개별 알림
type AlertEvent struct {
	// 이벤트 소스 (예: zabbix, loki, crowdsec)
	Source string `json:"source" binding:"required"`

	// info | warning | high | critical
	Severity string `json:"severity"`

	// 문제 발생 호스트/서비스
	Host string `json:"host"`

	Description  string         `json:"description" binding:"required"`
	Metrics      map[string]any `json:"metrics,omitempty"`
	Logs         string         `json:"logs,omitempty"`
	ExtraContext string         `json:"extra_context,omitempty"`
}

// Normalize - severity 보정과 길이 제한을 적용
// 잘못된 severity는 거부하지 않고 warning으로 바꿈
func (a *AlertEvent) Normalize() {
	a.Source = strings.TrimSpace(a.Source)
	a.Host = strings.TrimSpace(a.Host)
	if a.Host == "" {
		a.Host = "unknown"
	}
	a.Severity = NormalizeSeverity(a.Severity)
	a.Description = truncateRunes(a.Description, MaxDescriptionLength)
	a.Logs = truncateRunes(a.Logs, MaxLogsLength)
	a.ExtraContext = truncateRunes(a.ExtraContext, MaxExtraContextLength)

	if len(a.Metrics) > MaxMetricKeys {
		trimmed := make(map[string]any, MaxMetricKeys)
		for k, v := range a.Metrics {
			if len(trimmed) == MaxMetricKeys {
				break
			}
			trimmed[k] = v
		}
		a.Metrics = trimmed
	}
}

// NormalizeSeverity - 허용된 severity만 통과시키고 나머지는 warning
func NormalizeSeverity(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	switch s {
	case SeverityInfo, SeverityWarning, SeverityHigh, SeverityCritical:
		return s
	default:
		return SeverityWarning
	}
}

// Truncate - 문자열을 최대 n개의 rune으로 자름
func Truncate(s string, n int) string {
	return truncateRunes(s, n)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
