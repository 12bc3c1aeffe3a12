package service

import "strings"

// 긴급도 순위 (0: 알 수 없음 = 가장 낮음)
// impact는 프롬프트가 요구하는 독일어 라벨과 영어 라벨 모두 허용
var urgencyRank = map[string]int{
	"info":     1,
	"low":      1,
	"gering":   1,
	"warning":  2,
	"medium":   2,
	"mittel":   2,
	"high":     3,
	"hoch":     3,
	"critical": 4,
	"kritisch": 4,
}

var confidenceRank = map[string]int{
	"low":    1,
	"medium": 2,
	"high":   3,
}

var priorityIDs = map[string]int{
	"1_low":    1,
	"2_normal": 2,
	"3_high":   3,
	"4_urgent": 4,
}

const defaultPriorityID = 2

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isUrgent(label string) bool {
	return urgencyRank[normalizeLabel(label)] >= urgencyRank["high"]
}

// ShouldOpenTicket - confidence가 high/medium 이고
// severity 또는 impact가 high/critical 일 때만 true
func ShouldOpenTicket(confidence, severity, impact string) bool {
	if confidenceRank[normalizeLabel(confidence)] < confidenceRank["medium"] {
		return false
	}
	return isUrgent(severity) || isUrgent(impact)
}

// MapPriority - ticket_priority 라벨 → Zammad priority_id (알 수 없으면 2)
func MapPriority(label string) int {
	if id, ok := priorityIDs[normalizeLabel(label)]; ok {
		return id
	}
	return defaultPriorityID
}

// ConfidenceScore - 감사 로그용 수치 (high 0.9 / medium 0.6 / 그 외 0.3)
func ConfidenceScore(label string) float64 {
	switch normalizeLabel(label) {
	case "high":
		return 0.9
	case "medium":
		return 0.6
	default:
		return 0.3
	}
}

// NotifyPriority - impact/severity 라벨 → ntfy priority (1~5, 알 수 없으면 3)
func NotifyPriority(label string) int {
	switch normalizeLabel(label) {
	case "kritisch", "critical":
		return 5
	case "hoch", "high":
		return 4
	case "mittel", "medium", "warning":
		return 3
	case "gering", "low":
		return 2
	case "info":
		return 1
	default:
		return 3
	}
}

// NotifyTags - ntfy 태그 (emoji shortcode)
func NotifyTags(impact string, ticketCreated bool) []string {
	tags := []string{"robot"}
	switch NotifyPriority(impact) {
	case 5:
		tags = append(tags, "rotating_light")
	case 4:
		tags = append(tags, "warning")
	}
	if ticketCreated {
		tags = append(tags, "ticket")
	}
	return tags
}
