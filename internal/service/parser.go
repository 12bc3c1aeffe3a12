package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kube-rca/rca-worker/internal/model"
)

// 파싱 실패 시 기본값
const (
	degradedRootCauseLength = 300
	degradedImpact          = "Mittel"
	degradedConfidence      = "Low"
	degradedReason          = "parsing failed"
	degradedAction          = "manual analysis required"
	degradedTicketTitle     = "[AI] Alert analysis requires manual review"
	degradedTicketPriority  = "2_normal"
)

// ```json ... ``` 또는 ``` ... ``` 블록 하나
var fencedBlock = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?```$")

// ParseAnalysis - LLM 응답 텍스트를 AnalysisResult로 변환 (실패하지 않음)
func ParseAnalysis(raw string) model.AnalysisResult {
	result, _ := ParseAnalysisOK(raw)
	return result
}

// ParseAnalysisOK - ParseAnalysis + JSON 디코딩 성공 여부
// false면 degraded 기본값을 반환한 것
func ParseAnalysisOK(raw string) (model.AnalysisResult, bool) {
	body := stripFence(raw)

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return DegradedAnalysis(raw), false
	}
	return result, true
}

// DegradedAnalysis - 구조화에 실패한 응답에 대한 고정 기본값
func DegradedAnalysis(raw string) model.AnalysisResult {
	return model.AnalysisResult{
		RootCause:        model.Truncate(raw, degradedRootCauseLength),
		Impact:           degradedImpact,
		AffectedServices: []string{},
		Confidence:       degradedConfidence,
		ConfidenceReason: degradedReason,
		ImmediateAction:  degradedAction,
		TicketTitle:      degradedTicketTitle,
		TicketPriority:   degradedTicketPriority,
	}
}

func stripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}
