// Package template renders the analysis prompt, ticket bodies and
// notification texts.
//
// 프롬프트 템플릿 변수 형식 ({{ / }} 는 리터럴 중괄호):
//
//	{alert_type}, {source}, {hostname}, {severity}, {timestamp},
//	{description}, {metrics}, {logs}, {crowdsec_alerts}, {rag_results}
package template

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kube-rca/rca-worker/internal/model"
)

const (
	// RAG 결과 1건당 프롬프트에 넣는 최대 길이
	ragSnippetLength = 300

	// NoSimilarIncidents - RAG 결과가 없을 때 프롬프트에 들어가는 문구
	NoSimilarIncidents = "Keine aehnlichen Incidents gefunden."

	// SystemPrompt - completion backend에 system 메시지로 전달
	SystemPrompt = "Du bist ein IT-Operations-Analyst. Antworte NUR mit validem JSON."
)

// FallbackPrompt - PROMPT_FILE을 읽지 못했을 때 사용하는 기본 프롬프트
const FallbackPrompt = `Du bist ein IT-Operations-Analyst fuer die Managed Control Platform (MCP).
Analysiere den folgenden Alert und erstelle einen strukturierten Incident-Bericht.
Antworte auf Deutsch. Sei praezise und technisch korrekt.

KONTEXT:
- Alert-Typ: {alert_type}
- Quelle: {source}
- Host: {hostname}
- Schweregrad: {severity}
- Zeitstempel: {timestamp}
- Beschreibung: {description}
- Aktuelle Metriken: {metrics}
- Letzte Log-Zeilen: {logs}
- Zusaetzlicher Kontext: {crowdsec_alerts}

HISTORISCH (RAG):
- Aehnliche Incidents:
{rag_results}

AUFGABE:
1. Root-Cause-Analyse (1-2 Saetze)
2. Auswirkung (Gering/Mittel/Hoch/Kritisch)
3. Betroffene Dienste/Kunden
4. Empfohlene Sofortmassnahme (konkrete Schritte)
5. Langfristige Loesung (Praevention)
6. Konfidenz (High/Medium/Low) mit Begruendung

FORMAT: JSON
{{
  "root_cause": "",
  "impact": "Gering|Mittel|Hoch|Kritisch",
  "affected_services": [],
  "immediate_action": "",
  "long_term_solution": "",
  "confidence": "High|Medium|Low",
  "confidence_reason": "",
  "ticket_title": "",
  "ticket_priority": "1_low|2_normal|3_high|4_urgent"
}}`

// LoadPrompt - 프롬프트 파일을 읽고, 없거나 비어 있으면 FallbackPrompt 반환
func LoadPrompt(path string) string {
	if path == "" {
		return FallbackPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[Template] prompt file not loaded, using fallback (path=%s): %v", path, err)
		return FallbackPrompt
	}
	if strings.TrimSpace(string(data)) == "" {
		log.Printf("[Template] prompt file empty, using fallback (path=%s)", path)
		return FallbackPrompt
	}
	log.Printf("[Template] prompt loaded (path=%s)", path)
	return string(data)
}

// PromptData - 프롬프트 렌더링에 사용할 Alert 데이터
type PromptData struct {
	Source       string
	Host         string
	Severity     string
	Timestamp    time.Time
	Description  string
	Metrics      map[string]any
	Logs         string
	ExtraContext string
}

// PromptDataFromJob - model.Job에서 PromptData 생성
func PromptDataFromJob(job *model.Job) PromptData {
	return PromptData{
		Source:       job.Event.Source,
		Host:         job.Event.Host,
		Severity:     job.Event.Severity,
		Timestamp:    job.CreatedAt,
		Description:  job.Event.Description,
		Metrics:      job.Event.Metrics,
		Logs:         job.Event.Logs,
		ExtraContext: job.Event.ExtraContext,
	}
}

// RenderPrompt - 템플릿 변수를 실제 값으로 치환
// 비어 있는 값은 기본 문구(unknown, keine 등)로 채움
func RenderPrompt(tmpl string, data PromptData, rag []model.SearchResult) string {
	ts := data.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	pairs := []string{
		"{{", "{",
		"}}", "}",
		"{alert_type}", orDefault(data.Source, "unknown"),
		"{source}", orDefault(data.Source, "unknown"),
		"{hostname}", orDefault(data.Host, "unknown"),
		"{severity}", orDefault(data.Severity, model.SeverityWarning),
		"{timestamp}", ts.UTC().Format(time.RFC3339),
		"{description}", orDefault(data.Description, "Keine Beschreibung"),
		"{metrics}", formatMetrics(data.Metrics),
		"{logs}", orDefault(data.Logs, "keine"),
		"{crowdsec_alerts}", orDefault(data.ExtraContext, "keine"),
		"{rag_results}", FormatRAGContext(rag),
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// FormatRAGContext - 유사 incident 목록을 프롬프트용 텍스트로 변환
func FormatRAGContext(results []model.SearchResult) string {
	if len(results) == 0 {
		return NoSimilarIncidents
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("  - [Aehnlichkeit: %.2f] %s", r.Similarity, model.Truncate(r.Content, ragSnippetLength)))
	}
	return strings.Join(lines, "\n")
}

// RenderTicketBody - Zammad article 본문 (text/html)
func RenderTicketBody(job *model.Job, result model.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("<h3>KI-Analyse</h3>")
	b.WriteString("<p>")
	writeHTMLField(&b, "Quelle", job.Event.Source)
	writeHTMLField(&b, "Host", job.Event.Host)
	writeHTMLField(&b, "Schweregrad", job.Event.Severity)
	writeHTMLField(&b, "Beschreibung", job.Event.Description)
	b.WriteString("</p><p>")
	writeHTMLField(&b, "Root Cause", result.RootCause)
	writeHTMLField(&b, "Auswirkung", result.Impact)
	if len(result.AffectedServices) > 0 {
		writeHTMLField(&b, "Betroffene Dienste", strings.Join(result.AffectedServices, ", "))
	}
	writeHTMLField(&b, "Sofortmassnahme", result.ImmediateAction)
	writeHTMLField(&b, "Langfristige Loesung", result.LongTermSolution)
	writeHTMLField(&b, "Konfidenz", strings.TrimSpace(result.Confidence+" "+parenthesize(result.ConfidenceReason)))
	b.WriteString("</p>")
	fmt.Fprintf(&b, "<p><small>Job %s</small></p>", html.EscapeString(job.ID))
	return b.String()
}

// RenderNotification - 운영자 알림 제목/본문
// 본문: host, impact, 원인, 조치 (+ 티켓 번호)
func RenderNotification(job *model.Job, result model.AnalysisResult, ticketID string) (string, string) {
	title := result.TicketTitle
	if strings.TrimSpace(title) == "" {
		title = model.Truncate(job.Event.Description, 80)
	}
	title = fmt.Sprintf("[%s] %s: %s", orDefault(result.Impact, "Mittel"), job.Event.Host, title)

	lines := []string{
		"Host: " + job.Event.Host,
		"Auswirkung: " + orDefault(result.Impact, "Mittel"),
		"Ursache: " + result.RootCause,
		"Massnahme: " + result.ImmediateAction,
	}
	if ticketID != "" {
		lines = append(lines, "Ticket: #"+ticketID)
	}
	return title, strings.Join(lines, "\n")
}

// KnowledgeSummary - 이후 RAG 검색에 쓰일 alert + 분석 결과 요약
func KnowledgeSummary(job *model.Job, result model.AnalysisResult) string {
	return strings.Join([]string{
		fmt.Sprintf("Alert: [%s] %s auf %s", job.Event.Severity, job.Event.Source, job.Event.Host),
		"Beschreibung: " + job.Event.Description,
		"Root Cause: " + result.RootCause,
		"Auswirkung: " + result.Impact,
		"Massnahme: " + result.ImmediateAction,
		"Loesung: " + result.LongTermSolution,
	}, "\n")
}

func writeHTMLField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "<b>%s:</b> %s<br>", label, html.EscapeString(value))
}

func parenthesize(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

// 키 정렬 후 JSON으로 직렬화 (프롬프트 결과가 매번 같도록)
func formatMetrics(metrics map[string]any) string {
	if len(metrics) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(metrics[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%q", fmt.Sprint(metrics[k])))
		}
		key, _ := json.Marshal(k)
		parts = append(parts, string(key)+": "+string(v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
