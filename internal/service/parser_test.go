package service

import (
	"strings"
	"testing"
)

func TestParseAnalysisFencedJSON(t *testing.T) {
	raw := "```json\n{\"root_cause\":\"disk full\",\"impact\":\"Hoch\",\"confidence\":\"High\",\"affected_services\":[\"postgres\"],\"ticket_priority\":\"3_high\"}\n```"

	got, ok := ParseAnalysisOK(raw)
	if !ok {
		t.Fatalf("expected successful parse")
	}
	if got.Confidence != "High" || got.RootCause != "disk full" || got.Impact != "Hoch" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(got.AffectedServices) != 1 || got.AffectedServices[0] != "postgres" {
		t.Fatalf("affected services = %v", got.AffectedServices)
	}
}

func TestParseAnalysisVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{name: "plain-json", raw: `{"confidence":"Medium"}`, ok: true},
		{name: "bare-fence", raw: "```\n{\"confidence\":\"Medium\"}\n```", ok: true},
		{name: "surrounding-whitespace", raw: "\n\n  ```json\n{\"confidence\":\"Medium\"}\n```  \n", ok: true},
		{name: "prose", raw: "The disk is probably full.", ok: false},
		{name: "empty", raw: "", ok: false},
		{name: "truncated-json", raw: `{"confidence":"High"`, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAnalysisOK(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (result %+v)", ok, tt.ok, got)
			}
			if ok && got.Confidence != "Medium" {
				t.Fatalf("confidence = %q", got.Confidence)
			}
		})
	}
}

func TestParseAnalysisDegradedDefault(t *testing.T) {
	raw := strings.Repeat("x", 500)
	got := ParseAnalysis(raw)

	if got.Confidence != "Low" || got.Impact != "Mittel" || got.ConfidenceReason != "parsing failed" {
		t.Fatalf("unexpected degraded result: %+v", got)
	}
	if got.ImmediateAction != "manual analysis required" || got.TicketPriority != "2_normal" || got.TicketTitle == "" {
		t.Fatalf("unexpected degraded result: %+v", got)
	}
	if len(got.RootCause) != 300 {
		t.Fatalf("root cause length = %d, want 300", len(got.RootCause))
	}

	if got := ParseAnalysis("not json"); got.Confidence != "Low" || got.RootCause != "not json" {
		t.Fatalf("unexpected degraded result: %+v", got)
	}
}
