package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
)

func TestToSlackMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bold-label",
			input: "**Ursache:** Logrotation gestoppt",
			want:  "*Ursache:* Logrotation gestoppt",
		},
		{
			name:  "several-bold-spans-per-line",
			input: "**Auswirkung:** Hoch, **Host:** db01",
			want:  "*Auswirkung:* Hoch, *Host:* db01",
		},
		{
			name:  "inline-command-untouched",
			input: "Massnahme: `du -sh /var/log/**` ausfuehren",
			want:  "Massnahme: `du -sh /var/log/**` ausfuehren",
		},
		{
			name:  "code-block-untouched",
			input: "```\n**kein fett**\n## keine Ueberschrift\n```\n**Massnahme:** Platz schaffen",
			want:  "```\n**kein fett**\n## keine Ueberschrift\n```\n*Massnahme:* Platz schaffen",
		},
		{
			name:  "heading",
			input: "## Analyse\nDatenbank antwortet nicht",
			want:  "*Analyse*\nDatenbank antwortet nicht",
		},
		{
			name:  "plain-notification-lines",
			input: "Host: db01\nAuswirkung: Kritisch\nTicket: #42",
			want:  "Host: db01\nAuswirkung: Kritisch\nTicket: #42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toSlackMarkdown(tt.input); got != tt.want {
				t.Fatalf("toSlackMarkdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlackNotifyConvertsAnalysisMarkdown(t *testing.T) {
	var msg SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&msg)
		_, _ = io.WriteString(w, `{"ok":true,"ts":"1700000000.000200"}`)
	}))
	defer srv.Close()

	c := NewSlackClient(config.SlackConfig{BotToken: "xoxb-test", ChannelID: "C123"})
	c.apiURL = srv.URL

	n := model.Notification{
		Title:     "[Hoch] db01: Festplatte voll",
		Message:   "Host: db01\nUrsache: **Logrotation** gestoppt\nMassnahme: `logrotate -f /etc/logrotate.conf`",
		Priority:  4,
		ThreadKey: "zabbix:db01",
	}
	if err := c.Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(msg.Attachments))
	}
	want := "Host: db01\nUrsache: *Logrotation* gestoppt\nMassnahme: `logrotate -f /etc/logrotate.conf`"
	if got := msg.Attachments[0].Text; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
}
