// Alertmanager 웹훅 페이로드
// POST /api/v1/alertmanager 로 받은 그룹 알림을 AlertEvent 여러 건으로 변환

package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AlertmanagerWebhook - Alertmanager 웹훅 페이로드
// 여러 개의 알림이 그룹으로 묶여서 전송 가능
type AlertmanagerWebhook struct {
	Version  string `json:"version"`
	GroupKey string `json:"groupKey"`
	Status   string `json:"status"`
	Receiver string `json:"receiver"`

	// 그룹 내 모든 알림에 공통으로 존재하는 라벨 / 어노테이션
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`

	Alerts []AlertmanagerAlert `json:"alerts"`
}

// AlertmanagerAlert - 개별 알림
type AlertmanagerAlert struct {
	// firing | resolved
	Status string `json:"status"`

	// alertname, severity, namespace, pod, instance ...
	Labels map[string]string `json:"labels"`

	// summary, description, runbook_url ...
	Annotations map[string]string `json:"annotations"`

	StartsAt     time.Time `json:"startsAt"`
	EndsAt       time.Time `json:"endsAt"`
	GeneratorURL string    `json:"generatorURL"`
	Fingerprint  string    `json:"fingerprint"`
}

// Alertmanager severity → AlertEvent severity
var alertmanagerSeverity = map[string]string{
	"critical": SeverityCritical,
	"page":     SeverityCritical,
	"error":    SeverityHigh,
	"high":     SeverityHigh,
	"warning":  SeverityWarning,
	"info":     SeverityInfo,
	"none":     SeverityInfo,
}

// IsFiring - resolved 알림은 분석 대상이 아님
func (a AlertmanagerAlert) IsFiring() bool {
	return a.Status == "" || a.Status == "firing"
}

// ToAlertEvent - 개별 알림을 분석 요청으로 변환
// host: instance > pod > service > namespace 라벨 순으로 선택
func (a AlertmanagerAlert) ToAlertEvent() AlertEvent {
	description := firstNonEmpty(a.Annotations["description"], a.Annotations["summary"], a.Labels["alertname"])
	if name := a.Labels["alertname"]; name != "" && !strings.HasPrefix(description, name) {
		description = fmt.Sprintf("%s: %s", name, description)
	}

	severity, ok := alertmanagerSeverity[strings.ToLower(a.Labels["severity"])]
	if !ok {
		severity = SeverityWarning
	}

	metrics := make(map[string]any, len(a.Labels)+1)
	for k, v := range a.Labels {
		metrics[k] = v
	}
	if !a.StartsAt.IsZero() {
		metrics["starts_at"] = a.StartsAt.UTC().Format(time.RFC3339)
	}

	return AlertEvent{
		Source:       "alertmanager",
		Severity:     severity,
		Host:         firstNonEmpty(a.Labels["instance"], a.Labels["pod"], a.Labels["service"], a.Labels["namespace"]),
		Description:  description,
		Metrics:      metrics,
		ExtraContext: a.extraContext(),
	}
}

// 나머지 어노테이션 + generator URL
func (a AlertmanagerAlert) extraContext() string {
	keys := make([]string, 0, len(a.Annotations))
	for k := range a.Annotations {
		if k == "description" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, a.Annotations[k])
	}
	if a.GeneratorURL != "" {
		fmt.Fprintf(&b, "generator: %s\n", a.GeneratorURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
