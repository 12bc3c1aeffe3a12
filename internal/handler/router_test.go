package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/service"
)

func newTestRouter(knowledge *KnowledgeHandler, secret string) *gin.Engine {
	return newTestRouterWithAudit(knowledge, nil, secret)
}

func newTestRouterWithAudit(knowledge *KnowledgeHandler, audit *AuditHandler, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	submitter := &fakeSubmitter{resp: &model.AnalyzeResponse{Status: "queued", JobID: "job-1"}}
	return NewRouter(Handlers{
		Analyze:      NewAnalyzeHandler(submitter),
		Alertmanager: NewAlertmanagerHandler(submitter),
		Jobs:         NewJobHandler(&fakeJobReader{jobs: map[string]*model.Job{}}),
		Knowledge:    knowledge,
		Audit:        audit,
		Health:       NewHealthHandler(&fakeQueueInspector{}, nil),
	}, service.NewGatewayAuth(config.AuthConfig{GatewaySecret: secret}), nil)
}

func TestRouterKnowledgeRoutesOptional(t *testing.T) {
	r := newTestRouter(nil, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search?query=x", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without knowledge store, got %d", w.Code)
	}

	r = newTestRouter(NewKnowledgeHandler(&fakeKnowledge{}), "")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search?query=x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRouterAuditRouteOptional(t *testing.T) {
	r := newTestRouter(nil, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1/audit", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without audit store, got %d", w.Code)
	}

	reader := &fakeAuditReader{}
	r = newTestRouterWithAudit(nil, NewAuditHandler(reader), "")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1/audit", nil))
	if w.Code != http.StatusOK || reader.gotJobID != "job-1" {
		t.Fatalf("code=%d job_id=%q", w.Code, reader.gotJobID)
	}

	// job 상세 라우트와 충돌하지 않음
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestRouterAuthScope(t *testing.T) {
	r := newTestRouter(nil, "s3cret")

	// 헬스체크 / 문서는 인증 없이 접근
	for _, path := range []string{"/ping", "/health", "/openapi.json"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}

	w := postJSON(r, "/api/v1/analyze", `{"source":"zabbix","description":"x"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
