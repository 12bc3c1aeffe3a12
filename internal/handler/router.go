package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers - 라우터에 연결할 핸들러 묶음
type Handlers struct {
	Analyze      *AnalyzeHandler
	Alertmanager *AlertmanagerHandler
	Jobs         *JobHandler
	Knowledge    *KnowledgeHandler
	Audit        *AuditHandler
	Health       *HealthHandler
}

// NewRouter - 게이트웨이 라우트 구성
// Knowledge, Audit가 nil이면 (pgvector 미사용) 해당 API는 등록하지 않음
func NewRouter(h Handlers, auth tokenVerifier, allowedOrigins []string) *gin.Engine {
	router := gin.Default()
	router.Use(CORSMiddleware(allowedOrigins))

	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/health", h.Health.Health)
	router.GET("/openapi.json", OpenAPIDoc)

	api := router.Group("/api/v1")
	api.Use(AuthMiddleware(auth))
	api.POST("/analyze", h.Analyze.Analyze)
	api.POST("/alertmanager", h.Alertmanager.Webhook)
	api.GET("/jobs", h.Jobs.ListJobs)
	api.GET("/jobs/:id", h.Jobs.GetJob)
	if h.Audit != nil {
		api.GET("/jobs/:id/audit", h.Audit.GetJobAudit)
	}
	if h.Knowledge != nil {
		api.POST("/embed", h.Knowledge.CreateEmbedding)
		api.GET("/search", h.Knowledge.Search)
		api.POST("/ingest", h.Knowledge.Ingest)
	}

	return router
}
