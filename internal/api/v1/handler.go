package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"casevalue/internal/catalog"
	"casevalue/internal/exporter"
	"casevalue/internal/intake"
	"casevalue/internal/session"
	"casevalue/internal/store"
)

// Options 处理器依赖
type Options struct {
	Catalog    *catalog.Catalog
	Sessions   *session.Manager
	Intake     *intake.Service
	Store      *store.Store
	Exporter   *exporter.Exporter
	AdminToken string
	Version    string
	Logger     *zap.Logger
}

// Handler V1 API 处理器
type Handler struct {
	catalog    *catalog.Catalog
	sessions   *session.Manager
	intake     *intake.Service
	store      *store.Store
	exporter   *exporter.Exporter
	adminToken string
	version    string
	logger     *zap.Logger
	startedAt  time.Time
}

// NewHandler 创建 V1 API 处理器
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalog:    opts.Catalog,
		sessions:   opts.Sessions,
		intake:     opts.Intake,
		store:      opts.Store,
		exporter:   opts.Exporter,
		adminToken: opts.AdminToken,
		version:    opts.Version,
		logger:     logger.Named("api"),
		startedAt:  time.Now(),
	}
}

// RegisterRoutes 注册 V1 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 计算器
	router.GET("/calculators", h.ListCalculators)
	router.GET("/calculators/:id", h.GetCalculator)
	router.POST("/calculators/:id/estimate", h.Estimate)
	router.POST("/calculators/:id/sessions", h.CreateSession)

	// 分步表单会话
	router.GET("/sessions/:sid", h.GetSession)
	router.PATCH("/sessions/:sid/answers", h.UpdateAnswers)
	router.POST("/sessions/:sid/next", h.NextStep)
	router.POST("/sessions/:sid/back", h.PreviousStep)
	router.POST("/sessions/:sid/reset", h.ResetSession)
	router.DELETE("/sessions/:sid", h.DeleteSession)

	// 案件评估表单
	router.GET("/evaluations", h.ListEvaluations)
	router.GET("/evaluations/:form", h.GetEvaluation)
	router.POST("/evaluations/:form", h.SubmitEvaluation)

	// 线索管理（需要管理令牌）
	admin := router.Group("/leads", h.requireAdmin)
	admin.GET("", h.ListLeads)
	admin.GET("/export", h.ExportLeads)
	admin.GET("/:id", h.GetLead)
}
