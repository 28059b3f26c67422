package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"casevalue/internal/store"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Version        string `json:"version"`
	Calculators    int    `json:"calculators"`    // 已加载的计算器数
	Forms          int    `json:"forms"`          // 评估表单数
	Leads          int    `json:"leads"`          // 线索总数
	ActiveSessions int    `json:"activeSessions"` // 进行中的会话数
	UptimeSeconds  int64  `json:"uptimeSeconds"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	leads, err := h.store.CountLeads(c.Request.Context(), store.LeadQuery{})
	if err != nil {
		h.logger.Warn("failed to count leads", zap.Error(err))
		leads = 0
	}

	c.JSON(http.StatusOK, StatusResponse{
		Version:        h.version,
		Calculators:    h.catalog.CalculatorCount(),
		Forms:          h.catalog.FormCount(),
		Leads:          leads,
		ActiveSessions: h.sessions.Len(),
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
	})
}
