package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"casevalue/internal/model"
)

type evaluationSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PracticeArea string `json:"practiceArea"`
	Route        string `json:"route"`
}

type submissionResponse struct {
	ID        string           `json:"id"`
	Status    model.LeadStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ListEvaluations 评估表单列表
// GET /api/evaluations
func (h *Handler) ListEvaluations(c *gin.Context) {
	forms := h.catalog.Forms()
	items := make([]evaluationSummary, 0, len(forms))
	for _, f := range forms {
		items = append(items, evaluationSummary{
			ID:           f.ID,
			Name:         f.Name,
			PracticeArea: f.PracticeArea,
			Route:        f.Route,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// GetEvaluation 评估表单定义
// GET /api/evaluations/:form
func (h *Handler) GetEvaluation(c *gin.Context) {
	form, ok := h.catalog.Form(c.Param("form"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "evaluation form not found"})
		return
	}
	c.JSON(http.StatusOK, form)
}

// SubmitEvaluation 提交评估表单，生成线索
// POST /api/evaluations/:form
func (h *Handler) SubmitEvaluation(c *gin.Context) {
	var values model.FieldValues
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	lead, err := h.intake.Submit(c.Request.Context(), c.Param("form"), values)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submissionResponse{
		ID:        lead.ID,
		Status:    lead.Status,
		CreatedAt: lead.CreatedAt,
	})
}
