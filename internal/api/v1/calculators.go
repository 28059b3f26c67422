package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"casevalue/internal/catalog"
	"casevalue/internal/estimator"
	"casevalue/internal/model"
)

type answersRequest struct {
	Answers model.Answers `json:"answers"`
}

// ListCalculators 计算器大厅列表
// GET /api/calculators?category=&q=
func (h *Handler) ListCalculators(c *gin.Context) {
	filter := catalog.Filter{
		Category: model.Category(c.Query("category")),
		Query:    c.Query("q"),
	}
	items := h.catalog.Calculators(filter)
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// GetCalculator 计算器完整定义
// GET /api/calculators/:id
func (h *Handler) GetCalculator(c *gin.Context) {
	calc, ok := h.catalog.Calculator(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "calculator not found"})
		return
	}
	c.JSON(http.StatusOK, calc)
}

// Estimate 无状态估算
// POST /api/calculators/:id/estimate[?strict=true]
//
// strict 模式下存在未识别或缺失的答案时返回 422。
func (h *Handler) Estimate(c *gin.Context) {
	calc, ok := h.catalog.Calculator(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "calculator not found"})
		return
	}

	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	strict, _ := strconv.ParseBool(c.Query("strict"))
	if strict {
		if keys := estimator.Unrecognized(calc, req.Answers); len(keys) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unrecognized answers", "unrecognized": keys})
			return
		}
	}

	c.JSON(http.StatusOK, estimator.Estimate(calc, req.Answers))
}
