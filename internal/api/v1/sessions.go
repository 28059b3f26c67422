package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"casevalue/internal/session"
)

type transitionResponse struct {
	Moved   bool         `json:"moved"`
	Session session.View `json:"session"`
}

// CreateSession 为计算器开始新会话，可附带初始答案
// POST /api/calculators/:id/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	calc, ok := h.catalog.Calculator(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "calculator not found"})
		return
	}

	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	view, err := h.sessions.Create(c.Request.Context(), calc, req.Answers)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetSession 会话快照
// GET /api/sessions/:sid
func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.sessions.Get(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateAnswers 批量更新答案
// PATCH /api/sessions/:sid/answers
func (h *Handler) UpdateAnswers(c *gin.Context) {
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	view, err := h.sessions.Update(c.Request.Context(), c.Param("sid"), req.Answers)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// NextStep 前进一步，最后一步时计算结果
// POST /api/sessions/:sid/next
func (h *Handler) NextStep(c *gin.Context) {
	view, moved, err := h.sessions.Next(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transitionResponse{Moved: moved, Session: view})
}

// PreviousStep 后退一步
// POST /api/sessions/:sid/back
func (h *Handler) PreviousStep(c *gin.Context) {
	view, moved, err := h.sessions.Back(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transitionResponse{Moved: moved, Session: view})
}

// ResetSession 重置会话
// POST /api/sessions/:sid/reset
func (h *Handler) ResetSession(c *gin.Context) {
	view, err := h.sessions.Reset(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteSession 放弃会话
// DELETE /api/sessions/:sid
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("sid")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
