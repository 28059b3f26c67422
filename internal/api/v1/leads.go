package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"casevalue/internal/exporter"
	"casevalue/internal/model"
	"casevalue/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type listLeadsResponse struct {
	Items  []*model.Lead `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListLeads 线索列表
// GET /api/leads?form=&status=&since=&limit=&offset=
func (h *Handler) ListLeads(c *gin.Context) {
	q, err := parseLeadQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	items, err := h.store.ListLeads(ctx, q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	total, err := h.store.CountLeads(ctx, q)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, listLeadsResponse{
		Items:  items,
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// GetLead 线索详情
// GET /api/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	lead, err := h.store.GetLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// ExportLeads 导出线索 Excel
// GET /api/leads/export?form=&since=&perForm=true&funnel=true
func (h *Handler) ExportLeads(c *gin.Context) {
	since, err := parseSince(c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	perForm, _ := strconv.ParseBool(c.Query("perForm"))
	funnel, _ := strconv.ParseBool(c.Query("funnel"))

	file, err := h.exporter.ExportLeads(c.Request.Context(), exporter.ExportOptions{
		FormID:        c.Query("form"),
		Since:         since,
		PerFormSheets: perForm,
		IncludeFunnel: funnel,
	}, nil)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	// 设置响应头
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exporter.FileName(time.Now())))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	// 写入文件
	if err := file.Write(c.Writer); err != nil {
		h.logger.Error("failed to write export", zap.Error(err))
	}
}

func parseLeadQuery(c *gin.Context) (store.LeadQuery, error) {
	q := store.LeadQuery{
		FormID: c.Query("form"),
		Status: model.LeadStatus(c.Query("status")),
		Limit:  defaultPageSize,
	}
	switch q.Status {
	case "", model.LeadNew, model.LeadNotified, model.LeadNotifyFailed:
	default:
		return q, fmt.Errorf("invalid status %q", q.Status)
	}

	var err error
	if q.Since, err = parseSince(c.Query("since")); err != nil {
		return q, err
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return q, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = min(n, maxPageSize)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid offset %q", v)
		}
		q.Offset = n
	}
	return q, nil
}

// parseSince 接受 RFC3339 时间或 YYYY-MM-DD 日期（UTC 零点）
func parseSince(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid since %q", v)
}
