package exporter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"casevalue/internal/model"
	"casevalue/internal/store"
)

const (
	leadsSheet  = "Leads"
	funnelSheet = "Funnel"
	timeLayout  = "2006-01-02 15:04:05"
)

// Source 导出数据来源
type Source interface {
	ListLeads(ctx context.Context, q store.LeadQuery) ([]*model.Lead, error)
	EventFunnel(ctx context.Context, calculatorID string) ([]store.FunnelRow, error)
}

// FormSource 评估表单定义（用于按表单分页的列头）
type FormSource interface {
	Form(id string) (*model.EvaluationForm, bool)
}

// Exporter 线索导出器
type Exporter struct {
	source Source
	forms  FormSource
}

// NewExporter 创建导出器
func NewExporter(source Source, forms FormSource) *Exporter {
	return &Exporter{
		source: source,
		forms:  forms,
	}
}

// ExportOptions 导出选项
type ExportOptions struct {
	FormID        string    // 为空表示全部表单
	Since         time.Time // 零值表示不限
	PerFormSheets bool      // 每个表单单独一页，列为表单字段
	IncludeFunnel bool      // 附加计算器漏斗统计页
}

var leadHeader = []any{"ID", "Created (UTC)", "Form", "Practice Area", "Name", "Email", "Phone", "Status", "Notified At (UTC)", "Details"}

// ExportLeads 导出线索工作簿
func (e *Exporter) ExportLeads(ctx context.Context, opts ExportOptions, progress func(ProgressEvent)) (*excelize.File, error) {
	reportProgress(progress, 0, "loading leads")
	leads, err := e.source.ListLeads(ctx, store.LeadQuery{FormID: opts.FormID, Since: opts.Since})
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}

	f := excelize.NewFile()
	if err := e.fill(ctx, f, leads, opts, progress); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	reportProgress(progress, 100, "done")
	return f, nil
}

func (e *Exporter) fill(ctx context.Context, f *excelize.File, leads []*model.Lead, opts ExportOptions, progress func(ProgressEvent)) error {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	// 新工作簿自带 Sheet1
	if err := f.SetSheetName("Sheet1", leadsSheet); err != nil {
		return err
	}
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, []any{
			l.ID, formatTime(l.CreatedAt), l.FormID, l.PracticeArea,
			l.Name, l.Email, l.Phone, string(l.Status),
			formatTimePtr(l.NotifiedAt), details(l),
		})
	}
	if err := writeSheet(f, leadsSheet, leadHeader, rows, header); err != nil {
		return err
	}
	reportProgress(progress, 40, "leads sheet")

	if opts.PerFormSheets {
		if err := e.writeFormSheets(f, leads, header); err != nil {
			return err
		}
		reportProgress(progress, 70, "form sheets")
	}

	if opts.IncludeFunnel {
		funnel, err := e.source.EventFunnel(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to load event funnel: %w", err)
		}
		if err := writeFunnel(f, funnel, header); err != nil {
			return err
		}
		reportProgress(progress, 90, "funnel sheet")
	}
	return nil
}

// writeFormSheets 按表单分页，列为表单字段标签
func (e *Exporter) writeFormSheets(f *excelize.File, leads []*model.Lead, header int) error {
	byForm := make(map[string][]*model.Lead)
	for _, l := range leads {
		byForm[l.FormID] = append(byForm[l.FormID], l)
	}
	ids := make([]string, 0, len(byForm))
	for id := range byForm {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	used := map[string]bool{
		strings.ToLower(leadsSheet):  true,
		strings.ToLower(funnelSheet): true,
	}
	for _, id := range ids {
		form, ok := e.forms.Form(id)
		if !ok {
			continue
		}
		sheet := sheetName(form.ID, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		cols := []any{"ID", "Created (UTC)", "Status"}
		for _, field := range form.Fields {
			cols = append(cols, field.Label)
		}
		rows := make([][]any, 0, len(byForm[id]))
		for _, l := range byForm[id] {
			row := []any{l.ID, formatTime(l.CreatedAt), string(l.Status)}
			for _, field := range form.Fields {
				row = append(row, strings.Join(l.Fields[field.Key], ", "))
			}
			rows = append(rows, row)
		}
		if err := writeSheet(f, sheet, cols, rows, header); err != nil {
			return err
		}
	}
	return nil
}

func writeFunnel(f *excelize.File, funnel []store.FunnelRow, header int) error {
	if _, err := f.NewSheet(funnelSheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", funnelSheet, err)
	}
	cols := []any{"Calculator", "Started", "Step Completed", "Calculated", "Abandoned", "Completion Rate"}
	rows := make([][]any, 0, len(funnel))
	for _, r := range funnel {
		rows = append(rows, []any{r.CalculatorID, r.Started, r.StepCompleted, r.Calculated, r.Abandoned, r.CompletionRate()})
	}
	if err := writeSheet(f, funnelSheet, cols, rows, header); err != nil {
		return err
	}

	pct, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		end := fmt.Sprintf("F%d", len(rows)+1)
		if err := f.SetCellStyle(funnelSheet, "F2", end, pct); err != nil {
			return err
		}
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 20)
}

// details 非联系人字段，key=value 形式，按 key 排序
func details(l *model.Lead) string {
	keys := make([]string, 0, len(l.Fields))
	for k := range l.Fields {
		switch k {
		case "firstName", "lastName", "email", "phone":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(l.Fields[k], ", "))
	}
	return strings.Join(parts, "; ")
}

const maxSheetName = 31

// sheetName Excel 工作表名最长 31 个字符，不能含 []:*?/\，不区分大小写且不可重名
func sheetName(id string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, id)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Form"
	}
	base := []rune(name)
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}

	name = string(base)
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		keep := min(len(base), maxSheetName-len(suffix))
		name = string(base[:keep]) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FileName 导出文件名
func FileName(now time.Time) string {
	return fmt.Sprintf("leads-%s.xlsx", now.UTC().Format("20060102-150405"))
}
