package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"casevalue/internal/model"
)

//go:embed calculators/*.toml evaluations/*.toml
var definitions embed.FS

const (
	calculatorDir = "calculators"
	evaluationDir = "evaluations"
)

// Catalog 计算器与评估表单目录，加载后只读
type Catalog struct {
	calculators []*model.Calculator
	byID        map[string]*model.Calculator
	forms       []*model.EvaluationForm
	formByID    map[string]*model.EvaluationForm
}

// Filter 计算器大厅筛选条件
type Filter struct {
	Category model.Category // 空表示全部
	Query    string         // 名称/描述关键字，大小写不敏感
}

// Load 加载内置定义
func Load() (*Catalog, error) {
	return LoadFS(definitions)
}

// LoadFS 从指定文件系统加载定义（目录结构同内置：calculators/、evaluations/）
func LoadFS(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		byID:     make(map[string]*model.Calculator),
		formByID: make(map[string]*model.EvaluationForm),
	}

	var errs []error

	calcFiles, err := fs.Glob(fsys, path.Join(calculatorDir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list calculator definitions: %w", err)
	}
	for _, name := range calcFiles {
		calc := &model.Calculator{}
		if err := decodeFile(fsys, name, calc); err != nil {
			errs = append(errs, err)
			continue
		}
		if problems := Validate(calc); len(problems) > 0 {
			errs = append(errs, fmt.Errorf("%s: %s", name, strings.Join(problems, "; ")))
			continue
		}
		if _, dup := c.byID[calc.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate calculator id %q", name, calc.ID))
			continue
		}
		c.byID[calc.ID] = calc
		c.calculators = append(c.calculators, calc)
	}

	formFiles, err := fs.Glob(fsys, path.Join(evaluationDir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation forms: %w", err)
	}
	for _, name := range formFiles {
		form := &model.EvaluationForm{}
		if err := decodeFile(fsys, name, form); err != nil {
			errs = append(errs, err)
			continue
		}
		if problems := ValidateForm(form); len(problems) > 0 {
			errs = append(errs, fmt.Errorf("%s: %s", name, strings.Join(problems, "; ")))
			continue
		}
		if _, dup := c.formByID[form.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate form id %q", name, form.ID))
			continue
		}
		c.formByID[form.ID] = form
		c.forms = append(c.forms, form)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sortCalculators(c.calculators)
	sort.Slice(c.forms, func(i, j int) bool { return c.forms[i].ID < c.forms[j].ID })
	return c, nil
}

func decodeFile(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// 按分类展示顺序，再按名称
func sortCalculators(list []*model.Calculator) {
	rank := make(map[model.Category]int, len(model.Categories))
	for i, cat := range model.Categories {
		rank[cat] = i
	}
	sort.SliceStable(list, func(i, j int) bool {
		ri, rj := rank[list[i].Category], rank[list[j].Category]
		if ri != rj {
			return ri < rj
		}
		return list[i].Name < list[j].Name
	})
}

// Calculator 按 ID 获取计算器
func (c *Catalog) Calculator(id string) (*model.Calculator, bool) {
	calc, ok := c.byID[id]
	return calc, ok
}

// Calculators 列出计算器摘要
func (c *Catalog) Calculators(filter Filter) []model.CalculatorSummary {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]model.CalculatorSummary, 0, len(c.calculators))
	for _, calc := range c.calculators {
		if filter.Category != "" && calc.Category != filter.Category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(calc.Name), query) &&
			!strings.Contains(strings.ToLower(calc.Description), query) {
			continue
		}
		out = append(out, calc.Summary())
	}
	return out
}

// Form 按 ID 获取评估表单
func (c *Catalog) Form(id string) (*model.EvaluationForm, bool) {
	form, ok := c.formByID[id]
	return form, ok
}

// Forms 列出全部评估表单
func (c *Catalog) Forms() []*model.EvaluationForm {
	out := make([]*model.EvaluationForm, len(c.forms))
	copy(out, c.forms)
	return out
}

// CalculatorCount 计算器数量
func (c *Catalog) CalculatorCount() int {
	return len(c.calculators)
}

// FormCount 表单数量
func (c *Catalog) FormCount() int {
	return len(c.forms)
}
