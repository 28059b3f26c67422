package catalog

import (
	"fmt"
	"slices"

	"casevalue/internal/model"
)

// Validate 校验计算器定义，返回问题列表（为空表示合法）
func Validate(calc *model.Calculator) []string {
	if calc == nil {
		return []string{"calculator is nil"}
	}

	errs := make([]string, 0, 4)

	if calc.ID == "" {
		errs = append(errs, "id is required")
	}
	if calc.Name == "" {
		errs = append(errs, "name is required")
	}
	if !slices.Contains(model.Categories, calc.Category) {
		errs = append(errs, fmt.Sprintf("unknown category %q", calc.Category))
	}
	if calc.Base.Min < 0 || calc.Base.Max < calc.Base.Min {
		errs = append(errs, "base range must satisfy 0 <= min <= max")
	}
	if calc.RoundTo < 1 {
		errs = append(errs, "round_to must be >= 1")
	}
	if calc.Clamp.MinFloor < 0 || calc.Clamp.MaxFloor < 0 {
		errs = append(errs, "clamp floors must not be negative")
	}
	if calc.Clamp.MaxRatio != 0 && calc.Clamp.MaxRatio < 1 {
		errs = append(errs, "clamp max_ratio must be 0 or >= 1")
	}
	// 未启用倍数约束时，只有 min_floor <= max_floor 才能保证 min <= max
	if calc.Clamp.MaxRatio == 0 && calc.Clamp.MinFloor > calc.Clamp.MaxFloor {
		errs = append(errs, "clamp min_floor must not exceed max_floor when max_ratio is 0")
	}
	if len(calc.Steps) == 0 {
		errs = append(errs, "at least one step is required")
	}

	questions := make(map[string]*model.Question, len(calc.Questions))
	for i := range calc.Questions {
		q := &calc.Questions[i]
		if q.Key == "" {
			errs = append(errs, fmt.Sprintf("question #%d has no key", i+1))
			continue
		}
		if _, dup := questions[q.Key]; dup {
			errs = append(errs, fmt.Sprintf("duplicate question %q", q.Key))
			continue
		}
		questions[q.Key] = q

		switch {
		case q.Numeric && len(q.Options) > 0:
			errs = append(errs, fmt.Sprintf("question %q: numeric questions take no options", q.Key))
		case !q.Numeric && len(q.Options) == 0:
			errs = append(errs, fmt.Sprintf("question %q has no options", q.Key))
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			if _, dup := seen[o.Key]; dup || o.Key == "" {
				errs = append(errs, fmt.Sprintf("question %q: invalid or duplicate option %q", q.Key, o.Key))
			}
			seen[o.Key] = struct{}{}
		}
	}

	placed := make(map[string]int, len(questions))
	for i, step := range calc.Steps {
		if len(step.Questions) == 0 {
			errs = append(errs, fmt.Sprintf("step %d has no questions", i+1))
		}
		for _, key := range step.Questions {
			if _, ok := questions[key]; !ok {
				errs = append(errs, fmt.Sprintf("step %d references unknown question %q", i+1, key))
				continue
			}
			if prev, ok := placed[key]; ok {
				errs = append(errs, fmt.Sprintf("question %q appears in steps %d and %d", key, prev, i+1))
				continue
			}
			placed[key] = i + 1
		}
	}
	for _, q := range calc.Questions {
		if _, ok := placed[q.Key]; !ok && q.Key != "" {
			errs = append(errs, fmt.Sprintf("question %q is not in any step", q.Key))
		}
	}

	for i := range calc.Factors {
		errs = append(errs, validateFactor(&calc.Factors[i], questions)...)
	}

	return errs
}

func validateFactor(f *model.Factor, questions map[string]*model.Question) []string {
	var errs []string
	q, ok := questions[f.Question]
	if !ok {
		return []string{fmt.Sprintf("factor references unknown question %q", f.Question)}
	}

	switch f.Kind {
	case model.FactorMultiply:
		if q.Numeric {
			errs = append(errs, fmt.Sprintf("factor %q: numeric questions cannot be multipliers", f.Question))
		}
		if len(f.Values) == 0 {
			errs = append(errs, fmt.Sprintf("factor %q has no values", f.Question))
		}
		for key, v := range f.Values {
			if !q.HasOption(key) {
				errs = append(errs, fmt.Sprintf("factor %q: value for unknown option %q", f.Question, key))
			}
			if v <= 0 {
				errs = append(errs, fmt.Sprintf("factor %q: multiplier for %q must be > 0", f.Question, key))
			}
		}
	case model.FactorAdd:
		if f.MinWeight < 0 || f.MaxWeight < 0 {
			errs = append(errs, fmt.Sprintf("factor %q: weights must not be negative", f.Question))
		}
		if f.MinWeight > f.MaxWeight {
			errs = append(errs, fmt.Sprintf("factor %q: min_weight must not exceed max_weight", f.Question))
		}
		if f.Default < 0 {
			errs = append(errs, fmt.Sprintf("factor %q: default must not be negative", f.Question))
		}
		if q.Numeric && !f.Parse {
			errs = append(errs, fmt.Sprintf("factor %q: numeric questions require parse = true", f.Question))
		}
		if f.Parse && len(f.Values) > 0 {
			errs = append(errs, fmt.Sprintf("factor %q: parse and values are exclusive", f.Question))
		}
		for key, v := range f.Values {
			if !q.HasOption(key) {
				errs = append(errs, fmt.Sprintf("factor %q: amount for unknown option %q", f.Question, key))
			}
			if v < 0 {
				errs = append(errs, fmt.Sprintf("factor %q: amount for %q must not be negative", f.Question, key))
			}
		}
		if f.Parse {
			for _, o := range q.Options {
				if !q.Numeric && parseLeadingDigits(o.Key) < 0 {
					errs = append(errs, fmt.Sprintf("factor %q: option %q is not an amount", f.Question, o.Key))
				}
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("factor %q: unknown kind %q", f.Question, f.Kind))
	}
	return errs
}

// parseLeadingDigits 返回开头数字的值，无数字返回 -1
func parseLeadingDigits(s string) int64 {
	var n int64 = -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		if n < 0 {
			n = 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

// ValidateForm 校验评估表单定义
func ValidateForm(form *model.EvaluationForm) []string {
	if form == nil {
		return []string{"form is nil"}
	}

	errs := make([]string, 0, 4)
	if form.ID == "" {
		errs = append(errs, "id is required")
	}
	if len(form.Fields) == 0 {
		errs = append(errs, "at least one field is required")
	}

	seen := make(map[string]struct{}, len(form.Fields))
	for _, f := range form.Fields {
		if f.Key == "" {
			errs = append(errs, "field without key")
			continue
		}
		if _, dup := seen[f.Key]; dup {
			errs = append(errs, fmt.Sprintf("duplicate field %q", f.Key))
		}
		seen[f.Key] = struct{}{}

		switch f.Kind {
		case model.FieldSelect, model.FieldMultiSelect:
			if len(f.Options) == 0 {
				errs = append(errs, fmt.Sprintf("field %q has no options", f.Key))
			}
		case model.FieldText, model.FieldTextarea, model.FieldEmail, model.FieldPhone,
			model.FieldDate, model.FieldCheckbox:
		default:
			errs = append(errs, fmt.Sprintf("field %q: unknown kind %q", f.Key, f.Kind))
		}
	}

	for _, key := range []string{"firstName", "lastName", "email", "phone"} {
		if _, ok := seen[key]; !ok {
			errs = append(errs, fmt.Sprintf("contact field %q is required", key))
		}
	}
	return errs
}
