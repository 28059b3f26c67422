package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldKind 评估表单字段类型
type FieldKind string

const (
	FieldText        FieldKind = "text"
	FieldTextarea    FieldKind = "textarea"
	FieldEmail       FieldKind = "email"
	FieldPhone       FieldKind = "phone"
	FieldDate        FieldKind = "date"
	FieldSelect      FieldKind = "select"
	FieldMultiSelect FieldKind = "multiselect"
	FieldCheckbox    FieldKind = "checkbox"
)

// FormField 评估表单字段
type FormField struct {
	Key         string    `toml:"key" json:"key"`
	Label       string    `toml:"label" json:"label"`
	Kind        FieldKind `toml:"kind" json:"kind"`
	Section     string    `toml:"section" json:"section,omitempty"`
	Required    bool      `toml:"required" json:"required"`
	Placeholder string    `toml:"placeholder" json:"placeholder,omitempty"`
	Options     []Option  `toml:"options" json:"options,omitempty"`
}

// HasOption 判断选项是否合法
func (f *FormField) HasOption(key string) bool {
	for _, o := range f.Options {
		if o.Key == key {
			return true
		}
	}
	return false
}

// EvaluationForm 免费案件评估表单
type EvaluationForm struct {
	ID           string      `toml:"id" json:"id"`
	Name         string      `toml:"name" json:"name"`
	PracticeArea string      `toml:"practice_area" json:"practiceArea"`
	Description  string      `toml:"description" json:"description"`
	Route        string      `toml:"route" json:"route"`
	Fields       []FormField `toml:"fields" json:"fields"`
}

// Field 按 key 查找字段
func (f *EvaluationForm) Field(key string) (*FormField, bool) {
	for i := range f.Fields {
		if f.Fields[i].Key == key {
			return &f.Fields[i], true
		}
	}
	return nil, false
}

// FieldValues 表单提交值；单值字段也以切片保存
type FieldValues map[string][]string

// First 取字段第一个值
func (v FieldValues) First(key string) string {
	if vals := v[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// UnmarshalJSON 同时接受 "a" 与 ["a","b"] 两种写法
func (v *FieldValues) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FieldValues, len(raw))
	for key, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			out[key] = []string{s}
			continue
		}
		var list []string
		if err := json.Unmarshal(msg, &list); err == nil {
			out[key] = list
			continue
		}
		var b bool
		if err := json.Unmarshal(msg, &b); err == nil {
			if b {
				out[key] = []string{"true"}
			} else {
				out[key] = []string{"false"}
			}
			continue
		}
		return fmt.Errorf("field %q: expected string, list of strings or bool", key)
	}
	*v = out
	return nil
}

// LeadStatus 线索通知状态
type LeadStatus string

const (
	LeadNew          LeadStatus = "new"
	LeadNotified     LeadStatus = "notified"
	LeadNotifyFailed LeadStatus = "notify_failed"
)

// Lead 案件评估线索
type Lead struct {
	ID           string      `json:"id"`
	FormID       string      `json:"formId"`
	PracticeArea string      `json:"practiceArea"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	Fields       FieldValues `json:"fields"`
	Status       LeadStatus  `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	NotifiedAt   *time.Time  `json:"notifiedAt,omitempty"`
}

// EventAction 计算器埋点动作
type EventAction string

const (
	ActionStarted       EventAction = "started"
	ActionStepCompleted EventAction = "step_completed"
	ActionCalculated    EventAction = "calculated"
	ActionAbandoned     EventAction = "abandoned"
)

// CalculatorEvent 计算器埋点事件
type CalculatorEvent struct {
	ID             int64       `json:"id"`
	SessionID      string      `json:"sessionId"`
	CalculatorID   string      `json:"calculatorId"`
	Step           int         `json:"step"`
	Action         EventAction `json:"action"`
	EstimatedValue *int64      `json:"estimatedValue,omitempty"`
	DurationMs     *int64      `json:"durationMs,omitempty"` // 自会话创建起的耗时，仅 calculated/abandoned 有值
	CreatedAt      time.Time   `json:"createdAt"`
}
