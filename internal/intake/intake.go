package intake

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"casevalue/internal/model"
	"casevalue/internal/notify"
)

// ErrUnknownForm 评估表单不存在
var ErrUnknownForm = errors.New("unknown evaluation form")

// ValidationError 提交校验失败，Fields 为字段 key -> 错误描述
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// FormSource 评估表单来源
type FormSource interface {
	Form(id string) (*model.EvaluationForm, bool)
}

// LeadStore 线索持久化
type LeadStore interface {
	CreateLead(ctx context.Context, lead *model.Lead) error
	MarkLeadNotified(ctx context.Context, id string, status model.LeadStatus, at time.Time) error
}

// Service 案件评估线索受理
type Service struct {
	forms    FormSource
	store    LeadStore
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService 创建受理服务
func NewService(forms FormSource, store LeadStore, notifier notify.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLog(logger)
	}
	return &Service{
		forms:    forms,
		store:    store,
		notifier: notifier,
		logger:   logger.Named("intake"),
		now:      time.Now,
	}
}

// Submit 校验并保存一次表单提交，随后发送通知
//
// 通知失败只记录在线索状态上，不影响提交结果。
func (s *Service) Submit(ctx context.Context, formID string, values model.FieldValues) (*model.Lead, error) {
	form, ok := s.forms.Form(formID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, formID)
	}

	fields, err := Validate(form, values)
	if err != nil {
		return nil, err
	}

	lead := &model.Lead{
		ID:           uuid.NewString(),
		FormID:       form.ID,
		PracticeArea: form.PracticeArea,
		Name:         strings.TrimSpace(fields.First("firstName") + " " + fields.First("lastName")),
		Email:        fields.First("email"),
		Phone:        fields.First("phone"),
		Fields:       fields,
		Status:       model.LeadNew,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateLead(ctx, lead); err != nil {
		return nil, err
	}

	status := model.LeadNotified
	if err := s.notifier.NotifyLead(ctx, lead, form); err != nil {
		status = model.LeadNotifyFailed
		s.logger.Error("failed to notify lead",
			zap.String("lead", lead.ID),
			zap.String("form", form.ID),
			zap.Error(err),
		)
	}
	at := s.now().UTC()
	if err := s.store.MarkLeadNotified(ctx, lead.ID, status, at); err != nil {
		s.logger.Warn("failed to record lead notification", zap.String("lead", lead.ID), zap.Error(err))
		return lead, nil
	}
	lead.Status = status
	if status == model.LeadNotified {
		lead.NotifiedAt = &at
	}
	return lead, nil
}

// Validate 按表单定义校验提交值，返回清洗后的字段
//
// 表单未定义的字段被丢弃；空值视为未填写。
func Validate(form *model.EvaluationForm, values model.FieldValues) (model.FieldValues, error) {
	out := make(model.FieldValues, len(form.Fields))
	problems := make(map[string]string)

	for i := range form.Fields {
		f := &form.Fields[i]
		vals := clean(values[f.Key])

		if len(vals) == 0 {
			if f.Required {
				problems[f.Key] = "is required"
			}
			continue
		}
		if f.Kind != model.FieldMultiSelect && len(vals) > 1 {
			problems[f.Key] = "expects a single value"
			continue
		}
		if msg := checkField(f, vals); msg != "" {
			problems[f.Key] = msg
			continue
		}
		out[f.Key] = vals
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}
	return out, nil
}

func checkField(f *model.FormField, vals []string) string {
	v := vals[0]
	switch f.Kind {
	case model.FieldEmail:
		addr, err := mail.ParseAddress(v)
		if err != nil || addr.Address != v {
			return "must be a valid email address"
		}
	case model.FieldPhone:
		if countDigits(v) < 10 {
			return "must contain at least 10 digits"
		}
	case model.FieldDate:
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return "must be a date in YYYY-MM-DD format"
		}
	case model.FieldSelect:
		if !f.HasOption(v) {
			return fmt.Sprintf("unknown option %q", v)
		}
	case model.FieldMultiSelect:
		for _, item := range vals {
			if !f.HasOption(item) {
				return fmt.Sprintf("unknown option %q", item)
			}
		}
	case model.FieldCheckbox:
		switch v {
		case "true":
		case "false":
			if f.Required {
				return "must be checked"
			}
		default:
			return "must be true or false"
		}
	}
	return ""
}

// clean 去掉首尾空白并丢弃空值
func clean(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
