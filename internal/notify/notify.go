package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"casevalue/internal/model"
)

// Notifier 新线索通知
type Notifier interface {
	NotifyLead(ctx context.Context, lead *model.Lead, form *model.EvaluationForm) error
}

// Options 通知配置
type Options struct {
	TelegramToken  string
	TelegramChatID string
}

// New 配置了 Telegram 时返回 Telegram 通知，否则退化为日志通知
func New(opts Options, logger *zap.Logger) (Notifier, error) {
	if opts.TelegramToken == "" || opts.TelegramChatID == "" {
		return NewLog(logger), nil
	}
	tg, err := NewTelegram(opts.TelegramToken, opts.TelegramChatID)
	if err != nil {
		return nil, err
	}
	return tg, nil
}

// Log 把线索摘要写入日志
type Log struct {
	logger *zap.Logger
}

// NewLog 创建日志通知
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("notify")}
}

// NotifyLead 实现 Notifier
func (l *Log) NotifyLead(_ context.Context, lead *model.Lead, form *model.EvaluationForm) error {
	l.logger.Info("new case evaluation lead",
		zap.String("lead", lead.ID),
		zap.String("form", form.ID),
		zap.String("practice_area", lead.PracticeArea),
		zap.Int("fields", len(lead.Fields)),
	)
	return nil
}

var contactKeys = map[string]bool{"firstName": true, "lastName": true, "email": true, "phone": true}

// FormatLead 生成纯文本线索摘要，字段按表单定义顺序、按分区分组
func FormatLead(lead *model.Lead, form *model.EvaluationForm) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New case evaluation: %s\n", form.Name)
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nPhone: %s\n", lead.Name, lead.Email, lead.Phone)

	section := ""
	for _, f := range form.Fields {
		if contactKeys[f.Key] {
			continue
		}
		values := lead.Fields[f.Key]
		if len(values) == 0 || (len(values) == 1 && values[0] == "") {
			continue
		}
		if f.Section != "" && f.Section != section {
			section = f.Section
			fmt.Fprintf(&b, "\n%s\n", section)
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.Label, strings.Join(optionLabels(&f, values), ", "))
	}
	fmt.Fprintf(&b, "\nLead ID: %s", lead.ID)
	return b.String()
}

func optionLabels(f *model.FormField, values []string) []string {
	if len(f.Options) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		label := v
		for _, o := range f.Options {
			if o.Key == v {
				label = o.Label
				break
			}
		}
		out = append(out, label)
	}
	return out
}
