package analytics

import (
	"context"
	"errors"

	"casevalue/internal/model"
)

// Tracker 计算器埋点接收方
type Tracker interface {
	Track(ctx context.Context, e model.CalculatorEvent) error
}

// Multi 依次分发给多个 Tracker，错误合并返回
type Multi []Tracker

// Track 实现 Tracker
func (m Multi) Track(ctx context.Context, e model.CalculatorEvent) error {
	var errs []error
	for _, t := range m {
		if t == nil {
			continue
		}
		if err := t.Track(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop 丢弃所有事件
type Nop struct{}

// Track 实现 Tracker
func (Nop) Track(context.Context, model.CalculatorEvent) error { return nil }

// EventWriter 事件持久化接口（由 store.Store 实现）
type EventWriter interface {
	InsertEvent(ctx context.Context, e *model.CalculatorEvent) error
}

// Store 把事件写入数据库
type Store struct {
	w EventWriter
}

// NewStore 创建持久化 Tracker
func NewStore(w EventWriter) *Store {
	return &Store{w: w}
}

// Track 实现 Tracker
func (s *Store) Track(ctx context.Context, e model.CalculatorEvent) error {
	return s.w.InsertEvent(ctx, &e)
}
