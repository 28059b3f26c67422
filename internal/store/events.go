package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"casevalue/internal/model"
)

// FunnelRow 单个计算器的转化漏斗
type FunnelRow struct {
	CalculatorID  string `json:"calculatorId"`
	Started       int    `json:"started"`
	StepCompleted int    `json:"stepCompleted"`
	Calculated    int    `json:"calculated"`
	Abandoned     int    `json:"abandoned"`
}

// CompletionRate 完成率（calculated / started）
func (r FunnelRow) CompletionRate() float64 {
	if r.Started == 0 {
		return 0
	}
	return float64(r.Calculated) / float64(r.Started)
}

// InsertEvent 写入埋点事件，回填自增 ID
func (s *Store) InsertEvent(ctx context.Context, e *model.CalculatorEvent) error {
	var value, duration any
	if e.EstimatedValue != nil {
		value = *e.EstimatedValue
	}
	if e.DurationMs != nil {
		duration = *e.DurationMs
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO calculator_events (session_id, calculator_id, step, action, estimated_value, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.CalculatorID, e.Step, e.Action, value, duration, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert calculator event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get calculator event id: %w", err)
	}
	e.ID = id
	return nil
}

// CountEvents 统计事件数；calculatorID/action 为空表示不限
func (s *Store) CountEvents(ctx context.Context, calculatorID string, action model.EventAction) (int, error) {
	var conds []string
	var args []any
	if calculatorID != "" {
		conds = append(conds, "calculator_id = ?")
		args = append(args, calculatorID)
	}
	if action != "" {
		conds = append(conds, "action = ?")
		args = append(args, action)
	}
	query := `SELECT COUNT(*) FROM calculator_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count calculator events: %w", err)
	}
	return n, nil
}

// SessionEvents 按时间顺序返回会话事件
func (s *Store) SessionEvents(ctx context.Context, sessionID string) ([]*model.CalculatorEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, calculator_id, step, action, estimated_value, duration_ms, created_at
		FROM calculator_events WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	events := make([]*model.CalculatorEvent, 0)
	for rows.Next() {
		var (
			e         model.CalculatorEvent
			value     sql.NullInt64
			duration  sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.CalculatorID, &e.Step, &e.Action, &value, &duration, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan calculator event: %w", err)
		}
		if value.Valid {
			v := value.Int64
			e.EstimatedValue = &v
		}
		if duration.Valid {
			d := duration.Int64
			e.DurationMs = &d
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// EventFunnel 按计算器汇总各动作数量；calculatorID 为空时返回全部计算器
func (s *Store) EventFunnel(ctx context.Context, calculatorID string) ([]FunnelRow, error) {
	query := `
		SELECT calculator_id,
			SUM(CASE WHEN action = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = ? THEN 1 ELSE 0 END)
		FROM calculator_events`
	args := []any{model.ActionStarted, model.ActionStepCompleted, model.ActionCalculated, model.ActionAbandoned}
	if calculatorID != "" {
		query += ` WHERE calculator_id = ?`
		args = append(args, calculatorID)
	}
	query += ` GROUP BY calculator_id ORDER BY calculator_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event funnel: %w", err)
	}
	defer rows.Close()

	out := make([]FunnelRow, 0)
	for rows.Next() {
		var r FunnelRow
		if err := rows.Scan(&r.CalculatorID, &r.Started, &r.StepCompleted, &r.Calculated, &r.Abandoned); err != nil {
			return nil, fmt.Errorf("failed to scan event funnel: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
