package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"casevalue/internal/model"
)

// LeadQuery 线索列表查询条件
type LeadQuery struct {
	FormID string
	Status model.LeadStatus
	Since  time.Time // 零值表示不限
	Limit  int       // <= 0 表示不限
	Offset int
}

const leadColumns = `id, form_id, practice_area, name, email, phone, fields_json, status, created_at, notified_at`

// CreateLead 写入线索
func (s *Store) CreateLead(ctx context.Context, lead *model.Lead) error {
	fields, err := json.Marshal(lead.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode lead fields: %w", err)
	}
	if lead.Status == "" {
		lead.Status = model.LeadNew
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lead.ID, lead.FormID, lead.PracticeArea,
		lead.Name, lead.Email, lead.Phone,
		string(fields), lead.Status,
		formatTime(lead.CreatedAt), nullableTime(lead.NotifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// GetLead 按 ID 获取线索
func (s *Store) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// ListLeads 按创建时间倒序列出线索
func (s *Store) ListLeads(ctx context.Context, q LeadQuery) ([]*model.Lead, error) {
	where, args := q.where()
	query := `SELECT ` + leadColumns + ` FROM leads` + where + ` ORDER BY created_at DESC, id`
	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*model.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// CountLeads 统计线索数量（忽略分页参数）
func (s *Store) CountLeads(ctx context.Context, q LeadQuery) (int, error) {
	where, args := q.where()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return n, nil
}

// MarkLeadNotified 记录通知结果
func (s *Store) MarkLeadNotified(ctx context.Context, id string, status model.LeadStatus, at time.Time) error {
	var notifiedAt any
	if status == model.LeadNotified {
		notifiedAt = formatTime(at)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE leads SET status = ?, notified_at = ? WHERE id = ?`, status, notifiedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return nil
}

func (q LeadQuery) where() (string, []any) {
	var conds []string
	var args []any
	if q.FormID != "" {
		conds = append(conds, "form_id = ?")
		args = append(args, q.FormID)
	}
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, q.Status)
	}
	if !q.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(q.Since))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	var (
		lead       model.Lead
		fieldsJSON string
		createdAt  string
		notifiedAt sql.NullString
	)
	if err := row.Scan(
		&lead.ID, &lead.FormID, &lead.PracticeArea,
		&lead.Name, &lead.Email, &lead.Phone,
		&fieldsJSON, &lead.Status, &createdAt, &notifiedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &lead.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode lead fields: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	lead.CreatedAt = t
	if notifiedAt.Valid {
		t, err := parseTime(notifiedAt.String)
		if err != nil {
			return nil, err
		}
		lead.NotifiedAt = &t
	}
	return &lead, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
