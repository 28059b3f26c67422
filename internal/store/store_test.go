package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casevalue/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "casevalue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testLead(id, form string, created time.Time) *model.Lead {
	return &model.Lead{
		ID:           id,
		FormID:       form,
		PracticeArea: form,
		Name:         "Jane Doe",
		Email:        "jane@example.com",
		Phone:        "(555) 123-4567",
		Fields: model.FieldValues{
			"firstName": {"Jane"},
			"injuryType": {"lacerations", "scarring"},
		},
		CreatedAt: created,
	}
}

// TestStore_LeadRoundTrip 测试线索写入与读取
func TestStore_LeadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	lead := testLead("lead-1", "dog-bite", created)
	require.NoError(t, s.CreateLead(ctx, lead))
	assert.Equal(t, model.LeadNew, lead.Status)

	got, err := s.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, lead.Fields, got.Fields)
	assert.Equal(t, "dog-bite", got.FormID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.NotifiedAt)

	_, err = s.GetLead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestStore_ListLeads 测试筛选、排序与分页
func TestStore_ListLeads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateLead(ctx, testLead("a", "general", base)))
	require.NoError(t, s.CreateLead(ctx, testLead("b", "talc", base.Add(time.Hour))))
	require.NoError(t, s.CreateLead(ctx, testLead("c", "general", base.Add(2*time.Hour))))

	all, err := s.ListLeads(ctx, LeadQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	general, err := s.ListLeads(ctx, LeadQuery{FormID: "general"})
	require.NoError(t, err)
	assert.Len(t, general, 2)

	recent, err := s.ListLeads(ctx, LeadQuery{Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := s.ListLeads(ctx, LeadQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	n, err := s.CountLeads(ctx, LeadQuery{FormID: "general", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestStore_MarkLeadNotified 测试通知状态更新
func TestStore_MarkLeadNotified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateLead(ctx, testLead("a", "general", now)))
	require.NoError(t, s.CreateLead(ctx, testLead("b", "general", now)))

	require.NoError(t, s.MarkLeadNotified(ctx, "a", model.LeadNotified, now.Add(time.Minute)))
	require.NoError(t, s.MarkLeadNotified(ctx, "b", model.LeadNotifyFailed, now.Add(time.Minute)))

	a, err := s.GetLead(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.LeadNotified, a.Status)
	require.NotNil(t, a.NotifiedAt)
	assert.True(t, now.Add(time.Minute).Equal(*a.NotifiedAt))

	b, err := s.GetLead(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, model.LeadNotifyFailed, b.Status)
	assert.Nil(t, b.NotifiedAt)

	failed, err := s.CountLeads(ctx, LeadQuery{Status: model.LeadNotifyFailed})
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	assert.ErrorIs(t, s.MarkLeadNotified(ctx, "nope", model.LeadNotified, now), ErrNotFound)
}

// TestStore_EventsAndFunnel 测试埋点写入与漏斗统计
func TestStore_EventsAndFunnel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	value := int64(250000)
	elapsed := int64(42_000)

	events := []*model.CalculatorEvent{
		{SessionID: "s1", CalculatorID: "aviation", Step: 1, Action: model.ActionStarted},
		{SessionID: "s1", CalculatorID: "aviation", Step: 1, Action: model.ActionStepCompleted},
		{SessionID: "s1", CalculatorID: "aviation", Step: 2, Action: model.ActionStepCompleted},
		{SessionID: "s1", CalculatorID: "aviation", Step: 3, Action: model.ActionCalculated, EstimatedValue: &value, DurationMs: &elapsed},
		{SessionID: "s2", CalculatorID: "aviation", Step: 1, Action: model.ActionStarted},
		{SessionID: "s2", CalculatorID: "aviation", Step: 1, Action: model.ActionAbandoned},
		{SessionID: "s3", CalculatorID: "talc", Step: 1, Action: model.ActionStarted},
	}
	for _, e := range events {
		e.CreatedAt = now
		require.NoError(t, s.InsertEvent(ctx, e))
		assert.NotZero(t, e.ID)
	}

	n, err := s.CountEvents(ctx, "aviation", model.ActionStarted)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountEvents(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, len(events), n)

	funnel, err := s.EventFunnel(ctx, "")
	require.NoError(t, err)
	require.Len(t, funnel, 2)
	assert.Equal(t, FunnelRow{CalculatorID: "aviation", Started: 2, StepCompleted: 2, Calculated: 1, Abandoned: 1}, funnel[0])
	assert.Equal(t, FunnelRow{CalculatorID: "talc", Started: 1}, funnel[1])
	assert.InDelta(t, 0.5, funnel[0].CompletionRate(), 1e-9)

	only, err := s.EventFunnel(ctx, "talc")
	require.NoError(t, err)
	require.Len(t, only, 1)

	s1, err := s.SessionEvents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s1, 4)
	require.NotNil(t, s1[3].EstimatedValue)
	assert.Equal(t, value, *s1[3].EstimatedValue)
	require.NotNil(t, s1[3].DurationMs)
	assert.Equal(t, elapsed, *s1[3].DurationMs)
	assert.Nil(t, s1[0].EstimatedValue)
	assert.Nil(t, s1[0].DurationMs)
}

// TestStore_MigratesOldEventsTable 测试旧库补齐 duration_ms 列
func TestStore_MigratesOldEventsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE calculator_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		calculator_id TEXT NOT NULL,
		step INTEGER NOT NULL DEFAULT 0,
		action TEXT NOT NULL,
		estimated_value INTEGER,
		created_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	exists, err := s.columnExists("calculator_events", "duration_ms")
	require.NoError(t, err)
	assert.True(t, exists)

	elapsed := int64(1500)
	e := &model.CalculatorEvent{SessionID: "s", CalculatorID: "talc", Action: model.ActionAbandoned, DurationMs: &elapsed, CreatedAt: time.Now()}
	require.NoError(t, s.InsertEvent(context.Background(), e))

	// 再次打开不重复加列
	require.NoError(t, s.migrate())
}
