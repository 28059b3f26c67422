package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"casevalue/internal/analytics"
	"casevalue/internal/model"
	"casevalue/internal/stepform"
)

// ErrNotFound 会话不存在或已过期
var ErrNotFound = errors.New("session not found")

const (
	DefaultMaxSessions = 10000
	DefaultTTL         = time.Hour

	evictTrackTimeout = 5 * time.Second
)

// Options 会话管理参数
type Options struct {
	MaxSessions int           // 最多同时保留的会话数，超出按 LRU 淘汰
	TTL         time.Duration // 会话自创建起的存活时间
}

// View 会话状态视图
type View struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	stepform.Snapshot
}

// session 单个分步表单会话，mu 保证同一会话串行操作
type session struct {
	id        string
	createdAt time.Time

	mu      sync.Mutex
	ctrl    *stepform.Controller
	pending []model.CalculatorEvent

	// 淘汰回调在 LRU 锁内执行，只置位不加锁
	closed atomic.Bool
}

// Manager 管理进行中的计算器会话并发出埋点事件
type Manager struct {
	cache   *expirable.LRU[string, *session]
	tracker analytics.Tracker
	logger  *zap.Logger
	now     func() time.Time

	// 被淘汰的会话先入队，离开 LRU 锁后再记 abandoned
	flushMu  sync.Mutex // 串行化 flushEvicted，Close 返回时没有在途写入
	evictMu  sync.Mutex
	evicted  []*session
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewManager 创建会话管理器
func NewManager(opts Options, tracker analytics.Tracker, logger *zap.Logger) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		tracker: tracker,
		logger:  logger,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	m.cache = expirable.NewLRU[string, *session](opts.MaxSessions, m.onEvict, opts.TTL)
	go m.loop()
	return m
}

// Create 为计算器创建新会话并写入初始答案，发出 started 事件。
// 初始答案不合法时返回错误，会话不会被登记，也不产生任何事件。
func (m *Manager) Create(ctx context.Context, calc *model.Calculator, answers map[string]string) (View, error) {
	s := &session{
		id:        uuid.NewString(),
		createdAt: m.now(),
		ctrl:      stepform.New(calc),
	}
	if len(answers) > 0 {
		if err := s.ctrl.UpdateFields(answers); err != nil {
			return View{}, err
		}
	}
	s.ctrl.OnTransition(func(tr stepform.Transition) { s.record(tr, m.now()) })

	view := m.register(ctx, s)
	m.flushEvicted()
	return view, nil
}

func (m *Manager) register(ctx context.Context, s *session) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.cache.Add(s.id, s)
	m.track(ctx, model.CalculatorEvent{
		SessionID:    s.id,
		CalculatorID: s.ctrl.Calculator().ID,
		Step:         1,
		Action:       model.ActionStarted,
		CreatedAt:    s.createdAt,
	})
	return s.view()
}

// Get 获取会话快照
func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	return m.do(ctx, id, func(*stepform.Controller) error { return nil })
}

// Update 批量更新答案
func (m *Manager) Update(ctx context.Context, id string, values map[string]string) (View, error) {
	return m.do(ctx, id, func(c *stepform.Controller) error {
		return c.UpdateFields(values)
	})
}

// Next 前进一步，返回是否发生切换
func (m *Manager) Next(ctx context.Context, id string) (View, bool, error) {
	var moved bool
	v, err := m.do(ctx, id, func(c *stepform.Controller) error {
		moved = c.HandleNext()
		return nil
	})
	return v, moved, err
}

// Back 后退一步，返回是否发生切换
func (m *Manager) Back(ctx context.Context, id string) (View, bool, error) {
	var moved bool
	v, err := m.do(ctx, id, func(c *stepform.Controller) error {
		moved = c.HandleBack()
		return nil
	})
	return v, moved, err
}

// Reset 重置会话
func (m *Manager) Reset(ctx context.Context, id string) (View, error) {
	return m.do(ctx, id, func(c *stepform.Controller) error {
		c.ResetForm()
		return nil
	})
}

// Delete 删除会话；未完成的会话记为 abandoned
func (m *Manager) Delete(_ context.Context, id string) error {
	if !m.cache.Remove(id) {
		return ErrNotFound
	}
	m.flushEvicted()
	return nil
}

// Len 当前会话数
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close 清空全部会话并等待 abandoned 事件写完
func (m *Manager) Close() {
	m.cache.Purge()
	m.stopOnce.Do(func() { close(m.done) })
	m.flushEvicted()
}

// do 在会话锁内执行操作，并按发生顺序发出埋点
func (m *Manager) do(ctx context.Context, id string, fn func(*stepform.Controller) error) (View, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return View{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return View{}, ErrNotFound
	}

	err := fn(s.ctrl)
	for _, e := range s.pending {
		m.track(ctx, e)
	}
	s.pending = s.pending[:0]

	return s.view(), err
}

// onEvict 淘汰、过期或删除时回调（持有 LRU 锁），只入队不做 IO
func (m *Manager) onEvict(_ string, s *session) {
	if s.closed.Swap(true) {
		return
	}
	m.evictMu.Lock()
	m.evicted = append(m.evicted, s)
	m.evictMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// loop 处理后台过期清理产生的淘汰
func (m *Manager) loop() {
	for {
		select {
		case <-m.wake:
			m.flushEvicted()
		case <-m.done:
			return
		}
	}
}

// flushEvicted 为队列中未完成的会话记 abandoned
func (m *Manager) flushEvicted() {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	for {
		m.evictMu.Lock()
		if len(m.evicted) == 0 {
			m.evictMu.Unlock()
			return
		}
		s := m.evicted[0]
		m.evicted[0] = nil
		m.evicted = m.evicted[1:]
		m.evictMu.Unlock()

		m.abandon(s)
	}
}

// abandon 在会话锁内判断完成状态，保证 abandoned 排在该会话其他事件之后
func (m *Manager) abandon(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl.Completed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), evictTrackTimeout)
	defer cancel()

	now := m.now()
	elapsed := now.Sub(s.createdAt).Milliseconds()
	m.track(ctx, model.CalculatorEvent{
		SessionID:    s.id,
		CalculatorID: s.ctrl.Calculator().ID,
		Step:         s.ctrl.Step(),
		Action:       model.ActionAbandoned,
		DurationMs:   &elapsed,
		CreatedAt:    now,
	})
}

func (m *Manager) track(ctx context.Context, e model.CalculatorEvent) {
	if err := m.tracker.Track(ctx, e); err != nil {
		m.logger.Warn("failed to track calculator event",
			zap.String("session", e.SessionID),
			zap.String("calculator", e.CalculatorID),
			zap.String("action", string(e.Action)),
			zap.Error(err),
		)
	}
}

// record 把一次步骤切换转换为埋点事件，由 Controller 回调
func (s *session) record(tr stepform.Transition, at time.Time) {
	if tr.Kind != stepform.TransitionNext {
		return
	}
	calcID := s.ctrl.Calculator().ID
	s.pending = append(s.pending, model.CalculatorEvent{
		SessionID:    s.id,
		CalculatorID: calcID,
		Step:         tr.From,
		Action:       model.ActionStepCompleted,
		CreatedAt:    at,
	})
	if tr.Result != nil {
		mid := tr.Result.Midpoint()
		elapsed := at.Sub(s.createdAt).Milliseconds()
		s.pending = append(s.pending, model.CalculatorEvent{
			SessionID:      s.id,
			CalculatorID:   calcID,
			Step:           tr.To,
			Action:         model.ActionCalculated,
			EstimatedValue: &mid,
			DurationMs:     &elapsed,
			CreatedAt:      at,
		})
	}
}

func (s *session) view() View {
	return View{
		ID:        s.id,
		CreatedAt: s.createdAt,
		Snapshot:  s.ctrl.Snapshot(),
	}
}
