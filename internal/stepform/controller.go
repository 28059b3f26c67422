package stepform

import (
	"errors"
	"fmt"
	"sort"

	"casevalue/internal/estimator"
	"casevalue/internal/model"
)

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrUnknownOption = errors.New("unknown option")
	ErrCompleted     = errors.New("form already completed")
)

// TransitionKind 步骤切换类型
type TransitionKind string

const (
	TransitionNext  TransitionKind = "next"
	TransitionBack  TransitionKind = "back"
	TransitionReset TransitionKind = "reset"
)

// Transition 一次步骤切换
type Transition struct {
	Kind   TransitionKind
	From   int
	To     int
	Result *model.Estimate // 仅在进入结果页时非空
}

// Controller 分步表单控制器
//
// 步骤游标取值 1..N+1，N+1 为结果页。进入结果页后只能通过 ResetForm 返回。
// Controller 本身不加锁，由调用方保证串行访问。
type Controller struct {
	calc         *model.Calculator
	step         int
	answers      model.Answers
	result       *model.Estimate
	onTransition func(Transition)
}

// New 创建控制器，初始为第 1 步、全部答案为空
func New(calc *model.Calculator) *Controller {
	return &Controller{
		calc:    calc,
		step:    1,
		answers: calc.InitialAnswers(),
	}
}

// OnTransition 注册步骤切换回调；每次实际发生的切换恰好回调一次
func (c *Controller) OnTransition(fn func(Transition)) {
	c.onTransition = fn
}

// Calculator 返回控制器绑定的计算器
func (c *Controller) Calculator() *model.Calculator {
	return c.calc
}

// Step 当前步骤
func (c *Controller) Step() int {
	return c.step
}

// Completed 是否已进入结果页
func (c *Controller) Completed() bool {
	return c.step > c.calc.TotalSteps()
}

// Result 估算结果，未完成时为 nil
func (c *Controller) Result() *model.Estimate {
	return c.result
}

// UpdateField 更新单个答案，空值表示清除
func (c *Controller) UpdateField(key, value string) error {
	return c.UpdateFields(map[string]string{key: value})
}

// UpdateFields 批量更新；任一答案不合法时整体不生效
func (c *Controller) UpdateFields(values map[string]string) error {
	if c.Completed() {
		return ErrCompleted
	}
	keys := sortedKeys(values)
	for _, key := range keys {
		if err := c.check(key, values[key]); err != nil {
			return err
		}
	}
	for _, key := range keys {
		c.answers[key] = values[key]
	}
	return nil
}

func (c *Controller) check(key, value string) error {
	q, ok := c.calc.Question(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	if value != "" && !q.Accepts(value) {
		return fmt.Errorf("%w: %s=%s", ErrUnknownOption, key, value)
	}
	return nil
}

// IsStepValid 当前步骤的必填问题是否都已作答
func (c *Controller) IsStepValid() bool {
	return len(c.missing()) == 0
}

func (c *Controller) missing() []string {
	var keys []string
	for _, key := range c.calc.RequiredKeys(c.step) {
		if c.answers[key] == "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// HandleNext 前进一步；最后一步时执行估算并进入结果页。返回是否发生切换。
func (c *Controller) HandleNext() bool {
	if c.Completed() || !c.IsStepValid() {
		return false
	}

	from := c.step
	if c.step == c.calc.TotalSteps() {
		c.result = estimator.Estimate(c.calc, c.answers)
	}
	c.step++
	c.emit(Transition{Kind: TransitionNext, From: from, To: c.step, Result: c.result})
	return true
}

// HandleBack 后退一步，最小为第 1 步；结果页不可后退
func (c *Controller) HandleBack() bool {
	if c.Completed() || c.step <= 1 {
		return false
	}
	from := c.step
	c.step--
	c.emit(Transition{Kind: TransitionBack, From: from, To: c.step})
	return true
}

// ResetForm 恢复初始状态
func (c *Controller) ResetForm() {
	from := c.step
	c.step = 1
	c.answers = c.calc.InitialAnswers()
	c.result = nil
	c.emit(Transition{Kind: TransitionReset, From: from, To: 1})
}

func (c *Controller) emit(t Transition) {
	if c.onTransition != nil {
		c.onTransition(t)
	}
}

// Snapshot 当前状态的只读视图
type Snapshot struct {
	CalculatorID string          `json:"calculatorId"`
	Step         int             `json:"step"`
	TotalSteps   int             `json:"totalSteps"`
	StepTitle    string          `json:"stepTitle"`
	Questions    []string        `json:"questions,omitempty"` // 当前步骤的问题
	Answers      model.Answers   `json:"answers"`
	Missing      []string        `json:"missing,omitempty"` // 当前步骤未作答的必填问题
	Valid        bool            `json:"valid"`
	Completed    bool            `json:"completed"`
	Progress     int             `json:"progress"` // 百分比
	Result       *model.Estimate `json:"result,omitempty"`
}

// Snapshot 生成快照，答案为副本
func (c *Controller) Snapshot() Snapshot {
	total := c.calc.TotalSteps()
	s := Snapshot{
		CalculatorID: c.calc.ID,
		Step:         c.step,
		TotalSteps:   total,
		Answers:      c.answers.Clone(),
		Completed:    c.Completed(),
		Result:       c.result,
	}

	if s.Completed {
		s.StepTitle = "Results"
		s.Valid = true
		s.Progress = 100
		return s
	}

	step := c.calc.Steps[c.step-1]
	s.StepTitle = step.Title
	s.Questions = append([]string(nil), step.Questions...)
	s.Missing = c.missing()
	s.Valid = len(s.Missing) == 0
	if total > 0 {
		s.Progress = (c.step - 1) * 100 / total
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
