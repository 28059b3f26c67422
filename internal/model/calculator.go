package model

// FactorKind 估算因子类型
type FactorKind string

const (
	FactorMultiply FactorKind = "multiply" // 乘数表：选项 -> 系数
	FactorAdd      FactorKind = "add"      // 加项：选项 -> 金额（或解析选项值为金额）
)

// Category 计算器分类（用于计算器大厅筛选）
type Category string

const (
	CategoryPersonalInjury   Category = "personal-injury"
	CategoryWorkplace        Category = "workplace"
	CategoryMedical          Category = "medical"
	CategoryToxicExposure    Category = "toxic-exposure"
	CategoryTransportation   Category = "transportation"
	CategoryAbuse            Category = "abuse"
	CategoryProductLiability Category = "product-liability"
	CategoryCivilRights      Category = "civil-rights"
)

// Categories 全部分类，按大厅展示顺序
var Categories = []Category{
	CategoryPersonalInjury,
	CategoryTransportation,
	CategoryWorkplace,
	CategoryMedical,
	CategoryToxicExposure,
	CategoryAbuse,
	CategoryProductLiability,
	CategoryCivilRights,
}

// Range 基础金额区间
type Range struct {
	Min float64 `toml:"min" json:"min"`
	Max float64 `toml:"max" json:"max"`
}

// Clamp 结果兜底规则
type Clamp struct {
	MinFloor float64 `toml:"min_floor" json:"minFloor"` // 下限金额
	MaxFloor float64 `toml:"max_floor" json:"maxFloor"` // 上限金额的最小值
	MaxRatio float64 `toml:"max_ratio" json:"maxRatio"` // max >= min * ratio，0 表示不启用
}

// Option 问题选项
type Option struct {
	Key   string `toml:"key" json:"key"`
	Label string `toml:"label" json:"label"`
}

// Question 问题定义
type Question struct {
	Key      string   `toml:"key" json:"key"`
	Label    string   `toml:"label" json:"label"`
	Help     string   `toml:"help" json:"help,omitempty"`
	Optional bool     `toml:"optional" json:"optional"`
	Numeric  bool     `toml:"numeric" json:"numeric,omitempty"` // 自由填写的非负整数金额
	Options  []Option `toml:"options" json:"options,omitempty"`
}

// Accepts 判断答案是否合法：数值题要求纯数字，选择题要求命中选项
func (q *Question) Accepts(value string) bool {
	if q.Numeric {
		if value == "" || len(value) > 15 {
			return false
		}
		for i := 0; i < len(value); i++ {
			if value[i] < '0' || value[i] > '9' {
				return false
			}
		}
		return true
	}
	return q.HasOption(value)
}

// HasOption 判断选项是否属于该问题
func (q *Question) HasOption(key string) bool {
	for _, o := range q.Options {
		if o.Key == key {
			return true
		}
	}
	return false
}

// Step 表单步骤
type Step struct {
	Title     string   `toml:"title" json:"title"`
	Questions []string `toml:"questions" json:"questions"`
}

// Factor 估算流水线中的一个因子
//
// multiply: Values 为系数表，未命中按 1.0 处理。
// add: Values 为金额表（未命中取 Default），Parse 为 true 时直接把选项值解析成金额（失败取 0）。
// 加项按 MinWeight/MaxWeight 分别计入下限和上限。
type Factor struct {
	Question  string             `toml:"question" json:"question"`
	Kind      FactorKind         `toml:"kind" json:"kind"`
	Label     string             `toml:"label" json:"label,omitempty"`
	Values    map[string]float64 `toml:"values" json:"values,omitempty"`
	Parse     bool               `toml:"parse" json:"parse,omitempty"`
	Default   float64            `toml:"default" json:"default,omitempty"`
	MinWeight float64            `toml:"min_weight" json:"minWeight,omitempty"`
	MaxWeight float64            `toml:"max_weight" json:"maxWeight,omitempty"`
}

// Calculator 赔偿计算器定义
type Calculator struct {
	ID          string     `toml:"id" json:"id"`
	Name        string     `toml:"name" json:"name"`
	Description string     `toml:"description" json:"description"`
	Category    Category   `toml:"category" json:"category"`
	Route       string     `toml:"route" json:"route"`
	Disclaimer  string     `toml:"disclaimer" json:"disclaimer,omitempty"`
	Base        Range      `toml:"base" json:"base"`
	RoundTo     float64    `toml:"round_to" json:"roundTo"`
	Clamp       Clamp      `toml:"clamp" json:"clamp"`
	Steps       []Step     `toml:"steps" json:"steps"`
	Questions   []Question `toml:"questions" json:"questions"`
	Factors     []Factor   `toml:"factors" json:"-"`
}

// Question 按 key 查找问题
func (c *Calculator) Question(key string) (*Question, bool) {
	for i := range c.Questions {
		if c.Questions[i].Key == key {
			return &c.Questions[i], true
		}
	}
	return nil, false
}

// TotalSteps 问题步骤数（不含结果页）
func (c *Calculator) TotalSteps() int {
	return len(c.Steps)
}

// RequiredKeys 指定步骤（从 1 开始）的必填问题
func (c *Calculator) RequiredKeys(step int) []string {
	if step < 1 || step > len(c.Steps) {
		return nil
	}
	keys := make([]string, 0, len(c.Steps[step-1].Questions))
	for _, key := range c.Steps[step-1].Questions {
		if q, ok := c.Question(key); ok && q.Optional {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// InitialAnswers 初始答案：每个问题一个空值
func (c *Calculator) InitialAnswers() Answers {
	answers := make(Answers, len(c.Questions))
	for _, q := range c.Questions {
		answers[q.Key] = ""
	}
	return answers
}

// Summary 计算器大厅条目
func (c *Calculator) Summary() CalculatorSummary {
	return CalculatorSummary{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Category:    c.Category,
		Route:       c.Route,
		Steps:       len(c.Steps),
	}
}

// CalculatorSummary 计算器列表项
type CalculatorSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Route       string   `json:"route"`
	Steps       int      `json:"steps"`
}

// Answers 答案记录：问题 key -> 选项 key，空串等同未作答
type Answers map[string]string

// Clone 复制答案
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// EconomicItem 经济损失明细（来自加项因子）
type EconomicItem struct {
	Question string  `json:"question"`
	Label    string  `json:"label"`
	Amount   float64 `json:"amount"`
}

// Estimate 估算结果
type Estimate struct {
	Min           int64          `json:"min"`
	Max           int64          `json:"max"`
	Multiplier    float64        `json:"multiplier"`              // 所有乘数之积
	Economic      []EconomicItem `json:"economic,omitempty"`      // 经济损失明细
	TotalEconomic float64        `json:"totalEconomic"`           // 经济损失合计
	Unrecognized  []string       `json:"unrecognized,omitempty"` // 按中性值处理的问题
}

// Midpoint 区间中值（用于统计）
func (e *Estimate) Midpoint() int64 {
	return (e.Min + e.Max) / 2
}
