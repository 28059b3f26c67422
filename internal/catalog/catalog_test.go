package catalog

import (
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casevalue/internal/estimator"
	"casevalue/internal/model"
)

func mustLoad(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

// 每个问题取第一个选项，数值题填固定金额
func firstAnswers(calc *model.Calculator) model.Answers {
	answers := calc.InitialAnswers()
	for _, q := range calc.Questions {
		if q.Numeric {
			answers[q.Key] = "5000"
			continue
		}
		answers[q.Key] = q.Options[0].Key
	}
	return answers
}

// TestLoad_Builtin 测试内置定义全部通过校验
func TestLoad_Builtin(t *testing.T) {
	c := mustLoad(t)

	for _, id := range []string{
		"aviation", "talc", "pfas", "premises-liability", "dog-bite", "bus-accident", "personal-injury",
		"workplace-injury", "medical-malpractice", "elder-abuse", "product-liability", "civil-rights",
	} {
		calc, ok := c.Calculator(id)
		require.True(t, ok, "calculator %s", id)
		assert.Empty(t, Validate(calc), "calculator %s", id)
	}
	for _, id := range []string{"general", "dog-bite", "talc", "workplace-injury", "medical-malpractice", "elder-abuse", "product-liability"} {
		_, ok := c.Form(id)
		assert.True(t, ok, "form %s", id)
	}
	assert.Equal(t, 12, c.CalculatorCount())
	assert.Equal(t, 7, c.FormCount())
}

// TestCalculators_EveryCategory 测试大厅每个分类都有计算器
func TestCalculators_EveryCategory(t *testing.T) {
	c := mustLoad(t)

	for _, category := range model.Categories {
		assert.NotEmpty(t, c.Calculators(Filter{Category: category}), "category %s", category)
	}
}

// TestCalculators_Filter 测试分类筛选与关键字搜索
func TestCalculators_Filter(t *testing.T) {
	c := mustLoad(t)

	all := c.Calculators(Filter{})
	assert.Len(t, all, c.CalculatorCount())

	toxic := c.Calculators(Filter{Category: model.CategoryToxicExposure})
	ids := make([]string, 0, len(toxic))
	for _, s := range toxic {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"talc", "pfas"}, ids)

	found := c.Calculators(Filter{Query: "AIRPLANE"})
	require.Len(t, found, 1)
	assert.Equal(t, "aviation", found[0].ID)

	assert.Empty(t, c.Calculators(Filter{Category: model.CategoryTransportation, Query: "talc"}))
}

// TestAviationScenario 测试航空事故示例场景
func TestAviationScenario(t *testing.T) {
	c := mustLoad(t)
	calc, ok := c.Calculator("aviation")
	require.True(t, ok)

	got := estimator.Estimate(calc, model.Answers{
		"aircraftType":        "commercial-airline",
		"accidentType":        "crash-fatal",
		"injuryOutcome":       "wrongful-death",
		"victimRole":          "passenger",
		"regulationViolation": "willful-violation",
		"pilotCertification":  "no-certification",
		"maintenanceIssue":    "known-defect-ignored",
		"numberOfVictims":     "over-50",
	})

	// 3.5 × 5.0 × 8.0 × 1.2 × 3.5 × 3.5 × 3.5 × 1.8 = 12965.4
	assert.InDelta(t, 12965.4, got.Multiplier, 1e-6)
	assert.Equal(t, int64(1_296_540_000), got.Min)
	assert.Equal(t, int64(6_482_700_000), got.Max)
	assert.Empty(t, got.Unrecognized)
}

// TestKnownScenarios 测试各类流水线的已知结果
func TestKnownScenarios(t *testing.T) {
	c := mustLoad(t)

	tests := []struct {
		name     string
		id       string
		answers  model.Answers
		min, max int64
	}{
		{
			// 乘数后加经济损失，按千取整
			name: "talc",
			id:   "talc",
			answers: model.Answers{
				"cancerType": "ovarian-cancer", "cancerStage": "stage-3", "exposureDuration": "11-20-years",
				"usageFrequency": "daily", "productType": "baby-powder", "age": "51-60",
				"hasPathologyEvidence": "yes", "medicalCosts": "150000", "futureCareCosts": "350000",
				"lostWages": "75000",
			},
			min: 9_663_000,
			max: 19_039_000,
		},
		{
			// 加项在前，所有乘数作用于基础+经济损失
			name: "personal injury",
			id:   "personal-injury",
			answers: model.Answers{
				"injuryType": "fracture", "severity": "moderate", "liability": "clear",
				"medicalCosts": "25k-100k", "lostWages": "5k-25k", "permanentDisability": "none",
				"painAndSuffering": "moderate", "comparativeFault": "0%", "ageGroup": "31-50",
				"futureImpact": "minor",
			},
			min: 817_938,
			max: 4_209_975,
		},
		{
			// 乘数与数值加项交错
			name: "premises liability",
			id:   "premises-liability",
			answers: model.Answers{
				"accidentType": "slip-fall", "injuryType": "soft-tissue", "injurySeverity": "minor",
				"propertyType": "retail-store", "medicalCosts": "10000", "lostWages": "0",
				"ownerKnowledge": "unknown", "hazardType": "temporary", "warnings": "proper-warnings",
				"permanentImpact": "none",
			},
			min: 59_780,
			max: 225_400,
		},
		{
			// 乘数之后加区间金额
			name: "bus accident",
			id:   "bus-accident",
			answers: model.Answers{
				"busOperator": "municipal-public", "passengerStatus": "seated-passenger",
				"accidentType": "sudden-stop", "injurySeverity": "minor", "injuryType": "soft-tissue",
				"medicalCosts": "25k-50k", "permanentDisability": "none", "multipleVictims": "no",
				"busDefect": "no", "age": "41-65",
			},
			min: 50000*1.2 + 35000,
			max: 150000*1.2 + 35000*2,
		},
		{
			// 工伤赔付加第三方责任
			name: "workplace injury",
			id:   "workplace-injury",
			answers: model.Answers{
				"injuryType": "machinery", "severity": "severe", "permanentDisability": "no",
				"medicalCosts": "50000", "lostWages": "50000", "thirdPartyLiability": "yes",
			},
			min: 249_000,
			max: 549_000,
		},
		{
			// 经济损失之后的乘数作用于合计
			name: "medical malpractice",
			id:   "medical-malpractice",
			answers: model.Answers{
				"errorType": "surgical-error", "injurySeverity": "moderate", "medicalCosts": "50000",
				"futureMedical": "100000", "lostWages": "75000", "age": "40-60",
				"permanentImpact": "none", "lifeExpectancy": "normal",
			},
			min: 1_245_000,
			max: 5_010_000,
		},
		{
			name: "elder abuse",
			id:   "elder-abuse",
			answers: model.Answers{
				"abuseType": "physical", "facilityType": "nursing-home", "severity": "minor",
				"injuries": "bedsores", "medicalCosts": "under-10k", "duration": "days",
				"age": "65-74", "punitive": "none",
			},
			min: 536_250,
			max: 1_765_500,
		},
		{
			name: "product liability",
			id:   "product-liability",
			answers: model.Answers{
				"productType": "consumer-electronics", "defectType": "manufacturing-defect",
				"injurySeverity": "minor", "manufacturer": "small-business", "medicalCosts": "under-10k",
				"lostWages": "none", "permanentDisability": "none", "recallStatus": "no-recall",
				"multipleVictims": "single", "ageGroup": "middle-age",
			},
			min: 139_200,
			max: 672_000,
		},
		{
			name: "civil rights",
			id:   "civil-rights",
			answers: model.Answers{
				"violationType": "policeBrutality", "perpetrator": "lawEnforcement", "injurySeverity": "serious",
				"policyViolation": "clear", "documentationQuality": "adequate", "publicInterest": "low",
				"age": "50", "economicDamages": "none",
			},
			min: 1_417_500,
			max: 3_543_750,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, ok := c.Calculator(tt.id)
			require.True(t, ok)

			got := estimator.Estimate(calc, tt.answers)
			assert.Equal(t, tt.min, got.Min)
			assert.Equal(t, tt.max, got.Max)
			assert.Empty(t, got.Unrecognized)
		})
	}
}

// TestShippedCalculators_Properties 测试每个内置计算器的通用性质
func TestShippedCalculators_Properties(t *testing.T) {
	c := mustLoad(t)

	for _, summary := range c.Calculators(Filter{}) {
		calc, _ := c.Calculator(summary.ID)

		t.Run(calc.ID, func(t *testing.T) {
			base := firstAnswers(calc)
			est := estimator.Estimate(calc, base)
			assert.GreaterOrEqual(t, est.Min, int64(0))
			assert.LessOrEqual(t, est.Min, est.Max)
			assert.Empty(t, est.Unrecognized)

			// 空答案也给出合法区间
			empty := estimator.Estimate(calc, calc.InitialAnswers())
			assert.LessOrEqual(t, empty.Min, empty.Max)

			// 兜底幂等
			min, max := estimator.ApplyClamp(calc.Clamp, est.Min, est.Max)
			assert.Equal(t, est.Min, min)
			assert.Equal(t, est.Max, max)

			for i := range calc.Factors {
				f := &calc.Factors[i]
				if f.Kind != model.FactorMultiply {
					continue
				}

				// 未识别选项等同缺省
				unknown := base.Clone()
				unknown[f.Question] = "no-such-option"
				missing := base.Clone()
				missing[f.Question] = ""
				u := estimator.Estimate(calc, unknown)
				m := estimator.Estimate(calc, missing)
				assert.Equal(t, m.Min, u.Min, "factor %s", f.Question)
				assert.Equal(t, m.Max, u.Max, "factor %s", f.Question)

				// 上限随单个乘数单调不减
				q, _ := calc.Question(f.Question)
				options := make([]string, 0, len(q.Options))
				for _, o := range q.Options {
					options = append(options, o.Key)
				}
				sort.SliceStable(options, func(a, b int) bool {
					return estimator.Multiplier(f, options[a]) < estimator.Multiplier(f, options[b])
				})
				prev := int64(-1)
				for _, opt := range options {
					answers := base.Clone()
					answers[f.Question] = opt
					got := estimator.Estimate(calc, answers)
					assert.GreaterOrEqual(t, got.Max, prev, "factor %s option %s", f.Question, opt)
					prev = got.Max
				}
			}
		})
	}
}

// TestLoadFS_Invalid 测试非法定义被拒绝并汇总错误
func TestLoadFS_Invalid(t *testing.T) {
	fsys := fstest.MapFS{
		"calculators/bad.toml": {Data: []byte(`
id = "bad"
name = "Bad"
category = "nowhere"
round_to = 1

[base]
min = 500
max = 100

[clamp]
max_ratio = 0.5

[[steps]]
title = "One"
questions = ["a", "ghost"]

[[questions]]
key = "a"
label = "A"
options = [{ key = "x", label = "X" }]

[[questions]]
key = "orphan"
label = "Orphan"
options = [{ key = "y", label = "Y" }]

[[factors]]
question = "a"
kind = "multiply"
[factors.values]
"x" = 0
"z" = 2
`)},
		"calculators/broken.toml": {Data: []byte(`id = [`)},
		"calculators/inverted.toml": {Data: []byte(`
id = "inverted"
name = "Inverted"
category = "personal-injury"
round_to = 1

[base]
min = 100
max = 1000

[clamp]
min_floor = 500000

[[steps]]
title = "One"
questions = ["costs"]

[[questions]]
key = "costs"
label = "Costs"
numeric = true

[[factors]]
question = "costs"
kind = "add"
parse = true
min_weight = 5
max_weight = 1
`)},
	}

	_, err := LoadFS(fsys)
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"calculators/bad.toml",
		"calculators/broken.toml",
		`unknown category "nowhere"`,
		"base range must satisfy 0 <= min <= max",
		"clamp max_ratio must be 0 or >= 1",
		`step 1 references unknown question "ghost"`,
		`question "orphan" is not in any step`,
		`factor "a": multiplier for "x" must be > 0`,
		`factor "a": value for unknown option "z"`,
		"calculators/inverted.toml",
		"clamp min_floor must not exceed max_floor when max_ratio is 0",
		`factor "costs": min_weight must not exceed max_weight`,
	} {
		assert.Contains(t, msg, want)
	}
}

// TestLoadFS_DuplicateID 测试重复 ID
func TestLoadFS_DuplicateID(t *testing.T) {
	def := []byte(`
id = "general"
name = "General"
[[fields]]
key = "firstName"
kind = "text"
[[fields]]
key = "lastName"
kind = "text"
[[fields]]
key = "email"
kind = "email"
[[fields]]
key = "phone"
kind = "phone"
`)
	fsys := fstest.MapFS{
		"evaluations/a.toml": {Data: def},
		"evaluations/b.toml": {Data: def},
	}

	_, err := LoadFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate form id "general"`)
}

// TestValidateForm 测试表单定义校验
func TestValidateForm(t *testing.T) {
	form := &model.EvaluationForm{
		ID: "x",
		Fields: []model.FormField{
			{Key: "firstName", Kind: model.FieldText},
			{Key: "choice", Kind: model.FieldSelect},
			{Key: "weird", Kind: "slider"},
		},
	}
	errs := ValidateForm(form)
	assert.Contains(t, errs, `field "choice" has no options`)
	assert.Contains(t, errs, `field "weird": unknown kind "slider"`)
	assert.Contains(t, errs, `contact field "email" is required`)
}
