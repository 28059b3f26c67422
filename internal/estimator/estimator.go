package estimator

import (
	"math"
	"sort"

	"casevalue/internal/model"
)

// Estimate 按计算器定义估算赔偿区间
//
// 因子按定义顺序执行：乘数先累积，遇到加项时先把累积乘数作用到当前区间再加金额，
// 最后统一取整并兜底。未作答或未识别的选项按中性值处理，不返回错误。
func Estimate(calc *model.Calculator, answers model.Answers) *model.Estimate {
	result := &model.Estimate{}

	min, max := calc.Base.Min, calc.Base.Max
	pending := 1.0
	product := 1.0

	flush := func() {
		min *= pending
		max *= pending
		pending = 1
	}

	for i := range calc.Factors {
		f := &calc.Factors[i]
		answer := answers[f.Question]

		switch f.Kind {
		case model.FactorMultiply:
			m := Multiplier(f, answer)
			pending *= m
			product *= m
		case model.FactorAdd:
			flush()
			amount := Amount(f, answer)
			min += amount * f.MinWeight
			max += amount * f.MaxWeight
			result.Economic = append(result.Economic, model.EconomicItem{
				Question: f.Question,
				Label:    f.Label,
				Amount:   amount,
			})
			result.TotalEconomic += amount
		}
	}
	flush()

	result.Min, result.Max = ApplyClamp(calc.Clamp, roundTo(min, calc.RoundTo), roundTo(max, calc.RoundTo))
	result.Multiplier = product
	result.Unrecognized = Unrecognized(calc, answers)
	return result
}

// Multiplier 查乘数表，未命中返回 1.0
func Multiplier(f *model.Factor, answer string) float64 {
	if answer == "" {
		return 1
	}
	if v, ok := f.Values[answer]; ok && v > 0 {
		return v
	}
	return 1
}

// Amount 取加项金额
func Amount(f *model.Factor, answer string) float64 {
	if f.Parse {
		return float64(parseLeadingInt(answer))
	}
	if answer != "" {
		if v, ok := f.Values[answer]; ok {
			return v
		}
	}
	return f.Default
}

// ApplyClamp 兜底：下限保底、上限保底、上限不低于下限的固定倍数。重复执行结果不变。
func ApplyClamp(c model.Clamp, min, max int64) (int64, int64) {
	if floor := int64(math.Round(c.MinFloor)); min < floor {
		min = floor
	}
	if floor := int64(math.Round(c.MaxFloor)); max < floor {
		max = floor
	}
	if c.MaxRatio > 0 {
		if bound := int64(math.Round(float64(min) * c.MaxRatio)); max < bound {
			max = bound
		}
	}
	return min, max
}

// Unrecognized 返回会被按中性值处理的问题：必填未答、选项不在定义内、以及未定义的问题 key
func Unrecognized(calc *model.Calculator, answers model.Answers) []string {
	var keys []string
	known := make(map[string]struct{}, len(calc.Questions))
	for i := range calc.Questions {
		q := &calc.Questions[i]
		known[q.Key] = struct{}{}

		answer := answers[q.Key]
		switch {
		case answer == "" && !q.Optional:
			keys = append(keys, q.Key)
		case answer != "" && !q.Accepts(answer):
			keys = append(keys, q.Key)
		}
	}

	var extra []string
	for key := range answers {
		if _, ok := known[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func roundTo(v, unit float64) int64 {
	if unit <= 1 {
		return int64(math.Round(v))
	}
	return int64(math.Round(v/unit) * unit)
}

// parseLeadingInt 解析开头的整数部分，"25000" -> 25000，"10k" -> 10，无数字 -> 0
func parseLeadingInt(s string) int64 {
	var n int64
	neg := false
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		return -n
	}
	return n
}
