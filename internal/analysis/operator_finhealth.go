package analysis

// FinHealth scores the ratios published by FinRatios into a single grade.
// Each available ratio contributes 0/10/15/20 points per its band; the
// total (max 80 across the four ratios) maps to a letter grade (spec §4.7).
type FinHealth struct{}

func (FinHealth) Name() string { return "fin_health" }

func (FinHealth) Run(ctx *Context) map[string]interface{} {
	ratios, ok := ctx.Extras["fin_ratios"].(map[string]float64)
	if !ok || len(ratios) == 0 {
		return map[string]interface{}{"error": "fin_ratios not available"}
	}

	total := 0
	breakdown := map[string]int{}
	if v, ok := ratios["net_profit_margin"]; ok {
		s := bandScore(v, 20, 10, 0)
		breakdown["net_profit_margin"] = s
		total += s
	}
	if v, ok := ratios["roe"]; ok {
		s := bandScore(v, 15, 8, 0)
		breakdown["roe"] = s
		total += s
	}
	if v, ok := ratios["debt_ratio"]; ok {
		s := inverseBandScore(v, 0.3, 0.6, 1.0)
		breakdown["debt_ratio"] = s
		total += s
	}
	if v, ok := ratios["pe_ratio"]; ok && v > 0 {
		s := inverseBandScore(v, 15, 25, 40)
		breakdown["pe_ratio"] = s
		total += s
	}

	return map[string]interface{}{
		"score":     total,
		"grade":     gradeForScore(total),
		"breakdown": breakdown,
	}
}

// bandScore rewards higher values: >=strong -> 20, >=moderate -> 15,
// >0 -> 10, otherwise 0.
func bandScore(v, strong, moderate, floor float64) int {
	switch {
	case v >= strong:
		return 20
	case v >= moderate:
		return 15
	case v > floor:
		return 10
	default:
		return 0
	}
}

// inverseBandScore rewards lower values: <good -> 20, <fair -> 15,
// <poor -> 10, otherwise 0.
func inverseBandScore(v, good, fair, poor float64) int {
	switch {
	case v < good:
		return 20
	case v < fair:
		return 15
	case v < poor:
		return 10
	default:
		return 0
	}
}

func gradeForScore(total int) string {
	switch {
	case total >= 80:
		return "A"
	case total >= 60:
		return "B"
	case total >= 40:
		return "C"
	case total >= 20:
		return "D"
	default:
		return "F"
	}
}
