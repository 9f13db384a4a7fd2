package analysis

import (
	talib "github.com/markcheno/go-talib"
)

var maWindows = []int{5, 10, 20, 50}

// MA computes simple moving averages over Close for each window in
// maWindows, emitting the latest value per window. Every computed series is
// published under ctx.Extras["ma_data"] (keyed by window), and the MA20
// series alone under ctx.Extras["ma_series"].
type MA struct{}

func (MA) Name() string { return "ma" }

func (MA) Run(ctx *Context) map[string]interface{} {
	closes := ctx.closes()
	if len(closes) == 0 {
		return map[string]interface{}{"error": "no price data"}
	}

	latest := map[string]interface{}{}
	series := map[int][]float64{}
	for _, window := range maWindows {
		if len(closes) < window {
			continue
		}
		s := talib.Sma(closes, window)
		series[window] = s
		if v := lastValid(s); v != nil {
			latest[maKey(window)] = *v
		}
	}
	ctx.Extras["ma_data"] = series
	if s, ok := series[20]; ok {
		ctx.Extras["ma_series"] = s
	}
	return latest
}

func maKey(window int) string {
	switch window {
	case 5:
		return "ma_5"
	case 10:
		return "ma_10"
	case 20:
		return "ma_20"
	case 50:
		return "ma_50"
	default:
		return "ma"
	}
}

// lastValid returns a pointer to the last non-NaN value in s, or nil.
func lastValid(s []float64) *float64 {
	for i := len(s) - 1; i >= 0; i-- {
		if !isNaN(s[i]) {
			v := s[i]
			return &v
		}
	}
	return nil
}

func isNaN(f float64) bool { return f != f }
