package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Volatility computes the annualized standard deviation of daily log
// returns over Close. Newly authored to give gonum.org/v1/gonum/stat a
// concrete home in the pipeline (see DESIGN.md); not present in
// original_source.
type Volatility struct{}

func (Volatility) Name() string { return "volatility" }

func (Volatility) Run(ctx *Context) map[string]interface{} {
	closes := ctx.closes()
	if len(closes) < 2 {
		return map[string]interface{}{"error": "insufficient history for volatility"}
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return map[string]interface{}{"error": "insufficient valid returns for volatility"}
	}

	daily := stat.StdDev(returns, nil)
	annualized := daily * math.Sqrt(252)
	return map[string]interface{}{
		"daily_stdev":      daily,
		"annualized_stdev": annualized,
	}
}
