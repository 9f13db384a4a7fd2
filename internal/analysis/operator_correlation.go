package analysis

import (
	"gonum.org/v1/gonum/stat"
)

// Correlation computes the pairwise Pearson correlation of this symbol's
// Close series against a fixed set of peer series (typically the rest of
// the watchlist), aligned on their trailing N bars. Newly authored
// alongside Volatility to exercise gonum.org/v1/gonum/stat.Correlation;
// not present in original_source (see DESIGN.md).
type Correlation struct {
	Peers map[string][]float64 // symbol -> Close series, chronological
}

func (Correlation) Name() string { return "correlation" }

func (c Correlation) Run(ctx *Context) map[string]interface{} {
	base := ctx.closes()
	if len(base) < 2 {
		return map[string]interface{}{"error": "insufficient history for correlation"}
	}

	out := map[string]interface{}{}
	for symbol, peer := range c.Peers {
		if symbol == ctx.Symbol || len(peer) < 2 {
			continue
		}
		a, b := alignTrailing(base, peer)
		if len(a) < 2 {
			continue
		}
		out[symbol] = stat.Correlation(a, b, nil)
	}
	if len(out) == 0 {
		return map[string]interface{}{"error": "no comparable peer series"}
	}
	return out
}

// alignTrailing truncates both series to their shared trailing length.
func alignTrailing(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}
