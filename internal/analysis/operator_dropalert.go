package analysis

// DropAlert computes (close_t - close_t-days) / close_t-days * 100 over the
// Close series and alerts when the change is <= -ThresholdPct (spec §4.7).
type DropAlert struct {
	Days         int
	ThresholdPct float64
	name         string
}

// NewDropAlert builds a DropAlert for an arbitrary window/threshold.
func NewDropAlert(days int, thresholdPct float64) DropAlert {
	return DropAlert{Days: days, ThresholdPct: thresholdPct, name: "drop_alert"}
}

// NewDropAlert7d is the days=7 specialization named in spec §4.7.
func NewDropAlert7d(thresholdPct float64) DropAlert {
	return DropAlert{Days: 7, ThresholdPct: thresholdPct, name: "drop_alert_7d"}
}

func (d DropAlert) Name() string {
	if d.name != "" {
		return d.name
	}
	return "drop_alert"
}

func (d DropAlert) Run(ctx *Context) map[string]interface{} {
	closes := ctx.closes()
	if len(closes) <= d.Days {
		return map[string]interface{}{"error": "insufficient history for drop alert window"}
	}

	latest := closes[len(closes)-1]
	prior := closes[len(closes)-1-d.Days]
	if prior == 0 {
		return map[string]interface{}{"error": "zero baseline price for drop alert"}
	}

	change := (latest - prior) / prior * 100
	return map[string]interface{}{
		"change_pct": change,
		"alert":      change <= -d.ThresholdPct,
	}
}
