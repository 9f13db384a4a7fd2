package analysis

import (
	"github.com/aristath/portfolio/internal/models"
	"github.com/rs/zerolog"
)

// Repository is the read surface the Runner needs to build a frame per
// symbol. Satisfied by storage.MarketStore.
type Repository interface {
	GetStockData(symbol, start, end string) ([]models.PriceBar, error)
}

// Summary is the Runner's distilled per-symbol verdict (spec §6 schema).
type Summary struct {
	Trend      string   `json:"trend"` // up|down|unknown
	RSISignal  string   `json:"rsi_signal"`
	DropAlert  bool     `json:"drop_alert"`
	DropChange *float64 `json:"drop_change"`
}

// Metrics reports the row count of one symbol's run and the sum of its
// operators' run times.
type Metrics struct {
	Rows       int   `json:"rows"`
	DurationMs int64 `json:"duration_ms"`
}

// Result is the full JSON-shaped per-symbol analysis output (spec §6).
type Result struct {
	Operators map[string]OperatorResult `json:"operators"`
	Summary   Summary                   `json:"summary"`
	Errors    []OpError                 `json:"errors"`
	Metrics   Metrics                   `json:"metrics"`
}

// Runner resolves a frame per symbol, runs the engine, and derives a
// Summary and error list from the operator results.
type Runner struct {
	repo   Repository
	engine *Engine
	cfg    Config
	market FinancialLookup
	log    zerolog.Logger
}

// NewRunner builds a Runner. market may be nil when financial operators are not
// part of the declared operator list.
func NewRunner(repo Repository, engine *Engine, cfg Config, market FinancialLookup, log zerolog.Logger) *Runner {
	return &Runner{repo: repo, engine: engine, cfg: cfg, market: market, log: log.With().Str("component", "analysis_runner").Logger()}
}

// Run executes the declared pipeline for symbol over [start,end] bars.
func (r *Runner) Run(symbol, start, end string) Result {
	bars, err := r.repo.GetStockData(symbol, start, end)
	if err != nil {
		return Result{
			Errors: []OpError{{Code: "repository_error", Message: err.Error(), Severity: "error"}},
		}
	}
	if len(bars) == 0 {
		return Result{
			Errors:  []OpError{{Code: "no_data", Message: "no price history for symbol in requested window", Severity: "warning"}},
			Metrics: Metrics{Rows: 0},
		}
	}

	ctx := NewContext(symbol, bars, r.cfg)
	ctx.Market = r.market

	opResults := r.engine.Run(ctx)

	var errs []OpError
	var totalMs int64
	for _, res := range opResults {
		totalMs += res.DurationMs
		if res.Error != nil {
			errs = append(errs, *res.Error)
		}
	}

	return Result{
		Operators: opResults,
		Summary:   summarize(bars, opResults),
		Errors:    errs,
		Metrics:   Metrics{Rows: len(bars), DurationMs: totalMs},
	}
}

func summarize(bars []models.PriceBar, ops map[string]OperatorResult) Summary {
	summary := Summary{Trend: "unknown", RSISignal: "n/a"}

	lastClose, _ := bars[len(bars)-1].Close.Float64()
	if ma, ok := ops["ma"]; ok && ma.Data != nil {
		if ma20, ok := ma.Data["ma_20"].(float64); ok {
			switch {
			case lastClose > ma20:
				summary.Trend = "up"
			case lastClose < ma20:
				summary.Trend = "down"
			}
		}
	}

	if rsi, ok := ops["rsi"]; ok && rsi.Data != nil {
		if signal, ok := rsi.Data["signal"].(string); ok {
			summary.RSISignal = signal
		}
	}

	if drop, ok := ops["drop_alert"]; ok && drop.Data != nil {
		if alert, ok := drop.Data["alert"].(bool); ok {
			summary.DropAlert = alert
		}
		if change, ok := drop.Data["change_pct"].(float64); ok {
			summary.DropChange = &change
		}
	}

	return summary
}
