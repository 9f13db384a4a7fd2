// Package analysis implements the operator pipeline: a declared sequence of
// indicator/alert/scoring steps run over one symbol's OHLCV frame, each
// isolated from the others' failures (spec §4.7).
package analysis

import (
	"github.com/aristath/portfolio/internal/models"
	"github.com/shopspring/decimal"
)

// Config tunes the built-in operators' thresholds (spec §4.7).
type Config struct {
	DropAlertDays           int
	DropAlertThresholdPct   float64
	DropAlert7dThresholdPct float64
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		DropAlertDays:           1,
		DropAlertThresholdPct:   15.0,
		DropAlert7dThresholdPct: 20.0,
	}
}

// Context is the per-symbol value threaded through every operator: the
// OHLCV frame, resolved config, and an extras mapping operators use to hand
// off derived series to later operators (e.g. fin_ratios -> fin_health).
type Context struct {
	Symbol  string
	Bars    []models.PriceBar // ascending by date
	Config  Config
	Extras  map[string]interface{}
	Market  FinancialLookup
}

// FinancialLookup is the subset of storage.MarketStore the financial
// operators need, kept as an interface so analysis never imports storage
// directly (keeps the dependency edge one-directional: storage has no
// knowledge of operators, operators depend on a narrow read contract).
type FinancialLookup interface {
	GetLastFinancialPeriod(symbol string) (string, error)
	GetFinancialPivot(symbol string, statementType models.StatementType, period string) (map[string]decimal.Decimal, error)
}

// NewContext builds a Context with an initialized extras map.
func NewContext(symbol string, bars []models.PriceBar, cfg Config) *Context {
	return &Context{Symbol: symbol, Bars: bars, Config: cfg, Extras: map[string]interface{}{}}
}

// closes returns the Close series in chronological order.
func (c *Context) closes() []float64 {
	out := make([]float64, len(c.Bars))
	for i, b := range c.Bars {
		f, _ := b.Close.Float64()
		out[i] = f
	}
	return out
}

func (c *Context) dates() []string {
	out := make([]string, len(c.Bars))
	for i, b := range c.Bars {
		out[i] = b.Date
	}
	return out
}
