package analysis

import (
	"github.com/aristath/portfolio/internal/models"
	"github.com/shopspring/decimal"
)

// FinRatios pulls the latest income/balance pivots for the symbol and
// computes net_profit_margin, roe, debt_ratio, and pe_ratio where the
// underlying metrics are present (spec §4.7). Concept names vary by filer,
// so each figure is resolved from a short list of common XBRL labels.
type FinRatios struct{}

func (FinRatios) Name() string { return "fin_ratios" }

func (FinRatios) Run(ctx *Context) map[string]interface{} {
	if ctx.Market == nil {
		return map[string]interface{}{"error": "no financial data source configured"}
	}
	period, err := ctx.Market.GetLastFinancialPeriod(ctx.Symbol)
	if err != nil || period == "" {
		return map[string]interface{}{"error": "no financial statements available"}
	}

	income, err := ctx.Market.GetFinancialPivot(ctx.Symbol, models.IncomeStatement, period)
	if err != nil {
		return map[string]interface{}{"error": "failed to load income statement"}
	}
	balance, err := ctx.Market.GetFinancialPivot(ctx.Symbol, models.BalanceSheet, period)
	if err != nil {
		return map[string]interface{}{"error": "failed to load balance sheet"}
	}

	netIncome, hasNetIncome := findMetric(income, "NetIncomeLoss", "Net Income", "NetIncome")
	revenue, hasRevenue := findMetric(income, "Revenues", "Revenue", "TotalRevenue", "SalesRevenueNet")
	equity, hasEquity := findMetric(balance, "StockholdersEquity", "Total Stockholders Equity", "Equity")
	liabilities, hasLiabilities := findMetric(balance, "Liabilities", "Total Liabilities")
	assets, hasAssets := findMetric(balance, "Assets", "Total Assets")
	shares, hasShares := findMetric(balance, "CommonStockSharesOutstanding", "Shares Outstanding", "WeightedAverageNumberOfSharesOutstandingBasic")

	ratios := map[string]float64{}
	out := map[string]interface{}{"period": period}

	if hasNetIncome && hasRevenue && !revenue.IsZero() {
		v, _ := netIncome.Div(revenue).Mul(decimal.NewFromInt(100)).Float64()
		ratios["net_profit_margin"] = v
		out["net_profit_margin"] = v
	}
	if hasNetIncome && hasEquity && !equity.IsZero() {
		v, _ := netIncome.Div(equity).Mul(decimal.NewFromInt(100)).Float64()
		ratios["roe"] = v
		out["roe"] = v
	}
	if hasLiabilities && hasAssets && !assets.IsZero() {
		v, _ := liabilities.Div(assets).Float64()
		ratios["debt_ratio"] = v
		out["debt_ratio"] = v
	}
	if hasNetIncome && hasShares && !shares.IsZero() && len(ctx.Bars) > 0 {
		eps := netIncome.Div(shares)
		if !eps.IsZero() {
			price := ctx.Bars[len(ctx.Bars)-1].Close
			v, _ := price.Div(eps).Float64()
			ratios["pe_ratio"] = v
			out["pe_ratio"] = v
		}
	}

	if len(ratios) == 0 {
		return map[string]interface{}{"error": "no computable ratios for latest period"}
	}
	ctx.Extras["fin_ratios"] = ratios
	return out
}

func findMetric(pivot map[string]decimal.Decimal, candidates ...string) (decimal.Decimal, bool) {
	for _, name := range candidates {
		if v, ok := pivot[name]; ok {
			return v, true
		}
	}
	return decimal.Zero, false
}
