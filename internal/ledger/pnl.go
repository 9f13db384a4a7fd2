package ledger

import (
	"fmt"
	"time"

	"github.com/aristath/portfolio/internal/models"
	"github.com/aristath/portfolio/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// consistencyTolerance is the debug-only mismatch threshold for recomputed
// unrealized_pnl (spec §4.6 consistency check).
var consistencyTolerance = decimal.NewFromFloat(0.01)

// Calculator derives daily_pnl rows from open lots and stored market prices.
// It never touches transactions, position_lots writes, or sale_allocations;
// all of that belongs to Service.
type Calculator struct {
	ledger *storage.LedgerStore
	market *storage.MarketStore
	log    zerolog.Logger
	debug  bool
}

// NewCalculator builds a Calculator. debug enables the recompute-and-compare
// consistency check after every Calculate.
func NewCalculator(ledger *storage.LedgerStore, market *storage.MarketStore, log zerolog.Logger, debug bool) *Calculator {
	return &Calculator{ledger: ledger, market: market, log: log.With().Str("component", "pnl_calculator").Logger(), debug: debug}
}

// PriceField selects which stored price column backs valuation.
type PriceField string

const (
	Close    PriceField = "close"
	AdjClose PriceField = "adj_close"
)

// ErrNoPrice indicates the date has neither an exact nor a backfillable
// price for the symbol; the caller should skip that (symbol, date) pair.
var ErrNoPrice = fmt.Errorf("no price available on or before date")

// Calculate computes and upserts one (symbol, date) row, returning it.
// Returns ErrNoPrice when no market price could be resolved at all (spec
// §4.6 step 2, "if still absent, skip this date for this symbol").
func (c *Calculator) Calculate(symbol, date string, field PriceField) (*models.DailyPnL, error) {
	if field == "" {
		field = Close
	}

	lots, err := c.ledger.GetActiveLotsAsOf(symbol, date)
	if err != nil {
		return nil, err
	}

	priceDate, price, ok, err := c.resolvePrice(symbol, date, field)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPrice
	}
	isStale := priceDate != date

	quantity := decimal.Zero
	totalCost := decimal.Zero
	marketQuantity := decimal.Zero
	for _, l := range lots {
		marketQuantity = marketQuantity.Add(l.RemainingQuantity)
		if !l.IsDRIP() {
			quantity = quantity.Add(l.RemainingQuantity)
			totalCost = totalCost.Add(l.RemainingQuantity.Mul(l.CostBasis))
		}
	}
	avgCost := decimal.Zero
	if quantity.GreaterThan(decimal.Zero) {
		avgCost = totalCost.Div(quantity)
	}

	marketValue := marketQuantity.Mul(price)
	unrealized := marketValue.Sub(totalCost)
	unrealizedPct := decimal.Zero
	if totalCost.GreaterThan(decimal.Zero) {
		unrealizedPct = unrealized.Div(totalCost)
	}

	existing, err := c.ledger.GetDailyPnLReadOnly(symbol, date)
	if err != nil {
		return nil, err
	}
	realized := decimal.Zero
	realizedPct := decimal.Zero
	if existing != nil {
		realized = existing.RealizedPnL
		realizedPct = existing.RealizedPnLPct
	}

	row := models.DailyPnL{
		Symbol:           symbol,
		ValuationDate:    date,
		Quantity:         marketQuantity,
		AvgCost:          avgCost,
		MarketPrice:      price,
		MarketValue:      marketValue,
		UnrealizedPnL:    unrealized,
		UnrealizedPnLPct: unrealizedPct,
		RealizedPnL:      realized,
		RealizedPnLPct:   realizedPct,
		TotalCost:        totalCost,
		PriceDate:        priceDate,
		IsStalePrice:     isStale,
	}

	if c.debug {
		c.consistencyCheck(row)
	}

	if err := c.ledger.UpsertDailyPnLAutocommit(row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *Calculator) resolvePrice(symbol, date string, field PriceField) (string, decimal.Decimal, bool, error) {
	p, found, err := c.market.GetStockPriceForDate(symbol, date, string(field))
	if err != nil {
		return "", decimal.Zero, false, err
	}
	if found {
		return date, p, true, nil
	}
	d, p, found, err := c.market.GetLatestStockPriceBefore(symbol, date, string(field))
	if err != nil {
		return "", decimal.Zero, false, err
	}
	if !found {
		return "", decimal.Zero, false, nil
	}
	return d, p, true, nil
}

func (c *Calculator) consistencyCheck(row models.DailyPnL) {
	recomputed := row.Quantity.Mul(row.MarketPrice).Sub(row.TotalCost)
	if recomputed.Sub(row.UnrealizedPnL).Abs().GreaterThan(consistencyTolerance) {
		c.log.Warn().Str("symbol", row.Symbol).Str("date", row.ValuationDate).
			Str("recomputed", recomputed.String()).Str("stored", row.UnrealizedPnL.String()).
			Msg("unrealized_pnl consistency check mismatch")
	}
}

// BatchRequest configures a multi-symbol, multi-date Calculate sweep.
type BatchRequest struct {
	Symbols         []string
	StartDate       string
	EndDate         string
	OnlyTradingDays bool
	Field           PriceField
}

// BatchResult is a single (symbol, date) outcome from Calculate, including
// skipped pairs so callers can report coverage.
type BatchResult struct {
	Symbol string
	Date   string
	Row    *models.DailyPnL
	Err    error
}

// CalculateBatch runs Calculate over the cartesian product of req.Symbols
// and the resolved date range, pre-fetching the trading-day calendar once
// when OnlyTradingDays is set to avoid an N+1 query pattern (spec §4.6).
func (c *Calculator) CalculateBatch(req BatchRequest) ([]BatchResult, error) {
	dates, err := c.resolveDates(req)
	if err != nil {
		return nil, err
	}

	var results []BatchResult
	for _, symbol := range req.Symbols {
		for _, date := range dates {
			row, err := c.Calculate(symbol, date, req.Field)
			if err == ErrNoPrice {
				continue
			}
			results = append(results, BatchResult{Symbol: symbol, Date: date, Row: row, Err: err})
		}
	}
	return results, nil
}

func (c *Calculator) resolveDates(req BatchRequest) ([]string, error) {
	if req.OnlyTradingDays {
		return c.market.TradingDatesInRange(req.Symbols, req.StartDate, req.EndDate)
	}
	return naturalDateRange(req.StartDate, req.EndDate)
}

// naturalDateRange enumerates every calendar date in [start,end] inclusive.
func naturalDateRange(start, end string) ([]string, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("end date before start date")
	}
	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, nil
}
