// Package models holds the entities shared across the storage, ledger and
// analytics layers. Monetary amounts and share quantities are fixed-point
// decimals (github.com/shopspring/decimal), never binary floats: prices carry
// four fractional digits, money two, quantities four.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes a buy from a sell in the ledger.
type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// CostBasisMethod selects how a SELL is matched against open lots.
type CostBasisMethod string

const (
	FIFO         CostBasisMethod = "FIFO"
	LIFO         CostBasisMethod = "LIFO"
	SpecificLot  CostBasisMethod = "SPECIFIC"
	AverageCost  CostBasisMethod = "AVERAGE"
)

// QuantityEpsilon is the tolerance used for all remaining/sold-quantity
// comparisons across the ledger, per spec ε = 1e-4.
var QuantityEpsilon = decimal.New(1, -4)

// Stock is a unique ticker symbol. Created on first reference by either the
// ingestion engine or the ledger; never deleted while referenced.
type Stock struct {
	Symbol    string
	Name      string
	Exchange  string
	Currency  string
	Sector    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceBar is one calendar day of OHLCV data for a symbol.
type PriceBar struct {
	Symbol   string
	Date     string // YYYY-MM-DD
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	AdjClose decimal.Decimal
	Volume   int64
	Source   string
}

// StatementType enumerates the three financial-statement tables.
type StatementType string

const (
	IncomeStatement StatementType = "income_statement"
	BalanceSheet    StatementType = "balance_sheet"
	CashFlow        StatementType = "cash_flow"
)

// FinancialMetric is a single (symbol, statement_type, period, metric_name)
// fact, e.g. ("AAPL", income_statement, "2024-09-28", "Revenue") -> 391035.
type FinancialMetric struct {
	Symbol        string
	StatementType StatementType
	Period        string
	MetricName    string
	Value         decimal.Decimal
}

// Transaction is an immutable, append-only ledger row. ExternalID, when set,
// provides idempotency across re-runs of the same import.
type Transaction struct {
	ID              int64
	ExternalID      string
	Symbol          string
	Type            TransactionType
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	TransactionDate string // YYYY-MM-DD
	Platform        string
	Notes           string
	CreatedAt       time.Time
}

// PositionLot is created 1:1 from a BUY transaction and partially or fully
// consumed by later SELLs via SaleAllocation rows.
type PositionLot struct {
	ID                int64
	Symbol            string
	TransactionID     int64
	OriginalQuantity  decimal.Decimal
	RemainingQuantity decimal.Decimal
	CostBasis         decimal.Decimal // per share
	PurchaseDate      string
	IsClosed          bool
	Notes             string
	CreatedAt         time.Time
}

// ParsePrice parses a decimal string from a downloader wire format,
// rounding to the 4-fractional-digit precision prices carry (spec §3).
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(4), nil
}

// IsDRIP reports whether this lot originated from a dividend reinvestment,
// inferred from the freeform notes field (spec §9: known source ambiguity,
// specified as-observed).
func (l PositionLot) IsDRIP() bool {
	return strings.Contains(l.Notes, "Dividend Reinvestment")
}

// SaleAllocation records how much of a single lot a given SELL consumed.
type SaleAllocation struct {
	ID                 int64
	SaleTransactionID  int64
	LotID              int64
	QuantitySold       decimal.Decimal
	CostBasis          decimal.Decimal
	SalePrice          decimal.Decimal
	RealizedPnL        decimal.Decimal
	CreatedAt          time.Time
}

// DailyPnL is the derived, recomputable valuation of a symbol on one date.
// It is never the source of truth for realized P&L; that is always the sum
// of SaleAllocation rows.
type DailyPnL struct {
	Symbol           string
	ValuationDate    string
	Quantity         decimal.Decimal
	AvgCost          decimal.Decimal
	MarketPrice      decimal.Decimal
	MarketValue      decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
	RealizedPnL      decimal.Decimal
	RealizedPnLPct   decimal.Decimal
	TotalCost        decimal.Decimal
	PriceDate        string // empty when no price was ever resolved
	IsStalePrice     bool
	UpdatedAt        time.Time
}

// DownloadLog is an append-only observability trail for one ingestion
// attempt against one symbol.
type DownloadLog struct {
	ID           string
	Symbol       string
	Kind         string // "stock" | "financial"
	Strategy     string
	Success      bool
	DataPoints   int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}
