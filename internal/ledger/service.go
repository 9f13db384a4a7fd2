// Package ledger implements transactional lot-tracking: recording buys and
// sells as immutable lots, matching sells against open lots by cost-basis
// method, and maintaining the daily_pnl placeholder rows the calculator
// later completes (spec §4.4–§4.6).
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/models"
	"github.com/aristath/portfolio/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service records buys and sells against the ledger database.
type Service struct {
	ledger *storage.LedgerStore
	market *storage.MarketStore
	log    zerolog.Logger
}

// New builds a ledger Service over the given ledger and market stores. The
// market store is only used to upsert the stock record on first reference.
func New(ledger *storage.LedgerStore, market *storage.MarketStore, log zerolog.Logger) *Service {
	return &Service{ledger: ledger, market: market, log: log.With().Str("component", "ledger_service").Logger()}
}

// BuyRequest is the input to RecordBuy.
type BuyRequest struct {
	Symbol          string
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	TransactionDate string
	Platform        string
	Notes           string
	ExternalID      string
}

// BuyResult is the outcome of RecordBuy: the (possibly pre-existing)
// transaction and the lot it owns.
type BuyResult struct {
	Transaction models.Transaction
	Lot         models.PositionLot
	Idempotent  bool // true when ExternalID matched a prior BUY
}

func validateCommon(symbol string, quantity, price decimal.Decimal, date string) error {
	if symbol == "" || len(symbol) > 20 {
		return apperrors.New(apperrors.Validation, "symbol must be 1-20 characters")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return apperrors.New(apperrors.Validation, "quantity must be positive")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return apperrors.New(apperrors.Validation, "price must be positive")
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "transaction date must be YYYY-MM-DD", err)
	}
	if parsed.After(time.Now()) {
		return apperrors.New(apperrors.Validation, "transaction date cannot be in the future")
	}
	return nil
}

// RecordBuy validates the request, upserts the stock, and inserts the
// transaction and its 1:1 position lot inside a single write transaction.
// A repeat call with the same ExternalID returns the original transaction
// and lot instead of erroring (spec §4.4 idempotency, scenario D).
func (s *Service) RecordBuy(req BuyRequest) (*BuyResult, error) {
	symbol := normalizeSymbol(req.Symbol)
	if err := validateCommon(symbol, req.Quantity, req.Price, req.TransactionDate); err != nil {
		return nil, err
	}

	if err := s.market.UpsertStock(symbol, nil); err != nil {
		return nil, err
	}

	var result BuyResult
	err := s.ledger.WithWriteTransaction(func(tx *sql.Tx) error {
		if req.ExternalID != "" {
			existing, err := storage.FindTransactionByExternalID(tx, req.ExternalID)
			if err != nil {
				return err
			}
			if existing != nil {
				lots, err := lotsForTransaction(tx, existing.ID)
				if err != nil {
					return err
				}
				if len(lots) == 0 {
					return apperrors.New(apperrors.Corrupt, "existing buy transaction has no lot")
				}
				result = BuyResult{Transaction: *existing, Lot: lots[0], Idempotent: true}
				return nil
			}
		}

		txn := models.Transaction{
			ExternalID:      req.ExternalID,
			Symbol:          symbol,
			Type:            models.Buy,
			Quantity:        req.Quantity,
			Price:           req.Price,
			TransactionDate: req.TransactionDate,
			Platform:        req.Platform,
			Notes:           req.Notes,
		}
		txnID, err := storage.InsertTransaction(tx, txn)
		if err != nil {
			return err
		}
		txn.ID = txnID

		lot := models.PositionLot{
			Symbol:            symbol,
			TransactionID:     txnID,
			OriginalQuantity:  req.Quantity,
			RemainingQuantity: req.Quantity,
			CostBasis:         req.Price,
			PurchaseDate:      req.TransactionDate,
			IsClosed:          false,
			Notes:             req.Notes,
		}
		lotID, err := storage.InsertPositionLot(tx, lot)
		if err != nil {
			return err
		}
		lot.ID = lotID

		result = BuyResult{Transaction: txn, Lot: lot}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func lotsForTransaction(tx *sql.Tx, transactionID int64) ([]models.PositionLot, error) {
	rows, err := tx.Query(`
		SELECT id, symbol, transaction_id, original_quantity, remaining_quantity, cost_basis, purchase_date, is_closed, notes
		FROM position_lots WHERE transaction_id = ?
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query lots for transaction: %w", err)
	}
	defer rows.Close()

	var lots []models.PositionLot
	for rows.Next() {
		var l models.PositionLot
		var original, remaining, cost string
		var isClosed int
		var notes sql.NullString
		if err := rows.Scan(&l.ID, &l.Symbol, &l.TransactionID, &original, &remaining, &cost, &l.PurchaseDate, &isClosed, &notes); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		l.OriginalQuantity = mustDecimal(original)
		l.RemainingQuantity = mustDecimal(remaining)
		l.CostBasis = mustDecimal(cost)
		l.IsClosed = isClosed != 0
		l.Notes = notes.String
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// SellRequest is the input to RecordSell.
type SellRequest struct {
	Symbol          string
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	TransactionDate string
	Platform        string
	Notes           string
	ExternalID      string
	Method          models.CostBasisMethod
	SpecificLots    map[int64]decimal.Decimal // lot id -> quantity, SpecificLot method only
}

// SellResult is the outcome of RecordSell.
type SellResult struct {
	Transaction    models.Transaction
	Allocations    []models.SaleAllocation
	TotalRealized  decimal.Decimal
	Idempotent     bool
}

// RecordSell validates the request, matches it against the symbol's active
// lots by the requested method, allocates the sale, and updates (or
// creates a placeholder for) that date's daily_pnl row — all inside one
// write transaction (spec §4.4, scenarios A–C).
func (s *Service) RecordSell(req SellRequest) (*SellResult, error) {
	symbol := normalizeSymbol(req.Symbol)
	if err := validateCommon(symbol, req.Quantity, req.Price, req.TransactionDate); err != nil {
		return nil, err
	}

	var result SellResult
	err := s.ledger.WithWriteTransaction(func(tx *sql.Tx) error {
		if req.ExternalID != "" {
			existing, err := storage.FindTransactionByExternalID(tx, req.ExternalID)
			if err != nil {
				return err
			}
			if existing != nil {
				allocs, err := allocationsForTransaction(tx, existing.ID)
				if err != nil {
					return err
				}
				result = SellResult{Transaction: *existing, Allocations: allocs, TotalRealized: sumRealized(allocs), Idempotent: true}
				return nil
			}
		}

		activeLots, err := storage.ActiveLotsForUpdate(tx, symbol)
		if err != nil {
			return err
		}

		matcher, err := NewMatcher(req.Method, req.SpecificLots)
		if err != nil {
			return err
		}
		matches, err := matcher.Match(activeLots, req.Quantity)
		if err != nil {
			return err
		}

		txn := models.Transaction{
			ExternalID:      req.ExternalID,
			Symbol:          symbol,
			Type:            models.Sell,
			Quantity:        req.Quantity,
			Price:           req.Price,
			TransactionDate: req.TransactionDate,
			Platform:        req.Platform,
			Notes:           req.Notes,
		}
		txnID, err := storage.InsertTransaction(tx, txn)
		if err != nil {
			return err
		}
		txn.ID = txnID

		var allocations []models.SaleAllocation
		totalRealized := decimal.Zero
		for _, m := range matches {
			realized := req.Price.Sub(m.Lot.CostBasis).Mul(m.Quantity)
			alloc := models.SaleAllocation{
				SaleTransactionID: txnID,
				LotID:             m.Lot.ID,
				QuantitySold:      m.Quantity,
				CostBasis:         m.Lot.CostBasis,
				SalePrice:         req.Price,
				RealizedPnL:       realized,
			}
			allocID, err := storage.InsertSaleAllocation(tx, alloc)
			if err != nil {
				return err
			}
			alloc.ID = allocID
			allocations = append(allocations, alloc)
			totalRealized = totalRealized.Add(realized)

			newRemaining := m.Lot.RemainingQuantity.Sub(m.Quantity)
			isClosed := newRemaining.LessThanOrEqual(models.QuantityEpsilon)
			if err := storage.UpdateLotRemaining(tx, m.Lot.ID, newRemaining, isClosed); err != nil {
				return err
			}
		}

		if err := s.updateDailyRealizedPnL(tx, symbol, req.TransactionDate, totalRealized); err != nil {
			return err
		}

		result = SellResult{Transaction: txn, Allocations: allocations, TotalRealized: totalRealized}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func allocationsForTransaction(tx *sql.Tx, transactionID int64) ([]models.SaleAllocation, error) {
	rows, err := tx.Query(`
		SELECT id, sale_transaction_id, lot_id, quantity_sold, cost_basis, sale_price, realized_pnl
		FROM sale_allocations WHERE sale_transaction_id = ?
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query allocations for transaction: %w", err)
	}
	defer rows.Close()

	var allocs []models.SaleAllocation
	for rows.Next() {
		var a models.SaleAllocation
		var qty, cost, price, pnl string
		if err := rows.Scan(&a.ID, &a.SaleTransactionID, &a.LotID, &qty, &cost, &price, &pnl); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		a.QuantitySold, a.CostBasis, a.SalePrice, a.RealizedPnL = mustDecimal(qty), mustDecimal(cost), mustDecimal(price), mustDecimal(pnl)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

func sumRealized(allocs []models.SaleAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.RealizedPnL)
	}
	return total
}

// updateDailyRealizedPnL adds realized to an existing daily_pnl row, or
// creates a placeholder row carrying only the realized portion, with market
// fields zeroed and is_stale_price=true (spec §4.4 step 6).
func (s *Service) updateDailyRealizedPnL(tx *sql.Tx, symbol, date string, realized decimal.Decimal) error {
	existing, err := storage.GetDailyPnL(tx, symbol, date)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.RealizedPnL = existing.RealizedPnL.Add(realized)
		if existing.TotalCost.GreaterThan(decimal.Zero) {
			existing.RealizedPnLPct = existing.RealizedPnL.Div(existing.TotalCost)
		} else {
			existing.RealizedPnLPct = decimal.Zero
		}
		return storage.UpsertDailyPnL(tx, *existing)
	}

	placeholder, err := s.buildPlaceholder(tx, symbol, date, realized)
	if err != nil {
		return err
	}
	return storage.UpsertDailyPnL(tx, placeholder)
}

// buildPlaceholder aggregates the symbol's currently-active lots into a
// zero-market-value daily_pnl row. This is completed later by the P&L
// calculator without disturbing RealizedPnL (spec §4.6 placeholder
// completion, scenario A).
func (s *Service) buildPlaceholder(tx *sql.Tx, symbol, date string, realized decimal.Decimal) (models.DailyPnL, error) {
	lots, err := activeLotsReadOnly(tx, symbol)
	if err != nil {
		return models.DailyPnL{}, err
	}

	quantity := decimal.Zero
	totalCost := decimal.Zero
	for _, l := range lots {
		quantity = quantity.Add(l.RemainingQuantity)
		if !l.IsDRIP() {
			totalCost = totalCost.Add(l.RemainingQuantity.Mul(l.CostBasis))
		}
	}
	avgCost := decimal.Zero
	if quantity.GreaterThan(decimal.Zero) {
		avgCost = totalCost.Div(quantity)
	}
	realizedPct := decimal.Zero
	if totalCost.GreaterThan(decimal.Zero) {
		realizedPct = realized.Div(totalCost)
	}

	return models.DailyPnL{
		Symbol:           symbol,
		ValuationDate:    date,
		Quantity:         quantity,
		AvgCost:          avgCost,
		MarketPrice:      decimal.Zero,
		MarketValue:      decimal.Zero,
		UnrealizedPnL:    decimal.Zero,
		UnrealizedPnLPct: decimal.Zero,
		RealizedPnL:      realized,
		RealizedPnLPct:   realizedPct,
		TotalCost:        totalCost,
		PriceDate:        "",
		IsStalePrice:     true,
	}, nil
}

func activeLotsReadOnly(tx *sql.Tx, symbol string) ([]models.PositionLot, error) {
	rows, err := tx.Query(`
		SELECT id, symbol, transaction_id, original_quantity, remaining_quantity, cost_basis, purchase_date, is_closed, notes
		FROM position_lots WHERE symbol = ? AND is_closed = 0
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query active lots: %w", err)
	}
	defer rows.Close()

	var lots []models.PositionLot
	for rows.Next() {
		var l models.PositionLot
		var original, remaining, cost string
		var isClosed int
		var notes sql.NullString
		if err := rows.Scan(&l.ID, &l.Symbol, &l.TransactionID, &original, &remaining, &cost, &l.PurchaseDate, &isClosed, &notes); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		l.OriginalQuantity = mustDecimal(original)
		l.RemainingQuantity = mustDecimal(remaining)
		l.CostBasis = mustDecimal(cost)
		l.IsClosed = isClosed != 0
		l.Notes = notes.String
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func normalizeSymbol(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
