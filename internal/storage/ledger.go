package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/database"
	"github.com/aristath/portfolio/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerStore is the typed read/write API over the ledger database.
// writeMu serializes the write transactions described in spec §4.1: the
// ledger tables have a single logical writer even though SQLite itself
// could admit more under WAL.
type LedgerStore struct {
	db      *database.DB
	log     zerolog.Logger
	writeMu sync.Mutex
}

// NewLedgerStore wraps an already-opened, already-migrated ledger database.
func NewLedgerStore(db *database.DB, log zerolog.Logger) *LedgerStore {
	return &LedgerStore{db: db, log: log.With().Str("component", "ledger_store").Logger()}
}

// WithWriteTransaction acquires the single ledger write lock, then runs fn
// inside a database transaction. Every BUY/SELL recording path in
// internal/ledger goes through this so the invariants in spec §4.4/§8 hold
// even under concurrent callers.
func (s *LedgerStore) WithWriteTransaction(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return database.WithTransaction(s.db.Conn(), fn)
}

// FindTransactionByExternalID supports idempotent BUY/SELL recording: a
// repeat call with the same external_id must observe the first transaction
// instead of erroring.
func FindTransactionByExternalID(tx *sql.Tx, externalID string) (*models.Transaction, error) {
	if externalID == "" {
		return nil, nil
	}
	row := tx.QueryRow(`
		SELECT id, external_id, symbol, type, quantity, price, transaction_date, platform, notes
		FROM transactions WHERE external_id = ?
	`, externalID)
	return scanTransaction(row)
}

func scanTransaction(row *sql.Row) (*models.Transaction, error) {
	var t models.Transaction
	var externalID, platform, notes sql.NullString
	var quantity, price string
	err := row.Scan(&t.ID, &externalID, &t.Symbol, &t.Type, &quantity, &price, &t.TransactionDate, &platform, &notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.ExternalID = externalID.String
	t.Platform = platform.String
	t.Notes = notes.String
	t.Quantity = mustDecimal(quantity)
	t.Price = mustDecimal(price)
	return &t, nil
}

// InsertTransaction appends a new row and returns its id. Caller is
// responsible for idempotency (FindTransactionByExternalID first).
func InsertTransaction(tx *sql.Tx, t models.Transaction) (int64, error) {
	var externalID interface{}
	if t.ExternalID != "" {
		externalID = t.ExternalID
	}
	res, err := tx.Exec(`
		INSERT INTO transactions (external_id, symbol, type, quantity, price, transaction_date, platform, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, externalID, t.Symbol, t.Type, t.Quantity.String(), t.Price.String(), t.TransactionDate, t.Platform, t.Notes, time.Now().Unix())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ConstraintViolation, "insert transaction", err)
	}
	return res.LastInsertId()
}

// InsertPositionLot creates a lot 1:1 from a BUY transaction.
func InsertPositionLot(tx *sql.Tx, l models.PositionLot) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO position_lots (symbol, transaction_id, original_quantity, remaining_quantity, cost_basis, purchase_date, is_closed, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.Symbol, l.TransactionID, l.OriginalQuantity.String(), l.RemainingQuantity.String(), l.CostBasis.String(),
		l.PurchaseDate, boolToInt(l.IsClosed), l.Notes, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert position lot: %w", err)
	}
	return res.LastInsertId()
}

// UpdateLotRemaining writes back the post-sale remaining quantity and
// closed flag for one lot.
func UpdateLotRemaining(tx *sql.Tx, lotID int64, remaining decimal.Decimal, isClosed bool) error {
	_, err := tx.Exec(`UPDATE position_lots SET remaining_quantity = ?, is_closed = ? WHERE id = ?`,
		remaining.String(), boolToInt(isClosed), lotID)
	if err != nil {
		return fmt.Errorf("update lot remaining: %w", err)
	}
	return nil
}

// ActiveLotsForUpdate returns active (is_closed=false) lots for symbol,
// locked for the duration of the caller's write transaction, ordered for
// FIFO consumption. Matchers re-sort as needed for LIFO/average.
func ActiveLotsForUpdate(tx *sql.Tx, symbol string) ([]models.PositionLot, error) {
	rows, err := tx.Query(`
		SELECT id, symbol, transaction_id, original_quantity, remaining_quantity, cost_basis, purchase_date, is_closed, notes
		FROM position_lots WHERE symbol = ? AND is_closed = 0
		ORDER BY purchase_date ASC, id ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query active lots: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

// GetPositionLots returns lots for symbol; activeOnly filters to is_closed=false.
func (s *LedgerStore) GetPositionLots(symbol string, activeOnly bool) ([]models.PositionLot, error) {
	query := `SELECT id, symbol, transaction_id, original_quantity, remaining_quantity, cost_basis, purchase_date, is_closed, notes
		FROM position_lots WHERE symbol = ?`
	if activeOnly {
		query += ` AND is_closed = 0`
	}
	query += ` ORDER BY purchase_date ASC, id ASC`

	rows, err := s.db.Query(query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query position lots: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

func scanLots(rows *sql.Rows) ([]models.PositionLot, error) {
	var lots []models.PositionLot
	for rows.Next() {
		var l models.PositionLot
		var original, remaining, cost string
		var isClosed int
		var notes sql.NullString
		if err := rows.Scan(&l.ID, &l.Symbol, &l.TransactionID, &original, &remaining, &cost, &l.PurchaseDate, &isClosed, &notes); err != nil {
			return nil, fmt.Errorf("scan position lot: %w", err)
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

// GetActiveLotsAsOf returns active lots for symbol purchased at or before
// asOfDate, for the P&L calculator (spec §4.6 step 1).
func (s *LedgerStore) GetActiveLotsAsOf(symbol, asOfDate string) ([]models.PositionLot, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, transaction_id, original_quantity, remaining_quantity, cost_basis, purchase_date, is_closed, notes
		FROM position_lots WHERE symbol = ? AND is_closed = 0 AND purchase_date <= ?
		ORDER BY purchase_date ASC, id ASC
	`, symbol, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("query active lots as of date: %w", err)
	}
	defer rows.Close()
	return scanLots(rows)
}

// GetLotByID fetches a single lot by id within a write transaction.
func GetLotByID(tx *sql.Tx, lotID int64) (*models.PositionLot, error) {
	row := tx.QueryRow(`
		SELECT id, symbol, transaction_id, original_quantity, remaining_quantity, cost_basis, purchase_date, is_closed, notes
		FROM position_lots WHERE id = ?
	`, lotID)
	var l models.PositionLot
	var original, remaining, cost string
	var isClosed int
	var notes sql.NullString
	err := row.Scan(&l.ID, &l.Symbol, &l.TransactionID, &original, &remaining, &cost, &l.PurchaseDate, &isClosed, &notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan lot by id: %w", err)
	}
	l.OriginalQuantity = mustDecimal(original)
	l.RemainingQuantity = mustDecimal(remaining)
	l.CostBasis = mustDecimal(cost)
	l.IsClosed = isClosed != 0
	l.Notes = notes.String
	return &l, nil
}

// InsertSaleAllocation records how much of one lot a SELL consumed.
func InsertSaleAllocation(tx *sql.Tx, a models.SaleAllocation) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO sale_allocations (sale_transaction_id, lot_id, quantity_sold, cost_basis, sale_price, realized_pnl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.SaleTransactionID, a.LotID, a.QuantitySold.String(), a.CostBasis.String(), a.SalePrice.String(), a.RealizedPnL.String(), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert sale allocation: %w", err)
	}
	return res.LastInsertId()
}

// GetSaleAllocations returns every allocation for a given SELL transaction.
func (s *LedgerStore) GetSaleAllocations(saleTransactionID int64) ([]models.SaleAllocation, error) {
	rows, err := s.db.Query(`
		SELECT id, sale_transaction_id, lot_id, quantity_sold, cost_basis, sale_price, realized_pnl
		FROM sale_allocations WHERE sale_transaction_id = ?
	`, saleTransactionID)
	if err != nil {
		return nil, fmt.Errorf("query sale allocations: %w", err)
	}
	defer rows.Close()

	var allocs []models.SaleAllocation
	for rows.Next() {
		var a models.SaleAllocation
		var qty, cost, price, pnl string
		if err := rows.Scan(&a.ID, &a.SaleTransactionID, &a.LotID, &qty, &cost, &price, &pnl); err != nil {
			return nil, fmt.Errorf("scan sale allocation: %w", err)
		}
		a.QuantitySold, a.CostBasis, a.SalePrice, a.RealizedPnL = mustDecimal(qty), mustDecimal(cost), mustDecimal(price), mustDecimal(pnl)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// GetDailyPnL fetches a single (symbol, date) row, or nil if absent.
func GetDailyPnL(tx *sql.Tx, symbol, date string) (*models.DailyPnL, error) {
	row := tx.QueryRow(`
		SELECT symbol, valuation_date, quantity, avg_cost, market_price, market_value, unrealized_pnl,
			unrealized_pnl_pct, realized_pnl, realized_pnl_pct, total_cost, price_date, is_stale_price
		FROM daily_pnl WHERE symbol = ? AND valuation_date = ?
	`, symbol, date)
	return scanDailyPnL(row)
}

// GetDailyPnLReadOnly is the non-transactional counterpart used by the
// calculator and reporting paths.
func (s *LedgerStore) GetDailyPnLReadOnly(symbol, date string) (*models.DailyPnL, error) {
	row := s.db.QueryRow(`
		SELECT symbol, valuation_date, quantity, avg_cost, market_price, market_value, unrealized_pnl,
			unrealized_pnl_pct, realized_pnl, realized_pnl_pct, total_cost, price_date, is_stale_price
		FROM daily_pnl WHERE symbol = ? AND valuation_date = ?
	`, symbol, date)
	return scanDailyPnL(row)
}

func scanDailyPnL(row *sql.Row) (*models.DailyPnL, error) {
	var d models.DailyPnL
	var quantity, avgCost, marketPrice, marketValue, unrealized, unrealizedPct, realized, realizedPct, totalCost string
	var priceDate sql.NullString
	var isStale int
	err := row.Scan(&d.Symbol, &d.ValuationDate, &quantity, &avgCost, &marketPrice, &marketValue, &unrealized,
		&unrealizedPct, &realized, &realizedPct, &totalCost, &priceDate, &isStale)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan daily pnl: %w", err)
	}
	d.Quantity, d.AvgCost, d.MarketPrice, d.MarketValue = mustDecimal(quantity), mustDecimal(avgCost), mustDecimal(marketPrice), mustDecimal(marketValue)
	d.UnrealizedPnL, d.UnrealizedPnLPct = mustDecimal(unrealized), mustDecimal(unrealizedPct)
	d.RealizedPnL, d.RealizedPnLPct = mustDecimal(realized), mustDecimal(realizedPct)
	d.TotalCost = mustDecimal(totalCost)
	d.PriceDate = priceDate.String
	d.IsStalePrice = isStale != 0
	return &d, nil
}

// UpsertDailyPnL writes row, keyed on (symbol, valuation_date).
func UpsertDailyPnL(tx *sql.Tx, d models.DailyPnL) error {
	var priceDate interface{}
	if d.PriceDate != "" {
		priceDate = d.PriceDate
	}
	_, err := tx.Exec(`
		INSERT INTO daily_pnl (symbol, valuation_date, quantity, avg_cost, market_price, market_value, unrealized_pnl,
			unrealized_pnl_pct, realized_pnl, realized_pnl_pct, total_cost, price_date, is_stale_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, valuation_date) DO UPDATE SET
			quantity=excluded.quantity, avg_cost=excluded.avg_cost, market_price=excluded.market_price,
			market_value=excluded.market_value, unrealized_pnl=excluded.unrealized_pnl,
			unrealized_pnl_pct=excluded.unrealized_pnl_pct, realized_pnl=excluded.realized_pnl,
			realized_pnl_pct=excluded.realized_pnl_pct, total_cost=excluded.total_cost,
			price_date=excluded.price_date, is_stale_price=excluded.is_stale_price, updated_at=excluded.updated_at
	`, d.Symbol, d.ValuationDate, d.Quantity.String(), d.AvgCost.String(), d.MarketPrice.String(), d.MarketValue.String(),
		d.UnrealizedPnL.String(), d.UnrealizedPnLPct.String(), d.RealizedPnL.String(), d.RealizedPnLPct.String(),
		d.TotalCost.String(), priceDate, boolToInt(d.IsStalePrice), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert daily pnl: %w", err)
	}
	return nil
}

// UpsertDailyPnLAutocommit wraps UpsertDailyPnL in its own transaction for
// callers outside the ledger write path (e.g. the standalone P&L calculator
// CLI command, which never touches transactions/lots).
func (s *LedgerStore) UpsertDailyPnLAutocommit(d models.DailyPnL) error {
	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		return UpsertDailyPnL(tx, d)
	})
}

// ListTransactions returns every transaction for symbol, newest first. An
// empty txType returns both BUYs and SELLs; used by the CLI's `sales`
// command (txType=SELL) and for report formatting outside this package.
func (s *LedgerStore) ListTransactions(symbol string, txType models.TransactionType) ([]models.Transaction, error) {
	query := `SELECT id, external_id, symbol, type, quantity, price, transaction_date, platform, notes
		FROM transactions WHERE symbol = ?`
	args := []interface{}{symbol}
	if txType != "" {
		query += ` AND type = ?`
		args = append(args, txType)
	}
	query += ` ORDER BY transaction_date DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var externalID, platform, notes sql.NullString
		var quantity, price string
		if err := rows.Scan(&t.ID, &externalID, &t.Symbol, &t.Type, &quantity, &price, &t.TransactionDate, &platform, &notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.ExternalID, t.Platform, t.Notes = externalID.String, platform.String, notes.String
		t.Quantity, t.Price = mustDecimal(quantity), mustDecimal(price)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ListSymbols returns every distinct symbol that owns at least one position
// lot, for CLI commands (`positions`, `tax-report`) that operate across the
// whole ledger rather than a single -s SYMBOL.
func (s *LedgerStore) ListSymbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM position_lots ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query distinct symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// TradingDatesInRange returns the distinct dates with a stored price bar for
// any symbol in the set, used when only_trading_days=true in batch P&L.
func (s *MarketStore) TradingDatesInRange(symbols []string, start, end string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := make([]interface{}, 0, len(symbols)+2)
	for i, sym := range symbols {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, sym)
	}
	args = append(args, start, end)

	query := fmt.Sprintf(`SELECT DISTINCT date FROM stock_prices WHERE symbol IN (%s) AND date >= ? AND date <= ? ORDER BY date ASC`, placeholders)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trading dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan trading date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
