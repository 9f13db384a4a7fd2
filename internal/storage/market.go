// Package storage owns the schema and exposes typed read/write operations
// for the market database (stocks, price bars, financial statements,
// download log) and the ledger database (transactions, lots, allocations,
// daily P&L). It is a leaf package: it knows the shape of rows, never the
// business rules that produce them (spec §9 design notes, on the source's
// cyclic storage/trading import).
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/database"
	"github.com/aristath/portfolio/internal/models"
	"github.com/aristath/portfolio/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MarketStore is the typed read/write API over the market database.
type MarketStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMarketStore wraps an already-opened, already-migrated market database.
func NewMarketStore(db *database.DB, log zerolog.Logger) *MarketStore {
	return &MarketStore{db: db, log: log.With().Str("component", "market_store").Logger()}
}

// UpsertStock inserts the symbol if unseen; updates metadata only when meta
// is non-nil, so a bare ingestion touch never clobbers curated fields.
func (s *MarketStore) UpsertStock(symbol string, meta *models.Stock) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO stocks (symbol, name, exchange, currency, sector, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO NOTHING
	`, symbol, metaField(meta, "name"), metaField(meta, "exchange"), metaField(meta, "currency"), metaField(meta, "sector"), now, now)
	if err != nil {
		return apperrors.Wrap(apperrors.ConstraintViolation, "upsert stock", err)
	}

	if meta != nil {
		_, err = s.db.Exec(`
			UPDATE stocks SET name=COALESCE(NULLIF(?,''),name), exchange=COALESCE(NULLIF(?,''),exchange),
				currency=COALESCE(NULLIF(?,''),currency), sector=COALESCE(NULLIF(?,''),sector), updated_at=?
			WHERE symbol=?
		`, meta.Name, meta.Exchange, meta.Currency, meta.Sector, now, symbol)
		if err != nil {
			return apperrors.Wrap(apperrors.ConstraintViolation, "update stock metadata", err)
		}
	}
	return nil
}

func metaField(meta *models.Stock, field string) string {
	if meta == nil {
		return ""
	}
	switch field {
	case "name":
		return meta.Name
	case "exchange":
		return meta.Exchange
	case "currency":
		return meta.Currency
	case "sector":
		return meta.Sector
	}
	return ""
}

// StorePriceBars batches an insert-or-replace on (symbol, date).
func (s *MarketStore) StorePriceBars(symbol string, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO stock_prices (symbol, date, open, high, low, close, adj_close, volume, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, b := range bars {
			if _, err := stmt.Exec(symbol, b.Date, b.Open.String(), b.High.String(), b.Low.String(),
				b.Close.String(), b.AdjClose.String(), b.Volume, b.Source, now); err != nil {
				return fmt.Errorf("insert price bar %s %s: %w", symbol, b.Date, err)
			}
		}
		return nil
	})
}

// GetStockData returns bars for symbol ordered by date ascending, optionally
// bounded by [start,end] (either may be empty to mean unbounded).
func (s *MarketStore) GetStockData(symbol, start, end string) ([]models.PriceBar, error) {
	done := utils.MeasureDBQuery("get_stock_data", s.log)
	var rowCount int64
	defer func() { done(rowCount) }()

	query := `SELECT symbol, date, open, high, low, close, adj_close, volume, source FROM stock_prices WHERE symbol = ?`
	args := []interface{}{symbol}
	if start != "" {
		query += ` AND date >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND date <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY date ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock data: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		var open, high, low, close, adj string
		if err := rows.Scan(&b.Symbol, &b.Date, &open, &high, &low, &close, &adj, &b.Volume, &b.Source); err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		b.Open, b.High, b.Low, b.Close, b.AdjClose = mustDecimal(open), mustDecimal(high), mustDecimal(low), mustDecimal(close), mustDecimal(adj)
		bars = append(bars, b)
	}
	rowCount = int64(len(bars))
	return bars, rows.Err()
}

// GetLastPriceDate returns the most recent date with a stored bar for
// symbol, or "" if none exists.
func (s *MarketStore) GetLastPriceDate(symbol string) (string, error) {
	var date sql.NullString
	err := s.db.QueryRow(`SELECT MAX(date) FROM stock_prices WHERE symbol = ?`, symbol).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("get last price date: %w", err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

// GetStockPriceForDate returns the exact-date close/adj_close, or found=false
// if no bar exists for that date.
func (s *MarketStore) GetStockPriceForDate(symbol, date, field string) (decimal.Decimal, bool, error) {
	col := priceColumn(field)
	var v string
	err := s.db.QueryRow(fmt.Sprintf(`SELECT %s FROM stock_prices WHERE symbol = ? AND date = ?`, col), symbol, date).Scan(&v)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get stock price for date: %w", err)
	}
	return mustDecimal(v), true, nil
}

// GetLatestStockPriceBefore returns the most recent bar at or before date,
// for backfilling a stale valuation.
func (s *MarketStore) GetLatestStockPriceBefore(symbol, date, field string) (string, decimal.Decimal, bool, error) {
	col := priceColumn(field)
	var d, v string
	err := s.db.QueryRow(fmt.Sprintf(`SELECT date, %s FROM stock_prices WHERE symbol = ? AND date <= ? ORDER BY date DESC LIMIT 1`, col), symbol, date).Scan(&d, &v)
	if err == sql.ErrNoRows {
		return "", decimal.Zero, false, nil
	}
	if err != nil {
		return "", decimal.Zero, false, fmt.Errorf("get latest stock price before: %w", err)
	}
	return d, mustDecimal(v), true, nil
}

func priceColumn(field string) string {
	if field == "adj_close" {
		return "adj_close"
	}
	return "close"
}

// StoreFinancialStatements upserts one metric per (symbol, stmt_type,
// period, metric). Empty sets are a caller-level no-op so callers can
// surface "no statements returned" as a DataQualityWarning instead of
// silently writing nothing.
func (s *MarketStore) StoreFinancialStatements(symbol string, metrics []models.FinancialMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		for _, m := range metrics {
			table := tableForStatement(m.StatementType)
			if table == "" {
				return fmt.Errorf("unknown statement type %q", m.StatementType)
			}
			_, err := tx.Exec(fmt.Sprintf(`
				INSERT OR REPLACE INTO %s (symbol, period, metric_name, metric_value, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, table), symbol, m.Period, m.MetricName, m.Value.String(), time.Now().Unix())
			if err != nil {
				return fmt.Errorf("store financial metric %s/%s/%s: %w", symbol, m.Period, m.MetricName, err)
			}
		}
		return nil
	})
}

func tableForStatement(t models.StatementType) string {
	switch t {
	case models.IncomeStatement:
		return "income_statement"
	case models.BalanceSheet:
		return "balance_sheet"
	case models.CashFlow:
		return "cash_flow"
	}
	return ""
}

// GetLastFinancialPeriod returns the most recent period stored for symbol
// across all three statement tables, or "" if none exists.
func (s *MarketStore) GetLastFinancialPeriod(symbol string) (string, error) {
	var best sql.NullString
	for _, table := range []string{"income_statement", "balance_sheet", "cash_flow"} {
		var period sql.NullString
		err := s.db.QueryRow(fmt.Sprintf(`SELECT MAX(period) FROM %s WHERE symbol = ?`, table), symbol).Scan(&period)
		if err != nil {
			return "", fmt.Errorf("get last financial period (%s): %w", table, err)
		}
		if period.Valid && (!best.Valid || period.String > best.String) {
			best = period
		}
	}
	if !best.Valid {
		return "", nil
	}
	return best.String, nil
}

// GetFinancialPivot returns metric_name -> value for symbol/statementType at
// the given period, used by the FinRatios operator.
func (s *MarketStore) GetFinancialPivot(symbol string, statementType models.StatementType, period string) (map[string]decimal.Decimal, error) {
	table := tableForStatement(statementType)
	rows, err := s.db.Query(fmt.Sprintf(`SELECT metric_name, metric_value FROM %s WHERE symbol = ? AND period = ?`, table), symbol, period)
	if err != nil {
		return nil, fmt.Errorf("query financial pivot: %w", err)
	}
	defer rows.Close()

	out := map[string]decimal.Decimal{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan financial pivot row: %w", err)
		}
		out[name] = mustDecimal(value)
	}
	return out, rows.Err()
}

// GetFinancialPeriods returns the distinct periods stored for symbol under
// statementType, newest first.
func (s *MarketStore) GetFinancialPeriods(symbol string, statementType models.StatementType) ([]string, error) {
	table := tableForStatement(statementType)
	rows, err := s.db.Query(fmt.Sprintf(`SELECT DISTINCT period FROM %s WHERE symbol = ? ORDER BY period DESC`, table), symbol)
	if err != nil {
		return nil, fmt.Errorf("query financial periods: %w", err)
	}
	defer rows.Close()

	var periods []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// RecordDownloadLog appends one observability row.
func (s *MarketStore) RecordDownloadLog(l models.DownloadLog) error {
	_, err := s.db.Exec(`
		INSERT INTO download_logs (id, symbol, kind, strategy, success, data_points, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.Symbol, l.Kind, l.Strategy, boolToInt(l.Success), l.DataPoints, l.ErrorMessage, l.StartedAt.Unix(), l.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("record download log: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
