// Package dataservice orchestrates ingestion: choosing a download strategy
// per symbol, persisting results, refreshing financials on a cadence, and
// batching the whole thing across a watchlist (spec §4.3).
package dataservice

import (
	"context"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/downloaders"
	"github.com/aristath/portfolio/internal/models"
	"github.com/aristath/portfolio/internal/storage"
	"github.com/aristath/portfolio/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Strategy names an ingestion path, recorded on the download log.
type Strategy string

const (
	StrategyBulkInitial   Strategy = "bulk_initial"
	StrategyIncremental   Strategy = "incremental"
	StrategyBulkRefetch   Strategy = "bulk_refetch"
	StrategyNoNewData     Strategy = "no_new_data"
)

const defaultBulkStart = "2000-01-01"

// Config tunes strategy thresholds and batch pacing (spec §4.3, §4.2).
type Config struct {
	StockIncrementalThresholdDays int
	FinancialRefreshDays          int
	InterSymbolDelay              time.Duration
}

// Service wires the storage layer to the downloader adapters.
type Service struct {
	market   *storage.MarketStore
	cfg      Config
	primary  downloaders.StockDownloader // Finnhub, for incremental updates
	bulk     downloaders.StockDownloader // Stooq, for bulk/backfill and fallback
	tertiary downloaders.StockDownloader // optional further fallback (TwelveData/YFinance)
	fin      downloaders.FinancialDownloader
	log      zerolog.Logger
}

// New builds a Service. tertiary may be nil.
func New(market *storage.MarketStore, cfg Config, primary, bulk, tertiary downloaders.StockDownloader, fin downloaders.FinancialDownloader, log zerolog.Logger) *Service {
	return &Service{
		market:   market,
		cfg:      cfg,
		primary:  primary,
		bulk:     bulk,
		tertiary: tertiary,
		fin:      fin,
		log:      log.With().Str("component", "data_service").Logger(),
	}
}

// StockResult is the outcome of UpdateStock for one symbol.
type StockResult struct {
	Symbol       string
	Strategy     Strategy
	BarsWritten  int
	Err          error
}

// UpdateStock applies the strategy-selection rule (spec §4.3) for symbol and
// persists the result. startDate is the bulk backfill anchor used only when
// the symbol has no prior price history; defaults to 2000-01-01.
func (s *Service) UpdateStock(ctx context.Context, symbol, startDate string) StockResult {
	defer utils.OperationTimer("update_stock:"+symbol, s.log)()

	symbol = normalizeSymbol(symbol)
	res := StockResult{Symbol: symbol}

	if err := s.market.UpsertStock(symbol, nil); err != nil {
		res.Err = err
		return res
	}

	rawLast, err := s.market.GetLastPriceDate(symbol)
	if err != nil {
		res.Err = err
		return res
	}

	today := time.Now().Format("2006-01-02")
	if rawLast != "" && rawLast >= today {
		res.Strategy = StrategyNoNewData
		return res
	}

	var data *downloaders.StockData
	var from string
	if rawLast == "" {
		anchor := startDate
		if anchor == "" {
			anchor = defaultBulkStart
		}
		from = anchor
		res.Strategy = StrategyBulkInitial
		data, err = s.bulk.DownloadStockData(ctx, symbol, anchor, today)
	} else {
		daysSince := daysBetween(rawLast, today)
		anchor := addDays(rawLast, 1)
		from = anchor
		if daysSince <= s.cfg.StockIncrementalThresholdDays {
			res.Strategy = StrategyIncremental
			data, err = s.primary.DownloadStockData(ctx, symbol, anchor, today)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("incremental download failed, falling back to bulk source")
				res.Strategy = StrategyBulkRefetch
				data, err = s.bulk.DownloadStockData(ctx, symbol, anchor, today)
			}
		} else {
			res.Strategy = StrategyBulkRefetch
			data, err = s.bulk.DownloadStockData(ctx, symbol, anchor, today)
		}
	}

	if err != nil && s.tertiary != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("bulk download failed, falling back to tertiary source")
		if tData, tErr := s.tertiary.DownloadStockData(ctx, symbol, from, today); tErr == nil {
			data, err = tData, nil
		}
	}

	if err != nil {
		res.Err = err
		return res
	}
	if err := s.market.StorePriceBars(symbol, data.Bars); err != nil {
		res.Err = err
		return res
	}
	res.BarsWritten = len(data.Bars)
	return res
}

// RefreshFinancials pulls fundamentals for symbol when the latest stored
// period is older than FinancialRefreshDays, or none exists.
func (s *Service) RefreshFinancials(ctx context.Context, symbol string) (skipped bool, err error) {
	if s.fin == nil {
		return true, nil
	}
	symbol = normalizeSymbol(symbol)
	lastPeriod, err := s.market.GetLastFinancialPeriod(symbol)
	if err != nil {
		return false, err
	}
	if lastPeriod != "" {
		today := time.Now().Format("2006-01-02")
		if daysBetween(lastPeriod, today) < s.cfg.FinancialRefreshDays {
			return true, nil
		}
	}

	data, err := s.fin.DownloadFinancialData(ctx, symbol)
	if err != nil {
		return false, err
	}
	if len(data.Metrics) == 0 {
		return false, apperrors.New(apperrors.DataQualityWarning, "financial downloader returned no metrics")
	}
	return false, s.market.StoreFinancialStatements(symbol, data.Metrics)
}

// BatchResult aggregates a call to UpdateWatchlist.
type BatchResult struct {
	Total      int
	Successful int
	Failed     int
	Results    []StockResult
}

// UpdateWatchlist updates stock prices and refreshes financials for every
// symbol, pacing requests by InterSymbolDelay and logging each attempt.
// One symbol's failure never aborts the batch (spec §4.3).
func (s *Service) UpdateWatchlist(ctx context.Context, symbols []string, startDate string) BatchResult {
	batch := BatchResult{Total: len(symbols)}
	for i, symbol := range symbols {
		started := time.Now()
		res := s.UpdateStock(ctx, symbol, startDate)
		s.logDownload(symbol, "stock", string(res.Strategy), res.Err, res.BarsWritten, started)
		if res.Err != nil {
			batch.Failed++
		} else {
			batch.Successful++
		}
		batch.Results = append(batch.Results, res)

		finStarted := time.Now()
		skipped, finErr := s.RefreshFinancials(ctx, symbol)
		if !skipped {
			s.logDownload(symbol, "financial", "refresh", finErr, 0, finStarted)
		}

		if i < len(symbols)-1 && s.cfg.InterSymbolDelay > 0 {
			select {
			case <-time.After(s.cfg.InterSymbolDelay):
			case <-ctx.Done():
				return batch
			}
		}
	}
	return batch
}

func (s *Service) logDownload(symbol, kind, strategy string, err error, dataPoints int, started time.Time) {
	l := models.DownloadLog{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Kind:       kind,
		Strategy:   strategy,
		Success:    err == nil,
		DataPoints: dataPoints,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		l.ErrorMessage = err.Error()
	}
	if logErr := s.market.RecordDownloadLog(l); logErr != nil {
		s.log.Error().Err(logErr).Str("symbol", symbol).Msg("failed to record download log")
	}
}

func daysBetween(from, to string) int {
	f, err1 := time.Parse("2006-01-02", from)
	t, err2 := time.Parse("2006-01-02", to)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(t.Sub(f).Hours() / 24)
}

func addDays(date string, n int) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, n).Format("2006-01-02")
}

func normalizeSymbol(symbol string) string {
	out := make([]byte, len(symbol))
	for i := 0; i < len(symbol); i++ {
		c := symbol[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
