package downloaders

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/models"
)

// Stooq returns full daily OHLCV history via Stooq's CSV endpoint. Symbols
// are suffixed .US on the wire; the returned bars use the bare symbol.
// No financials (spec §4.2).
type Stooq struct {
	httpClient *http.Client
	retry      RetryConfig
	throttle   *throttle
	baseURL    string
}

// NewStooq builds a Stooq adapter.
func NewStooq(retry RetryConfig) *Stooq {
	return &Stooq{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry,
		throttle:   newThrottle(retry.MinInterval),
		baseURL:    "https://stooq.com/q/d/l",
	}
}

func (s *Stooq) Name() string { return "stooq" }

// DownloadStockData fetches the full daily history for symbol in [startDate, endDate].
func (s *Stooq) DownloadStockData(ctx context.Context, symbol, startDate, endDate string) (*StockData, error) {
	if endDate == "" {
		endDate = time.Now().Format("2006-01-02")
	}
	wireSymbol := strings.ToUpper(symbol)
	if !strings.HasSuffix(wireSymbol, ".US") {
		wireSymbol += ".US"
	}
	outSymbol := strings.TrimSuffix(wireSymbol, ".US")

	var bars []models.PriceBar
	err := withRetry(ctx, s.retry, func() error {
		if err := s.throttle.wait(ctx); err != nil {
			return err
		}
		b, err := s.fetch(ctx, wireSymbol, startDate, endDate)
		if err != nil {
			return err
		}
		bars = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("stooq: no data returned for %s", outSymbol))
	}
	return &StockData{Symbol: outSymbol, Bars: bars}, nil
}

func (s *Stooq) fetch(ctx context.Context, wireSymbol, startDate, endDate string) ([]models.PriceBar, error) {
	url := fmt.Sprintf("%s?s=%s&d1=%s&d2=%s&i=d",
		s.baseURL, strings.ToLower(wireSymbol),
		strings.ReplaceAll(startDate, "-", ""), strings.ReplaceAll(endDate, "-", ""))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stooq request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	outSymbol := strings.TrimSuffix(wireSymbol, ".US")
	return parseStooqCSV(resp.Body, outSymbol)
}

// parseStooqCSV parses Stooq's "Date,Open,High,Low,Close,Volume" CSV
// (header row, adj_close mirrors close since Stooq history is already
// adjusted).
func parseStooqCSV(r io.Reader, symbol string) ([]models.PriceBar, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stooq csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	var bars []models.PriceBar
	for _, row := range rows[1:] {
		if len(row) < 6 {
			continue
		}
		bar, err := stooqRowToBar(symbol, row)
		if err != nil {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func stooqRowToBar(symbol string, row []string) (models.PriceBar, error) {
	open, err := models.ParsePrice(row[1])
	if err != nil {
		return models.PriceBar{}, err
	}
	high, err := models.ParsePrice(row[2])
	if err != nil {
		return models.PriceBar{}, err
	}
	low, err := models.ParsePrice(row[3])
	if err != nil {
		return models.PriceBar{}, err
	}
	close, err := models.ParsePrice(row[4])
	if err != nil {
		return models.PriceBar{}, err
	}
	volume, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		volume = 0
	}
	return models.PriceBar{
		Symbol:   symbol,
		Date:     row[0],
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		AdjClose: close,
		Volume:   volume,
		Source:   "stooq",
	}, nil
}
