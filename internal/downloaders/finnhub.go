package downloaders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/models"
	"github.com/shopspring/decimal"
)

// Finnhub is the preferred source for incremental stock updates and for
// financial statements (spec §4.2). Requires an API key.
type Finnhub struct {
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	throttle   *throttle
	baseURL    string
}

// NewFinnhub builds a Finnhub adapter. apiKey is required; an empty key
// makes every call fail with ProviderFatal.
func NewFinnhub(apiKey string, retry RetryConfig) *Finnhub {
	return &Finnhub{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry,
		throttle:   newThrottle(retry.MinInterval),
		baseURL:    "https://finnhub.io/api/v1",
	}
}

func (f *Finnhub) Name() string { return "finnhub" }

type candleResponse struct {
	Status string    `json:"s"`
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []int64   `json:"v"`
}

// DownloadStockData fetches daily candles for symbol in [startDate, endDate].
func (f *Finnhub) DownloadStockData(ctx context.Context, symbol, startDate, endDate string) (*StockData, error) {
	if f.apiKey == "" {
		return nil, apperrors.New(apperrors.ProviderFatal, "finnhub: missing API key")
	}
	if endDate == "" {
		endDate = time.Now().Format("2006-01-02")
	}
	startTS, err := toUnix(startDate)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Validation, "finnhub: bad start date", err)
	}
	endTS, err := toUnix(endDate)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Validation, "finnhub: bad end date", err)
	}

	url := fmt.Sprintf("%s/stock/candle?symbol=%s&resolution=D&from=%d&to=%d&token=%s",
		f.baseURL, symbol, startTS, endTS, f.apiKey)

	var candles candleResponse
	err = withRetry(ctx, f.retry, func() error {
		if err := f.throttle.wait(ctx); err != nil {
			return err
		}
		return f.getJSON(ctx, url, &candles)
	})
	if err != nil {
		return nil, err
	}
	if candles.Status != "ok" {
		return nil, apperrors.New(apperrors.ProviderFatal, fmt.Sprintf("finnhub candle status %q for %s", candles.Status, symbol))
	}
	if len(candles.T) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("finnhub: no candles for %s", symbol))
	}

	bars := make([]models.PriceBar, 0, len(candles.T))
	for i, ts := range candles.T {
		close := decimal.NewFromFloat(candles.C[i]).Round(4)
		bars = append(bars, models.PriceBar{
			Symbol:   symbol,
			Date:     time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:     decimal.NewFromFloat(candles.O[i]).Round(4),
			High:     decimal.NewFromFloat(candles.H[i]).Round(4),
			Low:      decimal.NewFromFloat(candles.L[i]).Round(4),
			Close:    close,
			AdjClose: close,
			Volume:   candles.V[i],
			Source:   "finnhub",
		})
	}
	return &StockData{Symbol: symbol, Bars: bars}, nil
}

type reportedRow struct {
	Year     int    `json:"year"`
	Period   string `json:"period"`
	EndDate  string `json:"endDate"`
	Report   struct {
		IC []reportedEntry `json:"ic"`
		BS []reportedEntry `json:"bs"`
		CF []reportedEntry `json:"cf"`
	} `json:"report"`
}

type reportedEntry struct {
	Label   string   `json:"label"`
	Concept string   `json:"concept"`
	Value   *float64 `json:"value"`
}

type reportedResponse struct {
	Data []reportedRow `json:"data"`
}

// DownloadFinancialData fetches the reported financial statements for symbol.
func (f *Finnhub) DownloadFinancialData(ctx context.Context, symbol string) (*FinancialData, error) {
	if f.apiKey == "" {
		return nil, apperrors.New(apperrors.ProviderFatal, "finnhub: missing API key")
	}
	url := fmt.Sprintf("%s/stock/financials-reported?symbol=%s&token=%s", f.baseURL, symbol, f.apiKey)

	var reported reportedResponse
	err := withRetry(ctx, f.retry, func() error {
		if err := f.throttle.wait(ctx); err != nil {
			return err
		}
		return f.getJSON(ctx, url, &reported)
	})
	if err != nil {
		return nil, err
	}
	if len(reported.Data) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("finnhub: no financial statements for %s", symbol))
	}

	sort.Slice(reported.Data, func(i, j int) bool {
		return reportEndDate(reported.Data[i]) > reportEndDate(reported.Data[j])
	})

	var metrics []models.FinancialMetric
	for _, row := range reported.Data {
		period := reportEndDate(row)
		if period == "" {
			continue
		}
		metrics = append(metrics, reportedSectionMetrics(symbol, models.IncomeStatement, period, row.Report.IC)...)
		metrics = append(metrics, reportedSectionMetrics(symbol, models.BalanceSheet, period, row.Report.BS)...)
		metrics = append(metrics, reportedSectionMetrics(symbol, models.CashFlow, period, row.Report.CF)...)
	}
	if len(metrics) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("finnhub: empty financial statements for %s", symbol))
	}
	return &FinancialData{Symbol: symbol, Metrics: metrics}, nil
}

func reportEndDate(row reportedRow) string {
	if len(row.EndDate) >= 10 {
		return row.EndDate[:10]
	}
	if row.Year > 0 {
		return fmt.Sprintf("%d-12-31", row.Year)
	}
	return ""
}

func reportedSectionMetrics(symbol string, stmtType models.StatementType, period string, entries []reportedEntry) []models.FinancialMetric {
	var out []models.FinancialMetric
	for _, e := range entries {
		name := e.Label
		if name == "" {
			name = e.Concept
		}
		if name == "" || e.Value == nil {
			continue
		}
		out = append(out, models.FinancialMetric{
			Symbol:        symbol,
			StatementType: stmtType,
			Period:        period,
			MetricName:    name,
			Value:         decimal.NewFromFloat(*e.Value),
		})
	}
	return out
}

func (f *Finnhub) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build finnhub request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toUnix(date string) (int64, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
