package downloaders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/models"
	"github.com/shopspring/decimal"
)

// YFinance is the last-resort price fallback, hitting Yahoo Finance's
// unauthenticated chart endpoint. No financials, no API key.
type YFinance struct {
	httpClient *http.Client
	retry      RetryConfig
	throttle   *throttle
	baseURL    string
}

func NewYFinance(retry RetryConfig) *YFinance {
	return &YFinance{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry,
		throttle:   newThrottle(retry.MinInterval),
		baseURL:    "https://query1.finance.yahoo.com/v8/finance/chart",
	}
}

func (y *YFinance) Name() string { return "yfinance" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DownloadStockData fetches daily bars for symbol in [startDate, endDate].
func (y *YFinance) DownloadStockData(ctx context.Context, symbol, startDate, endDate string) (*StockData, error) {
	startTS, err := toUnix(startDate)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Validation, "yfinance: bad start date", err)
	}
	endTS := time.Now().Unix()
	if endDate != "" {
		endTS, err = toUnix(endDate)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Validation, "yfinance: bad end date", err)
		}
		endTS += 24 * 3600
	}

	url := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d", y.baseURL, symbol, startTS, endTS)

	var chart chartResponse
	err = withRetry(ctx, y.retry, func() error {
		if err := y.throttle.wait(ctx); err != nil {
			return err
		}
		return y.getJSON(ctx, url, &chart)
	})
	if err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, apperrors.New(apperrors.ProviderFatal, fmt.Sprintf("yfinance: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("yfinance: no data for %s", symbol))
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("yfinance: no quote data for %s", symbol))
	}
	quote := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil || quote.Open[i] == nil ||
			quote.High[i] == nil || quote.Low[i] == nil {
			continue
		}
		close := decimal.NewFromFloat(*quote.Close[i]).Round(4)
		adjClose := close
		if adj != nil && i < len(adj) && adj[i] != nil {
			adjClose = decimal.NewFromFloat(*adj[i]).Round(4)
		}
		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		bars = append(bars, models.PriceBar{
			Symbol:   symbol,
			Date:     time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:     decimal.NewFromFloat(*quote.Open[i]).Round(4),
			High:     decimal.NewFromFloat(*quote.High[i]).Round(4),
			Low:      decimal.NewFromFloat(*quote.Low[i]).Round(4),
			Close:    close,
			AdjClose: adjClose,
			Volume:   volume,
			Source:   "yfinance",
		})
	}
	if len(bars) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("yfinance: empty series for %s", symbol))
	}
	return &StockData{Symbol: symbol, Bars: bars}, nil
}

func (y *YFinance) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build yfinance request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := y.httpClient.Do(req)
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
