package downloaders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/aristath/portfolio/internal/models"
)

// TwelveData is a fallback price source, used by the data service when the
// Stooq download (after Finnhub, for an incremental update) fails for a
// symbol (spec §4.2). No financials.
type TwelveData struct {
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	throttle   *throttle
	baseURL    string
}

func NewTwelveData(apiKey string, retry RetryConfig) *TwelveData {
	return &TwelveData{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry,
		throttle:   newThrottle(retry.MinInterval),
		baseURL:    "https://api.twelvedata.com",
	}
}

func (td *TwelveData) Name() string { return "twelvedata" }

type timeSeriesResponse struct {
	Status string `json:"status"`
	Message string `json:"message"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

// DownloadStockData fetches daily bars for symbol in [startDate, endDate].
func (td *TwelveData) DownloadStockData(ctx context.Context, symbol, startDate, endDate string) (*StockData, error) {
	if td.apiKey == "" {
		return nil, apperrors.New(apperrors.ProviderFatal, "twelvedata: missing API key")
	}
	if endDate == "" {
		endDate = time.Now().Format("2006-01-02")
	}
	url := fmt.Sprintf("%s/time_series?symbol=%s&interval=1day&start_date=%s&end_date=%s&outputsize=5000&apikey=%s",
		td.baseURL, symbol, startDate, endDate, td.apiKey)

	var series timeSeriesResponse
	err := withRetry(ctx, td.retry, func() error {
		if err := td.throttle.wait(ctx); err != nil {
			return err
		}
		return td.getJSON(ctx, url, &series)
	})
	if err != nil {
		return nil, err
	}
	if series.Status == "error" {
		return nil, apperrors.New(apperrors.ProviderFatal, fmt.Sprintf("twelvedata: %s", series.Message))
	}
	if len(series.Values) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("twelvedata: no data for %s", symbol))
	}

	bars := make([]models.PriceBar, 0, len(series.Values))
	for _, v := range series.Values {
		open, err := models.ParsePrice(v.Open)
		if err != nil {
			continue
		}
		high, err := models.ParsePrice(v.High)
		if err != nil {
			continue
		}
		low, err := models.ParsePrice(v.Low)
		if err != nil {
			continue
		}
		close, err := models.ParsePrice(v.Close)
		if err != nil {
			continue
		}
		var volume int64
		fmt.Sscanf(v.Volume, "%d", &volume)
		bars = append(bars, models.PriceBar{
			Symbol:   symbol,
			Date:     v.Datetime,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			AdjClose: close,
			Volume:   volume,
			Source:   "twelvedata",
		})
	}
	if len(bars) == 0 {
		return nil, apperrors.New(apperrors.DataQualityWarning, fmt.Sprintf("twelvedata: unparseable series for %s", symbol))
	}
	return &StockData{Symbol: symbol, Bars: bars}, nil
}

func (td *TwelveData) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build twelvedata request: %w", err)
	}
	resp, err := td.httpClient.Do(req)
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
