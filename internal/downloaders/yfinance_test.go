package downloaders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYFinanceAgainst(ts *httptest.Server) *YFinance {
	y := NewYFinance(RetryConfig{MaxRetries: 1})
	y.baseURL = ts.URL
	return y
}

func TestYFinance_DownloadStockData_ParsesChart(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704153600],"indicators":{
			"quote":[{"open":[10.0],"high":[11.0],"low":[9.5],"close":[10.5],"volume":[1000]}],
			"adjclose":[{"adjclose":[10.4]}]
		}}]}}`))
	}))
	defer ts.Close()

	y := newYFinanceAgainst(ts)
	data, err := y.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-02")

	require.NoError(t, err)
	require.Len(t, data.Bars, 1)
	assert.Equal(t, "yfinance", data.Bars[0].Source)
	assert.False(t, data.Bars[0].Close.Equal(data.Bars[0].AdjClose))
}

func TestYFinance_DownloadStockData_ChartErrorFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chart":{"error":{"description":"No data found"}}}`))
	}))
	defer ts.Close()

	y := newYFinanceAgainst(ts)
	_, err := y.DownloadStockData(context.Background(), "BOGUS", "2024-01-01", "2024-01-02")

	assert.Error(t, err)
}

func TestYFinance_DownloadStockData_InvalidStartDate(t *testing.T) {
	y := NewYFinance(RetryConfig{MaxRetries: 1})
	_, err := y.DownloadStockData(context.Background(), "AAPL", "not-a-date", "2024-01-02")
	assert.Error(t, err)
}

func TestYFinance_Name(t *testing.T) {
	assert.Equal(t, "yfinance", NewYFinance(RetryConfig{}).Name())
}
