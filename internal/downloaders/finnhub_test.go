package downloaders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFinnhubAgainst(ts *httptest.Server, apiKey string) *Finnhub {
	f := NewFinnhub(apiKey, RetryConfig{MaxRetries: 1})
	f.baseURL = ts.URL
	return f
}

func TestFinnhub_DownloadStockData_MissingAPIKeyFailsFast(t *testing.T) {
	f := NewFinnhub("", RetryConfig{MaxRetries: 1})
	_, err := f.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-02")
	assert.Error(t, err)
}

func TestFinnhub_DownloadStockData_ParsesCandles(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"s":"ok","t":[1704153600],"o":[10.0],"h":[11.0],"l":[9.5],"c":[10.5],"v":[1000]}`))
	}))
	defer ts.Close()

	f := newFinnhubAgainst(ts, "token")
	data, err := f.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-02")

	require.NoError(t, err)
	require.Len(t, data.Bars, 1)
	assert.Equal(t, "finnhub", data.Bars[0].Source)
	assert.True(t, data.Bars[0].Close.Equal(data.Bars[0].AdjClose))
}

func TestFinnhub_DownloadStockData_NonOkStatusFieldFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"s":"no_data"}`))
	}))
	defer ts.Close()

	f := newFinnhubAgainst(ts, "token")
	_, err := f.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-02")

	assert.Error(t, err)
}

func TestFinnhub_DownloadFinancialData_ParsesReportedStatements(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"year":2023,"endDate":"2023-12-31T00:00:00","report":{
			"ic":[{"label":"Revenue","value":100.5}],
			"bs":[{"label":"Assets","value":200.0}],
			"cf":[{"label":"Operating Cash Flow","value":50.0}]
		}}]}`))
	}))
	defer ts.Close()

	f := newFinnhubAgainst(ts, "token")
	data, err := f.DownloadFinancialData(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.Equal(t, "AAPL", data.Symbol)
	assert.Len(t, data.Metrics, 3)
}

func TestFinnhub_DownloadFinancialData_MissingAPIKeyFailsFast(t *testing.T) {
	f := NewFinnhub("", RetryConfig{MaxRetries: 1})
	_, err := f.DownloadFinancialData(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestFinnhub_Name(t *testing.T) {
	assert.Equal(t, "finnhub", NewFinnhub("x", RetryConfig{}).Name())
}
