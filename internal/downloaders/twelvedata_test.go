package downloaders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwelveDataAgainst(ts *httptest.Server, apiKey string) *TwelveData {
	td := NewTwelveData(apiKey, RetryConfig{MaxRetries: 1})
	td.baseURL = ts.URL
	return td
}

func TestTwelveData_DownloadStockData_MissingAPIKeyFailsFast(t *testing.T) {
	td := NewTwelveData("", RetryConfig{MaxRetries: 1})
	_, err := td.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-02")
	assert.Error(t, err)
}

func TestTwelveData_DownloadStockData_ParsesSeries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","values":[{"datetime":"2024-01-02","open":"10.0","high":"11.0","low":"9.5","close":"10.5","volume":"1000"}]}`))
	}))
	defer ts.Close()

	td := newTwelveDataAgainst(ts, "token")
	data, err := td.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-02")

	require.NoError(t, err)
	require.Len(t, data.Bars, 1)
	assert.Equal(t, "twelvedata", data.Bars[0].Source)
	assert.Equal(t, int64(1000), data.Bars[0].Volume)
}

func TestTwelveData_DownloadStockData_ErrorStatusFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"error","message":"invalid symbol"}`))
	}))
	defer ts.Close()

	td := newTwelveDataAgainst(ts, "token")
	_, err := td.DownloadStockData(context.Background(), "BOGUS", "2024-01-01", "2024-01-02")

	assert.Error(t, err)
}

func TestTwelveData_Name(t *testing.T) {
	assert.Equal(t, "twelvedata", NewTwelveData("x", RetryConfig{}).Name())
}
