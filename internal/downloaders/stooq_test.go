package downloaders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/portfolio/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStooqAgainst(ts *httptest.Server) *Stooq {
	s := NewStooq(RetryConfig{MaxRetries: 1})
	s.baseURL = ts.URL
	return s
}

func TestStooq_DownloadStockData_ParsesCSV(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,Open,High,Low,Close,Volume\n2024-01-02,10.0,11.0,9.5,10.5,1000\n2024-01-03,10.5,11.5,10.0,11.0,1200\n"))
	}))
	defer ts.Close()

	s := newStooqAgainst(ts)
	data, err := s.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-03")

	require.NoError(t, err)
	assert.Equal(t, "AAPL", data.Symbol)
	require.Len(t, data.Bars, 2)
	assert.Equal(t, "2024-01-02", data.Bars[0].Date)
	assert.Equal(t, "stooq", data.Bars[0].Source)
	assert.True(t, data.Bars[0].Close.Equal(data.Bars[0].AdjClose))
}

func TestStooq_DownloadStockData_EmptyCSVIsDataQualityWarning(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,Open,High,Low,Close,Volume\n"))
	}))
	defer ts.Close()

	s := newStooqAgainst(ts)
	_, err := s.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-03")

	assert.Error(t, err)
	assert.Equal(t, apperrors.DataQualityWarning, apperrors.KindOf(err))
}

func TestStooq_DownloadStockData_NonOKStatusFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	s := newStooqAgainst(ts)
	_, err := s.DownloadStockData(context.Background(), "AAPL", "2024-01-01", "2024-01-03")

	assert.Error(t, err)
}

func TestStooq_Name(t *testing.T) {
	assert.Equal(t, "stooq", NewStooq(RetryConfig{}).Name())
}
