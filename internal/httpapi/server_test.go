package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/portfolio/internal/analysis"
	itesting "github.com/aristath/portfolio/internal/testing"
	"github.com/aristath/portfolio/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	marketDB, cleanupMarket := itesting.NewTestDB(t, "market")
	t.Cleanup(cleanupMarket)
	ledgerDB, cleanupLedger := itesting.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)

	market := storage.NewMarketStore(marketDB, zerolog.Nop())
	ledger := storage.NewLedgerStore(ledgerDB, zerolog.Nop())
	runner := func() *analysis.Runner {
		engine := analysis.New([]analysis.Operator{analysis.MA{}}, zerolog.Nop())
		return analysis.NewRunner(market, engine, analysis.DefaultConfig(), market, zerolog.Nop())
	}
	return New(market, ledger, runner, zerolog.Nop())
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleQuery_RequiresSymbol(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuery_ReturnsEmptyBarsForUnknownSymbol(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/query?symbol=AAPL", nil)

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Symbol string          `json:"symbol"`
		Bars   []map[string]any `json:"bars"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Symbol)
	assert.Empty(t, body.Bars)
}

func TestHandlePositions_ReturnsEmptyListWhenNoLots(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestHandleAnalyze_RequiresSymbol(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
