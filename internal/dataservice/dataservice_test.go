package dataservice

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/portfolio/internal/downloaders"
	"github.com/aristath/portfolio/internal/models"
	"github.com/aristath/portfolio/internal/storage"
	itesting "github.com/aristath/portfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStockDownloader struct {
	name  string
	bars  []models.PriceBar
	err   error
	calls int
}

func (f *fakeStockDownloader) Name() string { return f.name }

func (f *fakeStockDownloader) DownloadStockData(ctx context.Context, symbol, start, end string) (*downloaders.StockData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &downloaders.StockData{Symbol: symbol, Bars: f.bars}, nil
}

func newMarketStore(t *testing.T) *storage.MarketStore {
	t.Helper()
	db, cleanup := itesting.NewTestDB(t, "market")
	t.Cleanup(cleanup)
	return storage.NewMarketStore(db, zerolog.Nop())
}

func bar(symbol, date string, close float64) models.PriceBar {
	c := decimal.NewFromFloat(close)
	return models.PriceBar{Symbol: symbol, Date: date, Open: c, High: c, Low: c, Close: c, AdjClose: c, Volume: 100, Source: "test"}
}

func TestUpdateStock_BulkInitialWhenNoHistory(t *testing.T) {
	market := newMarketStore(t)
	bulk := &fakeStockDownloader{name: "stooq", bars: []models.PriceBar{bar("AAPL", "2024-01-02", 100)}}
	primary := &fakeStockDownloader{name: "finnhub"}

	svc := New(market, Config{StockIncrementalThresholdDays: 100}, primary, bulk, nil, nil, zerolog.Nop())
	res := svc.UpdateStock(context.Background(), "aapl", "2024-01-01")

	require.NoError(t, res.Err)
	assert.Equal(t, StrategyBulkInitial, res.Strategy)
	assert.Equal(t, 1, res.BarsWritten)
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 1, bulk.calls)
}

func TestUpdateStock_IncrementalWithinThreshold(t *testing.T) {
	market := newMarketStore(t)
	recentDate := time.Now().AddDate(0, 0, -5).Format("2006-01-02")
	require.NoError(t, market.UpsertStock("AAPL", nil))
	require.NoError(t, market.StorePriceBars("AAPL", []models.PriceBar{bar("AAPL", recentDate, 100)}))

	bulk := &fakeStockDownloader{name: "stooq"}
	primary := &fakeStockDownloader{name: "finnhub", bars: []models.PriceBar{bar("AAPL", "2024-01-03", 101)}}

	svc := New(market, Config{StockIncrementalThresholdDays: 100}, primary, bulk, nil, nil, zerolog.Nop())
	res := svc.UpdateStock(context.Background(), "AAPL", "")

	require.NoError(t, res.Err)
	assert.Equal(t, StrategyIncremental, res.Strategy)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, bulk.calls)
}

func TestUpdateStock_IncrementalFallsBackToBulkOnError(t *testing.T) {
	market := newMarketStore(t)
	recentDate := time.Now().AddDate(0, 0, -5).Format("2006-01-02")
	require.NoError(t, market.UpsertStock("AAPL", nil))
	require.NoError(t, market.StorePriceBars("AAPL", []models.PriceBar{bar("AAPL", recentDate, 100)}))

	bulk := &fakeStockDownloader{name: "stooq", bars: []models.PriceBar{bar("AAPL", "2024-01-03", 101)}}
	primary := &fakeStockDownloader{name: "finnhub", err: assertError("rate limited")}

	svc := New(market, Config{StockIncrementalThresholdDays: 100}, primary, bulk, nil, nil, zerolog.Nop())
	res := svc.UpdateStock(context.Background(), "AAPL", "")

	require.NoError(t, res.Err)
	assert.Equal(t, StrategyBulkRefetch, res.Strategy)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, bulk.calls)
}

func TestUpdateStock_NoNewDataWhenUpToDate(t *testing.T) {
	market := newMarketStore(t)
	today := time.Now().Format("2006-01-02")
	require.NoError(t, market.UpsertStock("AAPL", nil))
	require.NoError(t, market.StorePriceBars("AAPL", []models.PriceBar{bar("AAPL", today, 100)}))

	bulk := &fakeStockDownloader{name: "stooq"}
	primary := &fakeStockDownloader{name: "finnhub"}

	svc := New(market, Config{StockIncrementalThresholdDays: 100}, primary, bulk, nil, nil, zerolog.Nop())
	res := svc.UpdateStock(context.Background(), "AAPL", "")

	require.NoError(t, res.Err)
	assert.Equal(t, StrategyNoNewData, res.Strategy)
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 0, bulk.calls)
}

func TestUpdateStock_BulkRefetchBeyondThreshold(t *testing.T) {
	market := newMarketStore(t)
	oldDate := time.Now().AddDate(0, 0, -200).Format("2006-01-02")
	require.NoError(t, market.UpsertStock("AAPL", nil))
	require.NoError(t, market.StorePriceBars("AAPL", []models.PriceBar{bar("AAPL", oldDate, 100)}))

	bulk := &fakeStockDownloader{name: "stooq", bars: []models.PriceBar{bar("AAPL", "2024-06-01", 100)}}
	primary := &fakeStockDownloader{name: "finnhub"}

	svc := New(market, Config{StockIncrementalThresholdDays: 100}, primary, bulk, nil, nil, zerolog.Nop())
	res := svc.UpdateStock(context.Background(), "AAPL", "")

	require.NoError(t, res.Err)
	assert.Equal(t, StrategyBulkRefetch, res.Strategy)
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 1, bulk.calls)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertError(msg string) error { return simpleErr(msg) }
