package analysis

import (
	"testing"

	"github.com/aristath/portfolio/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closesBars(values ...float64) []models.PriceBar {
	bars := make([]models.PriceBar, len(values))
	for i, v := range values {
		d := decimal.NewFromFloat(v)
		bars[i] = models.PriceBar{Symbol: "TEST", Date: fakeDate(i), Open: d, High: d, Low: d, Close: d, AdjClose: d}
	}
	return bars
}

func fakeDate(i int) string {
	days := []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10"}
	return "2024-01-" + days[i%len(days)]
}

func TestMA_EmitsLatestPerWindow(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100
	}
	ctx := NewContext("TEST", closesBars(values...), DefaultConfig())

	data := MA{}.Run(ctx)

	require.Contains(t, data, "ma_5")
	require.Contains(t, data, "ma_50")
	assert.InDelta(t, 100.0, data["ma_20"].(float64), 1e-9)

	series, ok := ctx.Extras["ma_series"].([]float64)
	require.True(t, ok)
	assert.Len(t, series, 60)
}

func TestMA_ErrorsOnEmptyFrame(t *testing.T) {
	ctx := NewContext("TEST", nil, DefaultConfig())
	data := MA{}.Run(ctx)
	assert.Contains(t, data, "error")
}

func TestRSI_ClassifiesOverboughtAndOversold(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	ctx := NewContext("TEST", closesBars(up...), DefaultConfig())
	data := RSI{}.Run(ctx)

	require.NotContains(t, data, "error")
	assert.Equal(t, "overbought", data["signal"])
}

func TestRSI_InsufficientHistory(t *testing.T) {
	ctx := NewContext("TEST", closesBars(100, 101, 102), DefaultConfig())
	data := RSI{}.Run(ctx)
	assert.Contains(t, data, "error")
}
