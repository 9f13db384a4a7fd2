package analysis

import (
	"testing"

	"github.com/aristath/portfolio/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	bars []models.PriceBar
	err  error
}

func (f fakeRepo) GetStockData(symbol, start, end string) ([]models.PriceBar, error) {
	return f.bars, f.err
}

func TestRunner_TrendUpWhenAboveMA20(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 100
	}
	values[len(values)-1] = 120

	repo := fakeRepo{bars: closesBars(values...)}
	engine := New([]Operator{MA{}, RSI{}, NewDropAlert(1, 15.0)}, zerolog.Nop())
	runner := NewRunner(repo, engine, DefaultConfig(), nil, zerolog.Nop())

	result := runner.Run("TEST", "", "")

	assert.Equal(t, "up", result.Summary.Trend)
	assert.Equal(t, 25, result.Metrics.Rows)
	require.NotNil(t, result.Summary.DropChange)
}

func TestRunner_NoDataEmitsWarning(t *testing.T) {
	repo := fakeRepo{bars: nil}
	engine := New([]Operator{MA{}}, zerolog.Nop())
	runner := NewRunner(repo, engine, DefaultConfig(), nil, zerolog.Nop())

	result := runner.Run("TEST", "", "")

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "no_data", result.Errors[0].Code)
}
