package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/aristath/portfolio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, splitSymbols("aapl, msft"))
	assert.Nil(t, splitSymbols(""))
	assert.Nil(t, splitSymbols(" , ,"))
}

func TestPeriodStart(t *testing.T) {
	assert.NotEqual(t, periodStart("6mo"), periodStart("1y"))
	assert.Equal(t, "2000-01-01", periodStart("max"))
	assert.Equal(t, "2000-01-01", periodStart("bogus"))
}

func TestParseCostBasisMethod(t *testing.T) {
	cases := map[string]models.CostBasisMethod{
		"":         models.FIFO,
		"fifo":     models.FIFO,
		"FIFO":     models.FIFO,
		"lifo":     models.LIFO,
		"specific": models.SpecificLot,
		"average":  models.AverageCost,
	}
	for input, want := range cases {
		got, err := parseCostBasisMethod(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parseCostBasisMethod("bogus")
	assert.Error(t, err)
}

func TestParseSpecificLots(t *testing.T) {
	lots, err := parseSpecificLots("lot=1:10,lot=2:5.5")
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.True(t, decimal.NewFromInt(10).Equal(lots[1]))
	assert.True(t, decimal.NewFromFloat(5.5).Equal(lots[2]))

	empty, err := parseSpecificLots("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = parseSpecificLots("malformed")
	assert.Error(t, err)

	_, err = parseSpecificLots("lot=notanumber:10")
	assert.Error(t, err)
}
