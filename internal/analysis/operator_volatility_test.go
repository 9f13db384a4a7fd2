package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolatility_ComputesAnnualizedStdev(t *testing.T) {
	values := []float64{100, 102, 99, 105, 101, 103, 98, 104}
	ctx := NewContext("TEST", closesBars(values...), DefaultConfig())

	data := Volatility{}.Run(ctx)

	require.NotContains(t, data, "error")
	assert.Greater(t, data["annualized_stdev"].(float64), 0.0)
}

func TestVolatility_InsufficientHistory(t *testing.T) {
	ctx := NewContext("TEST", closesBars(100), DefaultConfig())
	data := Volatility{}.Run(ctx)
	assert.Contains(t, data, "error")
}

func TestCorrelation_ComputesPerPeer(t *testing.T) {
	base := []float64{100, 101, 102, 103, 104}
	peer := []float64{50, 51, 52, 53, 54}

	ctx := NewContext("AAPL", closesBars(base...), DefaultConfig())
	op := Correlation{Peers: map[string][]float64{"MSFT": peer}}

	data := op.Run(ctx)

	require.NotContains(t, data, "error")
	assert.InDelta(t, 1.0, data["MSFT"].(float64), 1e-6)
}

func TestCorrelation_NoPeersErrors(t *testing.T) {
	ctx := NewContext("AAPL", closesBars(100, 101, 102), DefaultConfig())
	op := Correlation{}
	data := op.Run(ctx)
	assert.Contains(t, data, "error")
}
