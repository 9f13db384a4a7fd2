package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropAlert_FiresOnLargeDrop(t *testing.T) {
	values := make([]float64, 22)
	for i := range values {
		values[i] = 100
	}
	values[len(values)-1] = 80 // 20% drop on the last bar

	ctx := NewContext("TEST", closesBars(values...), DefaultConfig())
	data := NewDropAlert(1, 15.0).Run(ctx)

	require.NotContains(t, data, "error")
	assert.True(t, data["alert"].(bool))
	assert.InDelta(t, -20.0, data["change_pct"].(float64), 1e-6)
}

func TestDropAlert_NoFireBelowThreshold(t *testing.T) {
	values := []float64{100, 95}
	ctx := NewContext("TEST", closesBars(values...), DefaultConfig())
	data := NewDropAlert(1, 15.0).Run(ctx)

	require.NotContains(t, data, "error")
	assert.False(t, data["alert"].(bool))
}

func TestDropAlert_IgnoresPublishedIndicatorSeries(t *testing.T) {
	values := make([]float64, 22)
	for i := range values {
		values[i] = 100
	}
	values[len(values)-1] = 80 // 20% drop on the last bar, matching MA20/RSI14's wiring order

	ctx := NewContext("TEST", closesBars(values...), DefaultConfig())
	// MA/RSI run before DropAlert in the real pipeline and publish their own
	// value series under these keys; DropAlert must compute off Close, not
	// whatever a prior operator happened to leave in Extras.
	ctx.Extras["rsi_data"] = []float64{50, 40, 20}
	ctx.Extras["ma_series"] = []float64{99, 100}

	data := NewDropAlert(1, 15.0).Run(ctx)

	require.NotContains(t, data, "error")
	assert.InDelta(t, -20.0, data["change_pct"].(float64), 1e-6)
}

func TestDropAlert7d_Name(t *testing.T) {
	assert.Equal(t, "drop_alert_7d", NewDropAlert7d(20.0).Name())
}
