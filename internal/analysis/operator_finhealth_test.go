package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinHealth_ScoresAndGrades(t *testing.T) {
	tests := []struct {
		name      string
		ratios    map[string]float64
		wantScore int
		wantGrade string
	}{
		{
			name: "strong across the board",
			ratios: map[string]float64{
				"net_profit_margin": 25,
				"roe":               18,
				"debt_ratio":        0.1,
				"pe_ratio":          12,
			},
			wantScore: 80,
			wantGrade: "A",
		},
		{
			name: "weak across the board",
			ratios: map[string]float64{
				"net_profit_margin": -5,
				"roe":               -2,
				"debt_ratio":        1.5,
				"pe_ratio":          80,
			},
			wantScore: 0,
			wantGrade: "F",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext("TEST", closesBars(100), DefaultConfig())
			ctx.Extras["fin_ratios"] = tt.ratios

			data := FinHealth{}.Run(ctx)

			require.NotContains(t, data, "error")
			assert.Equal(t, tt.wantScore, data["score"])
			assert.Equal(t, tt.wantGrade, data["grade"])
		})
	}
}

func TestFinHealth_MissingRatiosErrors(t *testing.T) {
	ctx := NewContext("TEST", closesBars(100), DefaultConfig())
	data := FinHealth{}.Run(ctx)
	assert.Contains(t, data, "error")
}
