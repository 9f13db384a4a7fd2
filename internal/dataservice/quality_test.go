package dataservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessQuality(t *testing.T) {
	tests := []struct {
		name               string
		stockAvailable     bool
		financialAvailable bool
		wantCompleteness   float64
		wantGrade          Grade
	}{
		{"both available", true, true, 1.0, GradeA},
		{"stock only", true, false, 0.6, GradeC},
		{"financial only", false, true, 0.4, GradeD},
		{"neither available", false, false, 0.0, GradeF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := AssessQuality(tt.stockAvailable, tt.financialAvailable)
			assert.InDelta(t, tt.wantCompleteness, q.DataCompleteness, 1e-9)
			assert.Equal(t, tt.wantGrade, q.Grade)
		})
	}
}

func TestGradeForBoundaries(t *testing.T) {
	tests := []struct {
		completeness float64
		want         Grade
	}{
		{0.9, GradeA},
		{0.89, GradeB},
		{0.7, GradeB},
		{0.69, GradeC},
		{0.5, GradeC},
		{0.49, GradeD},
		{0.3, GradeD},
		{0.29, GradeF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gradeFor(tt.completeness))
	}
}
