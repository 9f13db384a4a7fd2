package dataservice

// Grade is a letter quality grade derived from DataCompleteness.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// DataQuality is the pure-function outcome of AssessQuality.
type DataQuality struct {
	StockAvailable      bool
	FinancialAvailable  bool
	DataCompleteness    float64
	Grade               Grade
}

// AssessQuality scores one symbol's ingested coverage (spec §4.3):
// data_completeness = 0.6*stock_available + 0.4*financial_available.
func AssessQuality(stockAvailable, financialAvailable bool) DataQuality {
	q := DataQuality{StockAvailable: stockAvailable, FinancialAvailable: financialAvailable}
	if stockAvailable {
		q.DataCompleteness += 0.6
	}
	if financialAvailable {
		q.DataCompleteness += 0.4
	}
	q.Grade = gradeFor(q.DataCompleteness)
	return q
}

func gradeFor(completeness float64) Grade {
	switch {
	case completeness >= 0.9:
		return GradeA
	case completeness >= 0.7:
		return GradeB
	case completeness >= 0.5:
		return GradeC
	case completeness >= 0.3:
		return GradeD
	default:
		return GradeF
	}
}
