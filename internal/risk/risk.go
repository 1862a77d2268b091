// Package risk reduces an endpoint's classified data fields to one ordinal
// risk score.
package risk

import "github.com/rsclarke/tracescope/internal/models"

// Score returns the risk of a set of data fields from the number of
// distinct data classes they carry.
func Score(fields []models.DataField) models.RiskScore {
	distinct := make(map[string]struct{})
	for _, f := range fields {
		for _, c := range f.DataClasses {
			distinct[c] = struct{}{}
		}
	}
	return FromCount(len(distinct))
}

// FromCount maps a distinct class count to a score.
func FromCount(n int) models.RiskScore {
	switch {
	case n >= 3:
		return models.RiskHigh
	case n == 2:
		return models.RiskMedium
	case n == 1:
		return models.RiskLow
	default:
		return models.RiskNone
	}
}
