// Package leaderboard merges per-app analyses into a ranked cross-app
// table and a pillar matrix for report rendering.
package leaderboard

import (
	"math"
	"sort"

	"reviewradar/internal/signal"
)

// Row is one ranked leaderboard entry.
type Row struct {
	Rank             int     `json:"rank"`
	App              string  `json:"app"`
	RiskScore        float64 `json:"risk_score"`
	Slope            float64 `json:"slope"`
	NegativeRatio    float64 `json:"negative_ratio"`
	TotalReviews     int     `json:"total_reviews"`
	PrimaryPillar    string  `json:"primary_pillar"`
	SuspectedVersion string  `json:"suspected_version,omitempty"`
}

// Rank sorts analyses by risk score descending and assigns dense 1-based
// ranks. The sort is stable: ties keep their input order, so reruns over
// the same targets file produce the same table.
func Rank(analyses []signal.Analysis) []Row {
	ordered := make([]signal.Analysis, len(analyses))
	copy(ordered, analyses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Metrics.RiskScore > ordered[j].Metrics.RiskScore
	})
	rows := make([]Row, len(ordered))
	for i, a := range ordered {
		rows[i] = Row{
			Rank:             i + 1,
			App:              a.AppName,
			RiskScore:        a.Metrics.RiskScore,
			Slope:            a.Metrics.VolatilitySlope,
			NegativeRatio:    a.Metrics.NegativeRatio,
			TotalReviews:     a.Metrics.TotalReviews,
			PrimaryPillar:    a.Signals.PrimaryPillar,
			SuspectedVersion: a.Signals.SuspectedVersion,
		}
	}
	return rows
}

// Matrix normalizes each app's pillar densities to a 0-100 scale
// (density x 10, capped) for side-by-side display.
func Matrix(analyses []signal.Analysis) map[string]map[string]float64 {
	matrix := make(map[string]map[string]float64, len(analyses))
	for _, a := range analyses {
		row := make(map[string]float64, 3)
		for _, pillar := range []string{signal.PillarFunctional, signal.PillarEconomic, signal.PillarExperience} {
			row[pillar] = scale(a.Signals.PillarDensities[pillar])
		}
		matrix[a.AppName] = row
	}
	return matrix
}

func scale(density float64) float64 {
	return math.Round(math.Min(100.0, density*10)*100) / 100
}
