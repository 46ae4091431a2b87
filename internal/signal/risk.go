package signal

import "math"

// The three MECE risk pillars. Every taxonomy category maps into exactly
// one; the table is fixed rather than user config so the partition cannot
// be broken by a bad config file.
const (
	PillarFunctional = "Functional"
	PillarEconomic   = "Economic"
	PillarExperience = "Experience"
	PillarNone       = "None"
)

var pillarOrder = []string{PillarFunctional, PillarEconomic, PillarExperience}

var categoryPillars = map[string]string{
	"critical":           PillarFunctional,
	"performance":        PillarFunctional,
	"privacy":            PillarFunctional,
	"scam_financial":     PillarEconomic,
	"subscription":       PillarEconomic,
	"ads":                PillarEconomic,
	"usability":          PillarExperience,
	"competitor_mention": PillarExperience,
	"generic_pain":       PillarExperience,
}

// PillarFor returns the pillar a category belongs to. Categories outside
// the fixed table land in Experience, the catch-all for soft signals.
func PillarFor(category string) string {
	if p, ok := categoryPillars[category]; ok {
		return p
	}
	return PillarExperience
}

// RiskScore is the composite output of ScoreRisk.
type RiskScore struct {
	Score           float64
	PillarDensities map[string]float64
	PrimaryPillar   string
}

// ScoreRisk converts per-category match counts into pillar densities and a
// bounded 0-100 composite. density(P) = sum over categories in P of
// count*weight, divided by total records. The trend slope only ever
// amplifies the base score; an improving trend never discounts it.
func ScoreRisk(counts map[string]int, weights func(string) float64, total int, slope float64) RiskScore {
	densities := map[string]float64{
		PillarFunctional: 0,
		PillarEconomic:   0,
		PillarExperience: 0,
	}
	if total <= 0 {
		return RiskScore{Score: 0, PillarDensities: densities, PrimaryPillar: PillarNone}
	}
	for category, count := range counts {
		if count <= 0 {
			continue
		}
		densities[PillarFor(category)] += float64(count) * weights(category) / float64(total)
	}

	base := 10.0 * (densities[PillarFunctional] + densities[PillarEconomic] + densities[PillarExperience])
	boost := 1.0 + math.Max(0, slope)
	score := math.Min(100.0, base*boost)

	// Argmax seeded from the first pillar so the declaration order breaks
	// ties. "None" only ever means zero records.
	primary := pillarOrder[0]
	best := densities[primary]
	for _, pillar := range pillarOrder[1:] {
		if densities[pillar] > best {
			best = densities[pillar]
			primary = pillar
		}
	}
	return RiskScore{
		Score:           round2(score),
		PillarDensities: densities,
		PrimaryPillar:   primary,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
