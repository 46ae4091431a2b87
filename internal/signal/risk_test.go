package signal

import (
	"math"
	"testing"
)

func weightTen(string) float64 { return 10 }

func TestScoreRiskRoundTrip(t *testing.T) {
	// 2 critical matches, weight 10, 10 records, slope 0.2:
	// density(Functional)=2.0, base=20.0, boost=1.2, score=24.0.
	got := ScoreRisk(map[string]int{"critical": 2}, weightTen, 10, 0.2)
	if got.Score != 24.0 {
		t.Fatalf("expected risk 24.0, got %v", got.Score)
	}
	if d := got.PillarDensities[PillarFunctional]; math.Abs(d-2.0) > 1e-9 {
		t.Fatalf("expected Functional density 2.0, got %v", d)
	}
	if got.PrimaryPillar != PillarFunctional {
		t.Fatalf("expected primary Functional, got %s", got.PrimaryPillar)
	}
}

func TestScoreRiskEmptyInput(t *testing.T) {
	got := ScoreRisk(nil, weightTen, 0, 0.5)
	if got.Score != 0 {
		t.Fatalf("empty input must score 0, got %v", got.Score)
	}
	if got.PrimaryPillar != PillarNone {
		t.Fatalf("expected sentinel pillar None, got %s", got.PrimaryPillar)
	}
	for pillar, d := range got.PillarDensities {
		if d != 0 {
			t.Fatalf("pillar %s should be 0, got %v", pillar, d)
		}
	}
}

func TestScoreRiskImprovingTrendNeverDiscounts(t *testing.T) {
	flat := ScoreRisk(map[string]int{"critical": 1}, weightTen, 10, 0)
	improving := ScoreRisk(map[string]int{"critical": 1}, weightTen, 10, -3.0)
	if flat.Score != improving.Score {
		t.Fatalf("negative slope must not discount: flat=%v improving=%v", flat.Score, improving.Score)
	}
}

func TestScoreRiskCap(t *testing.T) {
	got := ScoreRisk(map[string]int{"critical": 100}, weightTen, 10, 5)
	if got.Score != 100.0 {
		t.Fatalf("score must cap at 100, got %v", got.Score)
	}
}

func TestPillarSumOrderIndependent(t *testing.T) {
	counts := map[string]int{
		"critical":       3,
		"scam_financial": 2,
		"usability":      5,
		"ads":            1,
	}
	weights := func(c string) float64 {
		return map[string]float64{
			"critical": 10, "scam_financial": 10, "usability": 4, "ads": 5,
		}[c]
	}
	// Maps iterate in random order; repeated runs must agree exactly.
	first := ScoreRisk(counts, weights, 20, 0.1)
	for i := 0; i < 25; i++ {
		again := ScoreRisk(counts, weights, 20, 0.1)
		if again.Score != first.Score {
			t.Fatalf("score not deterministic: %v vs %v", again.Score, first.Score)
		}
		sum := again.PillarDensities[PillarFunctional] +
			again.PillarDensities[PillarEconomic] +
			again.PillarDensities[PillarExperience]
		firstSum := first.PillarDensities[PillarFunctional] +
			first.PillarDensities[PillarEconomic] +
			first.PillarDensities[PillarExperience]
		if math.Abs(sum-firstSum) > 1e-12 {
			t.Fatalf("pillar sum varies with iteration order: %v vs %v", sum, firstSum)
		}
	}
}

func TestPrimaryPillarTieOrder(t *testing.T) {
	// Equal densities: Functional wins, then Economic.
	counts := map[string]int{"critical": 1, "scam_financial": 1}
	got := ScoreRisk(counts, weightTen, 10, 0)
	if got.PrimaryPillar != PillarFunctional {
		t.Fatalf("tie should resolve to Functional, got %s", got.PrimaryPillar)
	}
}

func TestPrimaryPillarZeroDensities(t *testing.T) {
	// Records present but none matched a pain keyword: the argmax still
	// runs and the declaration-order tie gives Functional. "None" is
	// reserved for zero records.
	got := ScoreRisk(map[string]int{}, weightTen, 10, 0)
	if got.Score != 0 {
		t.Fatalf("no matches must score 0, got %v", got.Score)
	}
	if got.PrimaryPillar != PillarFunctional {
		t.Fatalf("all-zero densities should resolve to Functional, got %s", got.PrimaryPillar)
	}
}

func TestPillarForUnknownCategory(t *testing.T) {
	if got := PillarFor("something_new"); got != PillarExperience {
		t.Fatalf("unknown categories belong to Experience, got %s", got)
	}
	if got := PillarFor("privacy"); got != PillarFunctional {
		t.Fatalf("privacy maps to Functional, got %s", got)
	}
}
