package leaderboard

import (
	"testing"

	"reviewradar/internal/signal"
)

func analysisWithScore(name string, score float64) signal.Analysis {
	return signal.Analysis{
		AppName: name,
		Metrics: signal.Metrics{RiskScore: score},
		Signals: signal.Signals{
			PrimaryPillar: signal.PillarFunctional,
			PillarDensities: map[string]float64{
				signal.PillarFunctional: score / 10,
				signal.PillarEconomic:   0,
				signal.PillarExperience: 0,
			},
		},
	}
}

func TestRankDescending(t *testing.T) {
	rows := Rank([]signal.Analysis{
		analysisWithScore("A", 10),
		analysisWithScore("B", 90),
		analysisWithScore("C", 50),
	})
	if rows[0].App != "B" || rows[0].Rank != 1 {
		t.Fatalf("rank 1 should be score 90, got %+v", rows[0])
	}
	if rows[1].App != "C" || rows[2].App != "A" {
		t.Fatalf("unexpected order: %+v", rows)
	}
	if rows[2].Rank != 3 {
		t.Fatalf("ranks must be dense 1-based, got %d", rows[2].Rank)
	}
}

func TestRankStableOnTies(t *testing.T) {
	rows := Rank([]signal.Analysis{
		analysisWithScore("First", 40),
		analysisWithScore("Second", 40),
	})
	if rows[0].App != "First" || rows[1].App != "Second" {
		t.Fatalf("ties must keep input order, got %+v", rows)
	}
}

func TestMatrixScaling(t *testing.T) {
	a := analysisWithScore("A", 10)
	a.Signals.PillarDensities[signal.PillarFunctional] = 2.5
	a.Signals.PillarDensities[signal.PillarEconomic] = 15 // scales past cap
	m := Matrix([]signal.Analysis{a})
	if got := m["A"][signal.PillarFunctional]; got != 25.0 {
		t.Fatalf("expected 25.0, got %v", got)
	}
	if got := m["A"][signal.PillarEconomic]; got != 100.0 {
		t.Fatalf("matrix must cap at 100, got %v", got)
	}
	if got := m["A"][signal.PillarExperience]; got != 0.0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
