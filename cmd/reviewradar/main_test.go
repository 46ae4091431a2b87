package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reviewradar/config"
	"reviewradar/internal/signal"
	"reviewradar/internal/store"
)

func TestRegenerateReportsFromStore(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		ReportsDir: filepath.Join(dir, "reports"),
		DBPath:     filepath.Join(dir, "reviewradar.db"),
	}
	ctx := context.Background()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ts := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := signal.Analysis{
		AppName:      "Focus App",
		AnalysisDate: "2026-06-01",
		Metrics:      signal.Metrics{TotalReviews: 40, NegativeRatio: 0.25, RiskScore: 42.5},
		Signals: signal.Signals{
			TopPainCategories: []signal.PainCategory{{Category: "critical", Count: 4, Weight: 10}},
			PillarDensities:   map[string]float64{signal.PillarFunctional: 1.0, signal.PillarEconomic: 0, signal.PillarExperience: 0},
			PrimaryPillar:     signal.PillarFunctional,
		},
		Evidence: []string{"crashes on launch"},
	}
	if err := db.SaveAnalysis(ctx, "ai_notes", a, ts); err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	intel := signal.Intelligence{
		Timeline:  []signal.WeeklyBucket{},
		Clusters:  []signal.Phrase{{Text: "sync failed", Count: 3}},
		Migration: []signal.MigrationEdge{},
	}
	if err := db.SaveIntelligence(ctx, "ai_notes", "Focus App", intel, ts); err != nil {
		t.Fatalf("save intelligence: %v", err)
	}
	db.Close()

	if err := regenerateReports(ctx, cfg, "ai_notes"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	reportsDir := filepath.Join(cfg.ReportsDir, "ai_notes")
	appReport, err := os.ReadFile(filepath.Join(reportsDir, "Focus_App_report.md"))
	if err != nil {
		t.Fatalf("app report missing: %v", err)
	}
	if !strings.Contains(string(appReport), "sync failed") {
		t.Fatalf("app report should include stored clusters:\n%s", appReport)
	}
	board, err := os.ReadFile(filepath.Join(reportsDir, "market_leaderboard.md"))
	if err != nil {
		t.Fatalf("leaderboard missing: %v", err)
	}
	if !strings.Contains(string(board), "Focus App") {
		t.Fatalf("leaderboard should rank the stored app:\n%s", board)
	}
}

func TestRegenerateReportsEmptyStore(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		ReportsDir: filepath.Join(dir, "reports"),
		DBPath:     filepath.Join(dir, "reviewradar.db"),
	}
	if err := regenerateReports(context.Background(), cfg, "ghost_niche"); err == nil {
		t.Fatal("expected an error when no analyses are stored")
	}
}
