package signal

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
	"unicode/utf8"

	"reviewradar/config"
	"reviewradar/internal/review"
)

func testConfig() config.Config {
	return config.Config{
		DaysBack: 90,
		Anomaly:  testAnomalyConfig(),
		Cluster:  testClusterConfig(),
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	a := NewAnalyzer(testTaxonomy(), testConfig())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	got := a.Analyze("Ghost App", nil, now)
	if got.Metrics.RiskScore != 0 || got.Metrics.TotalReviews != 0 {
		t.Fatalf("empty input should yield zero metrics: %+v", got.Metrics)
	}
	if got.Signals.PrimaryPillar != PillarNone {
		t.Fatalf("expected pillar None, got %s", got.Signals.PrimaryPillar)
	}
	if got.Evidence == nil || got.Signals.TopPainCategories == nil {
		t.Fatal("empty result must serialize with empty arrays, not null")
	}
}

func TestAnalyzeMetrics(t *testing.T) {
	a := NewAnalyzer(testTaxonomy(), testConfig())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -10)
	records := []review.Record{
		{Date: &day, Score: 1, Text: "app crashes on launch every time, total scam"},
		{Date: &day, Score: 5, Text: "works great"},
		{Date: &day, Score: 4, Text: "pretty decent overall"},
		{Date: &day, Score: 2, Text: "keeps crashing"},
	}
	got := a.Analyze("Test App", records, now)
	if got.Metrics.TotalReviews != 4 {
		t.Fatalf("expected 4 reviews, got %d", got.Metrics.TotalReviews)
	}
	if got.Metrics.NegativeRatio != 0.5 {
		t.Fatalf("expected negative ratio 0.5, got %v", got.Metrics.NegativeRatio)
	}
	if got.Signals.PrimaryPillar != PillarFunctional {
		t.Fatalf("crashes should make Functional primary, got %s", got.Signals.PrimaryPillar)
	}
	if len(got.Evidence) == 0 {
		t.Fatal("expected evidence from pain reviews")
	}
}

func TestAnalyzeIgnoresOutOfWindowRecords(t *testing.T) {
	a := NewAnalyzer(testTaxonomy(), testConfig())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := now.AddDate(0, 0, -200)
	records := []review.Record{
		{Date: &stale, Score: 1, Text: "crash crash crash"},
	}
	got := a.Analyze("Test App", records, now)
	if got.Metrics.TotalReviews != 0 {
		t.Fatalf("stale records must be excluded, got %d", got.Metrics.TotalReviews)
	}
}

func TestAnalyzeBrokenUpdate(t *testing.T) {
	a := NewAnalyzer(testTaxonomy(), testConfig())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -5)
	var records []review.Record
	// 4 of 5 pain reviews pin version 2.0: well past the 30% share.
	for i := 0; i < 4; i++ {
		records = append(records, review.Record{Date: &day, Score: 1, Text: "broken since update", Version: "2.0"})
	}
	records = append(records, review.Record{Date: &day, Score: 1, Text: "crash", Version: "1.9"})
	got := a.Analyze("Test App", records, now)
	if !got.Signals.BrokenUpdateDetected {
		t.Fatal("expected broken update detection")
	}
	if got.Signals.SuspectedVersion != "2.0" {
		t.Fatalf("expected suspected version 2.0, got %q", got.Signals.SuspectedVersion)
	}
}

func TestEvidenceTruncatesOnRuneBoundary(t *testing.T) {
	a := NewAnalyzer(testTaxonomy(), testConfig())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -3)
	// Pad a pain review past the evidence limit with multi-byte runes so a
	// byte-offset cut would split one.
	text := "app crashes "
	for len([]rune(text)) < evidenceMaxChars+20 {
		text += "日本語レビュー"
	}
	got := a.Analyze("Test App", []review.Record{{Date: &day, Score: 1, Text: text}}, now)
	if len(got.Evidence) != 1 {
		t.Fatalf("expected one evidence entry, got %d", len(got.Evidence))
	}
	ev := got.Evidence[0]
	if !utf8.ValidString(ev) {
		t.Fatalf("truncated evidence is not valid UTF-8: %q", ev)
	}
	if n := len([]rune(ev)); n != evidenceMaxChars {
		t.Fatalf("expected %d-rune evidence, got %d", evidenceMaxChars, n)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	a := NewAnalyzer(config.DefaultTaxonomy(), testConfig())
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	var records []review.Record
	texts := []string{
		"app crashes daily, total scam, want a refund",
		"too many ads and the subscription is a rip off",
		"confusing interface but works",
		"switched to Opal because of the battery drain",
		"love it",
	}
	for i, text := range texts {
		d := now.AddDate(0, 0, -i*7)
		records = append(records, review.Record{ID: texts[i][:4], Date: &d, Score: 1 + i%5, Text: text, Version: "3.1"})
	}
	first := a.Analyze("Test App", records, now)
	second := a.Analyze("Test App", records, now)
	b1, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b2, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("analysis not byte-identical across runs:\n%s\n%s", b1, b2)
	}
}

func TestForensicPipeline(t *testing.T) {
	a := NewAnalyzer(config.DefaultTaxonomy(), testConfig())
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	var records []review.Record
	for week := 0; week < 3; week++ {
		for n := 0; n < 6; n++ {
			d := base.AddDate(0, 0, week*7+n)
			text := "all good"
			score := 5
			if n < 2 {
				text = "sync failed and lost my notes"
				score = 1
			}
			records = append(records, review.Record{Date: &d, Score: score, Text: text})
		}
	}
	d := base.AddDate(0, 0, 20)
	records = append(records, review.Record{Date: &d, Score: 1, Text: "I switched to Opal after this mess"})

	intel := a.Forensic("Test App", records, []string{"Test_App", "Opal"})
	if len(intel.Timeline) == 0 {
		t.Fatal("expected weekly timeline")
	}
	if len(intel.Clusters) == 0 || intel.Clusters[0].Text != "sync failed" {
		t.Fatalf("expected 'sync failed' cluster, got %v", intel.Clusters)
	}
	if len(intel.Migration) != 1 || intel.Migration[0].Competitor != "Opal" {
		t.Fatalf("expected Opal churn edge excluding self, got %v", intel.Migration)
	}
}
