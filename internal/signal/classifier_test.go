package signal

import (
	"testing"

	"reviewradar/config"
	"reviewradar/internal/review"
)

func testTaxonomy() config.Taxonomy {
	return config.Taxonomy{Categories: map[string]config.Category{
		"critical":       {Weight: 10, Keywords: []string{"crash", "broken"}},
		"scam_financial": {Weight: 10, Keywords: []string{"scam", "refund"}},
		"usability":      {Weight: 4, Keywords: []string{"confusing"}},
	}}
}

func TestClassifierSubstringMatching(t *testing.T) {
	c := NewClassifier(testTaxonomy())
	// Word-boundary-free on purpose: "scam" must match "scammed".
	if !c.HasPain("I got scammed out of $50") {
		t.Fatal("substring match should hit inside a longer word")
	}
	if !c.HasPain("APP KEEPS CRASHING") {
		t.Fatal("matching must be case-insensitive")
	}
	if c.HasPain("works perfectly, five stars") {
		t.Fatal("clean text should not match")
	}
}

func TestClassifierIronicFiveStar(t *testing.T) {
	c := NewClassifier(testTaxonomy())
	records := []review.Record{
		{Score: 5, Text: "Great app!! Except it crashes every single day lol"},
		{Score: 5, Text: "love it"},
	}
	cls := c.Classify(records)
	if !cls.PainFlags[0] {
		t.Fatal("5-star review with pain keyword must be flagged negative")
	}
	if cls.PainFlags[1] {
		t.Fatal("clean 5-star review must not be flagged")
	}
	if cls.NegativeCount != 1 {
		t.Fatalf("expected 1 negative, got %d", cls.NegativeCount)
	}
}

func TestClassifierCountsRecordsNotKeywords(t *testing.T) {
	c := NewClassifier(testTaxonomy())
	// Two keywords from the same category in one record count once.
	records := []review.Record{
		{Text: "crash crash crash and broken too"},
	}
	cls := c.Classify(records)
	if cls.CategoryCounts["critical"] != 1 {
		t.Fatalf("expected per-record count 1, got %d", cls.CategoryCounts["critical"])
	}
}

func TestClassifierMultiCategoryRecord(t *testing.T) {
	c := NewClassifier(testTaxonomy())
	records := []review.Record{
		{Text: "total scam and it keeps crashing"},
	}
	cls := c.Classify(records)
	if cls.CategoryCounts["critical"] != 1 || cls.CategoryCounts["scam_financial"] != 1 {
		t.Fatalf("record should count in every matched category: %v", cls.CategoryCounts)
	}
	if cls.NegativeCount != 1 {
		t.Fatalf("still one negative record, got %d", cls.NegativeCount)
	}
}

func TestClassifierUsesTitle(t *testing.T) {
	c := NewClassifier(testTaxonomy())
	records := []review.Record{
		{Title: "Total scam", Text: "would not recommend"},
	}
	cls := c.Classify(records)
	if cls.CategoryCounts["scam_financial"] != 1 {
		t.Fatal("title must participate in matching")
	}
}
