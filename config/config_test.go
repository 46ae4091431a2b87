package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestQueueSizeDefaultsRespectWorkers(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("QUEUE_SIZE", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count 8, got %d", cfg.WorkerCount)
	}
	if cfg.QueueSize < cfg.WorkerCount {
		t.Fatalf("queue size should be at least workers, got %d", cfg.QueueSize)
	}
}

func TestStrictConfigFailsOnMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("STRICT_CONFIG", "1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error with STRICT_CONFIG and missing file")
	}
}

func TestFileOverridesAndEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	body := []byte("data_dir: /tmp/from-file\nanomaly:\n  min_reviews_per_week: 7\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DATA_DIR", "/tmp/from-env")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataDir != "/tmp/from-env" {
		t.Fatalf("env should override file, got %s", cfg.DataDir)
	}
	if cfg.Anomaly.MinReviewsPerWeek != 7 {
		t.Fatalf("expected min_reviews_per_week 7, got %d", cfg.Anomaly.MinReviewsPerWeek)
	}
	if cfg.Anomaly.HighSignalWeight != 3.0 {
		t.Fatalf("expected default high_signal_weight 3.0, got %v", cfg.Anomaly.HighSignalWeight)
	}
}

func TestJSONSettingsAccepted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	body := []byte(`{"days_back": 30, "filters": {"min_star_rating": 4}}`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DaysBack != 30 {
		t.Fatalf("expected days_back 30, got %d", cfg.DaysBack)
	}
	if cfg.Filters.MinStarRating != 4 {
		t.Fatalf("expected min_star_rating 4, got %d", cfg.Filters.MinStarRating)
	}
}

func TestTaxonomyDefaultsValid(t *testing.T) {
	tax := DefaultTaxonomy()
	if err := tax.Validate(); err != nil {
		t.Fatalf("default taxonomy invalid: %v", err)
	}
	if len(tax.Categories) != 9 {
		t.Fatalf("expected 9 default categories, got %d", len(tax.Categories))
	}
	for _, name := range []string{"critical", "scam_financial", "usability"} {
		if _, ok := tax.Categories[name]; !ok {
			t.Fatalf("missing default category %q", name)
		}
	}
}

func TestLoadTaxonomyRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	body := []byte("categories:\n  critical:\n    weight: -1\n    keywords: [crash]\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write taxonomy: %v", err)
	}
	if _, err := LoadTaxonomy(path); err == nil {
		t.Fatal("expected negative weight to be rejected")
	}
}

func TestLoadTaxonomyMissingFileFallsBack(t *testing.T) {
	tax, err := LoadTaxonomy(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if len(tax.Categories) == 0 {
		t.Fatal("expected default categories")
	}
}

func TestTargetsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json")
	body := []byte(`{
		"niche_name": "AI Notes",
		"apps": [
			{"name": "Voicenotes", "url": "https://apps.apple.com/us/app/voicenotes/id6499420042"},
			{"name": "Otter AI", "url": "https://apps.apple.com/us/app/otter/id972420549"}
		],
		"params": {"days_back": 90, "max_reviews": 500}
	}`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	targets, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("load targets: %v", err)
	}
	if targets.Niche() != "AI_Notes" {
		t.Fatalf("expected niche AI_Notes, got %s", targets.Niche())
	}
	names := targets.CompetitorNames()
	if len(names) != 2 || names[1] != "Otter_AI" {
		t.Fatalf("unexpected competitor names: %v", names)
	}
}

func TestTargetsMissingParamsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json")
	body := []byte(`{"apps": [{"name": "A", "url": "https://example.com"}], "params": {}}`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	if _, err := LoadTargets(path); err == nil {
		t.Fatal("expected missing params to be rejected")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := []byte("# comment\nexport APIFY_TOKEN=\"from-file\"\nNEW_KEY=value\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("APIFY_TOKEN", "from-env")
	os.Unsetenv("NEW_KEY")
	t.Cleanup(func() { os.Unsetenv("NEW_KEY") })
	LoadDotEnv(path)
	if got := os.Getenv("APIFY_TOKEN"); got != "from-env" {
		t.Fatalf("existing env should win, got %s", got)
	}
	if got := os.Getenv("NEW_KEY"); got != "value" {
		t.Fatalf("expected NEW_KEY=value, got %s", got)
	}
}
