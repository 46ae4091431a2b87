package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reviewradar/config"
	"reviewradar/internal/signal"
)

const validInsight = `{
	"headline": "Sync failures are driving churn to Opal",
	"narrative": "Functional risk dominates: sync failures cluster across recent weeks.",
	"evidence": ["sync failed x4", "switched to Opal x2", "risk score 62.5"],
	"confidence": "high"
}`

func TestParseInsightValid(t *testing.T) {
	got, err := ParseInsight(validInsight)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Confidence != "high" || len(got.Evidence) != 3 {
		t.Fatalf("unexpected insight: %+v", got)
	}
}

func TestParseInsightToleratesSurroundingProse(t *testing.T) {
	content := "Here is the summary you asked for:\n" + validInsight + "\nLet me know if you need more."
	if _, err := ParseInsight(content); err != nil {
		t.Fatalf("prose around the object should be tolerated: %v", err)
	}
}

func TestParseInsightRejectsExtraKeys(t *testing.T) {
	content := strings.Replace(validInsight, `"confidence": "high"`, `"confidence": "high", "extra": 1`, 1)
	if _, err := ParseInsight(content); err == nil {
		t.Fatal("extra key must be rejected")
	}
}

func TestParseInsightRejectsMissingKeys(t *testing.T) {
	content := `{"headline": "x", "narrative": "y", "confidence": "low"}`
	if _, err := ParseInsight(content); err == nil {
		t.Fatal("missing evidence must be rejected")
	}
}

func TestParseInsightRejectsBadConfidence(t *testing.T) {
	content := strings.Replace(validInsight, `"high"`, `"certain"`, 1)
	if _, err := ParseInsight(content); err == nil {
		t.Fatal("confidence outside the enum must be rejected")
	}
}

func TestParseInsightRejectsEvidenceBounds(t *testing.T) {
	content := strings.Replace(validInsight,
		`["sync failed x4", "switched to Opal x2", "risk score 62.5"]`,
		`["only one"]`, 1)
	if _, err := ParseInsight(content); err == nil {
		t.Fatal("fewer than 3 evidence items must be rejected")
	}
}

func TestSummarizeEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("unexpected model %v", req["model"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": validInsight}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{
		Model:         "test-model",
		BaseURL:       srv.URL,
		PromptVersion: "v1",
	}, "key")
	insight, err := c.Summarize(context.Background(), signal.Analysis{AppName: "X"}, signal.Intelligence{})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if insight.Headline == "" {
		t.Fatal("expected populated insight")
	}
}

func TestSummarizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{Model: "m", BaseURL: srv.URL}, "")
	if _, err := c.Summarize(context.Background(), signal.Analysis{}, signal.Intelligence{}); err == nil {
		t.Fatal("expected error from non-2xx status")
	}
}
