// Package llm produces an optional narrative insight for an app's
// analysis via a chat-completion endpoint. The model's output is held to
// a strict JSON contract; anything outside it is rejected rather than
// repaired.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reviewradar/config"
	"reviewradar/internal/signal"
)

// Insight is the validated narrative output for one app.
type Insight struct {
	Headline   string   `json:"headline"`
	Narrative  string   `json:"narrative"`
	Evidence   []string `json:"evidence"`
	Confidence string   `json:"confidence"`
}

// Client talks to an OpenAI-compatible chat completion API.
type Client struct {
	httpClient    *http.Client
	model         string
	baseURL       string
	apiKey        string
	promptVersion string
}

func NewClient(cfg config.LLMConfig, apiKey string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		model:         cfg.Model,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        apiKey,
		promptVersion: cfg.PromptVersion,
	}
}

func buildSystemPrompt(version string) string {
	return strings.TrimSpace(fmt.Sprintf(`You are a mobile app market analyst summarizing review-mining results.
Return STRICT JSON ONLY with keys: headline, narrative, evidence, confidence.
Rules:
- headline max 80 chars
- narrative max 600 chars
- evidence array 3-6 items, each max 120 chars, quoting ONLY the provided review excerpts
- confidence must be "low", "medium", or "high"
- no invented facts, numbers, or review quotes; use ONLY the provided analysis data
Style: direct, specific, no hedging.
Prompt version: %s`, version))
}

func buildUserPrompt(a signal.Analysis, intel signal.Intelligence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "App: %s\n", a.AppName)
	fmt.Fprintf(&b, "Risk score: %.2f (primary pillar: %s)\n", a.Metrics.RiskScore, a.Signals.PrimaryPillar)
	fmt.Fprintf(&b, "Negative ratio: %.3f over %d reviews\n", a.Metrics.NegativeRatio, a.Metrics.TotalReviews)
	fmt.Fprintf(&b, "Trend slope: %.4f\n", a.Metrics.VolatilitySlope)
	if a.Signals.BrokenUpdateDetected {
		fmt.Fprintf(&b, "Suspected broken update: version %s\n", a.Signals.SuspectedVersion)
	}
	if len(a.Signals.TopPainCategories) > 0 {
		b.WriteString("Top pain categories:\n")
		for _, cat := range a.Signals.TopPainCategories {
			fmt.Fprintf(&b, "- %s: %d matches (weight %.0f)\n", cat.Category, cat.Count, cat.Weight)
		}
	}
	if len(intel.Clusters) > 0 {
		b.WriteString("Complaint clusters:\n")
		for _, p := range intel.Clusters {
			fmt.Fprintf(&b, "- %q x%d\n", p.Text, p.Count)
		}
	}
	if len(intel.Migration) > 0 {
		b.WriteString("Churn mentions:\n")
		for _, e := range intel.Migration {
			fmt.Fprintf(&b, "- switched to %s: %d\n", e.Competitor, e.Count)
		}
	}
	if len(a.Evidence) > 0 {
		b.WriteString("Review excerpts:\n")
		for _, ev := range a.Evidence {
			b.WriteString("- ")
			b.WriteString(ev)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Summarize asks the model for a narrative over one app's results.
func (c *Client) Summarize(ctx context.Context, a signal.Analysis, intel signal.Intelligence) (Insight, error) {
	payload := map[string]interface{}{
		"model":       c.model,
		"temperature": 0.2,
		"response_format": map[string]string{
			"type": "json_object",
		},
		"messages": []map[string]string{
			{"role": "system", "content": buildSystemPrompt(c.promptVersion)},
			{"role": "user", "content": buildUserPrompt(a, intel)},
		},
	}
	buf, _ := json.Marshal(payload)

	endpoint := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return Insight{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Insight{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Insight{}, fmt.Errorf("llm status %d: %s", resp.StatusCode, string(body))
	}
	var wrapper struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return Insight{}, err
	}
	if len(wrapper.Choices) == 0 {
		return Insight{}, errors.New("empty llm response")
	}
	return ParseInsight(strings.TrimSpace(wrapper.Choices[0].Message.Content))
}

// ParseInsight validates model output against the contract: exactly the
// expected keys, bounded lengths, enumerated confidence.
func ParseInsight(content string) (Insight, error) {
	obj := extractJSONObject(content)
	if obj == "" {
		return Insight{}, errors.New("no json object found")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Insight{}, err
	}
	allowed := map[string]struct{}{
		"headline": {}, "narrative": {}, "evidence": {}, "confidence": {},
	}
	for key := range raw {
		if _, ok := allowed[key]; !ok {
			return Insight{}, fmt.Errorf("unexpected key %q", key)
		}
	}
	for key := range allowed {
		if _, ok := raw[key]; !ok {
			return Insight{}, fmt.Errorf("missing key %q", key)
		}
	}
	var out Insight
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return Insight{}, err
	}
	out.Headline = strings.TrimSpace(out.Headline)
	out.Narrative = strings.TrimSpace(out.Narrative)
	if out.Headline == "" {
		return Insight{}, errors.New("empty headline")
	}
	if len(out.Headline) > 80 {
		return Insight{}, errors.New("headline too long")
	}
	if len(out.Narrative) > 600 {
		return Insight{}, errors.New("narrative too long")
	}
	if len(out.Evidence) < 3 || len(out.Evidence) > 6 {
		return Insight{}, errors.New("evidence must have 3-6 items")
	}
	for i, item := range out.Evidence {
		item = strings.TrimSpace(item)
		if item == "" {
			return Insight{}, errors.New("evidence contains empty item")
		}
		if len(item) > 120 {
			return Insight{}, errors.New("evidence item too long")
		}
		out.Evidence[i] = item
	}
	conf := strings.ToLower(strings.TrimSpace(out.Confidence))
	if conf != "low" && conf != "medium" && conf != "high" {
		return Insight{}, errors.New("confidence must be low, medium, or high")
	}
	out.Confidence = conf
	return out, nil
}

// extractJSONObject returns the first balanced top-level JSON object in
// the input, tolerating prose before or after it.
func extractJSONObject(input string) string {
	start := strings.Index(input, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
