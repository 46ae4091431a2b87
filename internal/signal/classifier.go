// Package signal implements the analysis stages that turn normalized
// reviews into risk signals: pain classification, trend estimation,
// composite risk scoring, weekly anomaly detection, phrase clustering,
// and competitor migration detection.
package signal

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"reviewradar/config"
	"reviewradar/internal/review"
)

// Classifier matches review text against the weighted keyword taxonomy
// using a single Aho-Corasick pass per review. Matching is case-insensitive
// and substring-based on purpose: "scam" must match "scammed". Construct
// once per run and share read-only.
type Classifier struct {
	matcher    *ahocorasick.Matcher
	keywords   []string
	categories [][]string // keyword index -> category names containing it
	weights    map[string]float64
	names      []string // sorted category names
}

// NewClassifier builds the matcher from a validated taxonomy.
func NewClassifier(tax config.Taxonomy) *Classifier {
	c := &Classifier{
		weights: make(map[string]float64, len(tax.Categories)),
	}
	// Deterministic keyword order, keyed by sorted category name.
	c.names = make([]string, 0, len(tax.Categories))
	for name := range tax.Categories {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)

	index := make(map[string]int)
	for _, name := range c.names {
		cat := tax.Categories[name]
		c.weights[name] = cat.Weight
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			idx, seen := index[kw]
			if !seen {
				idx = len(c.keywords)
				index[kw] = idx
				c.keywords = append(c.keywords, kw)
				c.categories = append(c.categories, nil)
			}
			c.categories[idx] = append(c.categories[idx], name)
		}
	}
	if len(c.keywords) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.keywords)
	}
	return c
}

// Weight returns the taxonomy weight for a category, 0 when unknown.
func (c *Classifier) Weight(category string) float64 {
	return c.weights[category]
}

// Categories returns the sorted category names of the taxonomy.
func (c *Classifier) Categories() []string {
	return c.names
}

// MatchCategories returns the set of categories whose keywords appear in
// the text. Empty result means no pain signal.
func (c *Classifier) MatchCategories(text string) map[string]bool {
	if c.matcher == nil || text == "" {
		return nil
	}
	hits := c.matcher.Match([]byte(strings.ToLower(text)))
	if len(hits) == 0 {
		return nil
	}
	matched := make(map[string]bool)
	for _, idx := range hits {
		if idx < 0 || idx >= len(c.categories) {
			continue
		}
		for _, name := range c.categories[idx] {
			matched[name] = true
		}
	}
	return matched
}

// HasPain reports whether any taxonomy keyword appears in the text.
func (c *Classifier) HasPain(text string) bool {
	return len(c.MatchCategories(text)) > 0
}

// Classification is the per-batch output of Classify: a pain flag per
// record (index-aligned) and the number of records matching each category.
// A record matching several categories counts once in each.
type Classification struct {
	PainFlags      []bool
	CategoryCounts map[string]int
	NegativeCount  int
}

// Classify runs the matcher over every record's combined title+text.
func (c *Classifier) Classify(records []review.Record) Classification {
	out := Classification{
		PainFlags:      make([]bool, len(records)),
		CategoryCounts: make(map[string]int),
	}
	for i, rec := range records {
		matched := c.MatchCategories(rec.Combined())
		if len(matched) == 0 {
			continue
		}
		out.PainFlags[i] = true
		out.NegativeCount++
		for name := range matched {
			out.CategoryCounts[name]++
		}
	}
	return out
}
