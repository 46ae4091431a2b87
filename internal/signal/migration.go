package signal

import (
	"regexp"
	"strings"
)

// MigrationEdge is one competitor with its churn-mention count.
type MigrationEdge struct {
	Competitor string `json:"competitor"`
	Type       string `json:"type"`
	Count      int    `json:"count"`
}

// MigrationDetector counts explicit churn statements naming a competitor:
// "switched to X", "moved to X", "migrated to X", "changed to X".
// Comparison phrasing ("better than X") is never counted; precision over
// recall keeps the churn narrative clean.
type MigrationDetector struct {
	competitors []string
	patterns    []*regexp.Regexp
}

// NewMigrationDetector compiles one pattern per competitor. Underscores in
// names are treated as spaces so "Otter_AI" matches "switched to otter ai".
func NewMigrationDetector(competitors []string) *MigrationDetector {
	d := &MigrationDetector{}
	for _, comp := range competitors {
		name := strings.ToLower(strings.ReplaceAll(comp, "_", " "))
		if strings.TrimSpace(name) == "" {
			continue
		}
		pattern := regexp.MustCompile(
			`(?i)\b(?:switched|moved|migrated|changed)\s+to\s+` + regexp.QuoteMeta(name) + `\b`,
		)
		d.competitors = append(d.competitors, comp)
		d.patterns = append(d.patterns, pattern)
	}
	return d
}

// Detect scans every text and returns competitors with at least one churn
// mention, in competitor list order. A single review counts at most once
// per competitor.
func (d *MigrationDetector) Detect(texts []string) []MigrationEdge {
	counts := make(map[int]int)
	for _, text := range texts {
		if len(strings.TrimSpace(text)) < 5 {
			continue
		}
		for i, pattern := range d.patterns {
			if pattern.MatchString(text) {
				counts[i]++
			}
		}
	}
	var edges []MigrationEdge
	for i, comp := range d.competitors {
		if counts[i] > 0 {
			edges = append(edges, MigrationEdge{Competitor: comp, Type: "churn", Count: counts[i]})
		}
	}
	return edges
}
