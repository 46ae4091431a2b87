// Package report renders analysis results to markdown and JSON files
// under the per-niche reports directory.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reviewradar/internal/fetch"
	"reviewradar/internal/leaderboard"
	"reviewradar/internal/llm"
	"reviewradar/internal/signal"
)

// WriteAnalysis saves the per-app analysis JSON next to the raw data so
// the leaderboard can be rebuilt without re-fetching.
func WriteAnalysis(dataDir string, a signal.Analysis) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dataDir, fetch.SafeName(a.AppName)+"_analysis.json")
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// WriteIntelligence saves the forensic payload for one app.
func WriteIntelligence(reportsDir, appName string, intel signal.Intelligence) (string, error) {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(reportsDir, fetch.SafeName(appName)+"_intelligence.json")
	data, err := json.MarshalIndent(intel, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// WriteAppReport renders one app's markdown report. insight may be nil
// when the narrative summarizer is disabled or failed.
func WriteAppReport(reportsDir string, a signal.Analysis, intel signal.Intelligence, insight *llm.Insight) (string, error) {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Signal Report: %s\n\n", a.AppName)
	fmt.Fprintf(&b, "**Analysis Date:** %s\n\n", a.AnalysisDate)

	b.WriteString("## Headline Metrics\n\n")
	fmt.Fprintf(&b, "- **Risk Score:** %.2f / 100\n", a.Metrics.RiskScore)
	fmt.Fprintf(&b, "- **Primary Pillar:** %s\n", a.Signals.PrimaryPillar)
	fmt.Fprintf(&b, "- **Negative Ratio:** %.1f%%\n", a.Metrics.NegativeRatio*100)
	fmt.Fprintf(&b, "- **Volatility Slope:** %.4f\n", a.Metrics.VolatilitySlope)
	fmt.Fprintf(&b, "- **Reviews Analyzed:** %d\n\n", a.Metrics.TotalReviews)

	if a.Signals.BrokenUpdateDetected {
		fmt.Fprintf(&b, "> **Broken update suspected:** version %s owns an outsized share of pain reviews.\n\n",
			a.Signals.SuspectedVersion)
	}

	if insight != nil {
		b.WriteString("## Analyst Summary\n\n")
		fmt.Fprintf(&b, "**%s**\n\n", insight.Headline)
		fmt.Fprintf(&b, "%s\n\n", insight.Narrative)
		fmt.Fprintf(&b, "_Confidence: %s_\n\n", insight.Confidence)
	}

	if len(a.Signals.TopPainCategories) > 0 {
		b.WriteString("## Top Pain Categories\n\n")
		b.WriteString("| Category | Matches | Weight |\n")
		b.WriteString("|----------|---------|--------|\n")
		for _, cat := range a.Signals.TopPainCategories {
			fmt.Fprintf(&b, "| %s | %d | %.0f |\n", cat.Category, cat.Count, cat.Weight)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Pillar Densities\n\n")
	b.WriteString("| Pillar | Density |\n")
	b.WriteString("|--------|--------|\n")
	for _, pillar := range []string{signal.PillarFunctional, signal.PillarEconomic, signal.PillarExperience} {
		fmt.Fprintf(&b, "| %s | %.4f |\n", pillar, a.Signals.PillarDensities[pillar])
	}
	b.WriteString("\n")

	if len(intel.Timeline) > 0 {
		b.WriteString("## Weekly Pain Timeline\n\n")
		b.WriteString("| Week | Reviews | Pain (weighted) | Density | Event |\n")
		b.WriteString("|------|---------|-----------------|---------|-------|\n")
		for _, wk := range intel.Timeline {
			event := wk.Event
			if event == "" {
				event = "-"
			}
			fmt.Fprintf(&b, "| %s | %d | %.1f | %.4f | %s |\n",
				wk.Week, wk.Total, wk.PainWeighted, wk.Density, event)
		}
		b.WriteString("\n")
	}

	if len(intel.Clusters) > 0 {
		b.WriteString("## Complaint Clusters\n\n")
		for _, p := range intel.Clusters {
			fmt.Fprintf(&b, "- \"%s\" (%d occurrences)\n", p.Text, p.Count)
		}
		b.WriteString("\n")
	}

	if len(intel.Migration) > 0 {
		b.WriteString("## Competitor Churn\n\n")
		for _, e := range intel.Migration {
			fmt.Fprintf(&b, "- %s: %d explicit switch mentions\n",
				strings.ReplaceAll(e.Competitor, "_", " "), e.Count)
		}
		b.WriteString("\n")
	}

	if len(a.Evidence) > 0 {
		b.WriteString("## Evidence\n\n")
		for _, ev := range a.Evidence {
			fmt.Fprintf(&b, "> %s\n\n", ev)
		}
	}

	path := filepath.Join(reportsDir, fetch.SafeName(a.AppName)+"_report.md")
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

// WriteLeaderboard renders the ranked cross-app table with the scoring
// methodology appendix.
func WriteLeaderboard(reportsDir, niche string, rows []leaderboard.Row, now time.Time) (string, error) {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Market Leaderboard: %s\n\n", strings.ReplaceAll(niche, "_", " "))
	fmt.Fprintf(&b, "**Generated:** %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Total Apps Analyzed:** %d\n\n", len(rows))
	b.WriteString("## Risk Score Ranking\n\n")
	b.WriteString("Apps are ranked by Risk Score (descending). Higher scores indicate more volatility and potential issues.\n\n")
	b.WriteString("| Rank | App Name | Risk Score | Vol. Slope | Neg. Ratio (%) | Volume | Primary Pillar | Suspected Version |\n")
	b.WriteString("|------|----------|------------|------------|----------------|--------|----------------|-------------------|\n")
	for _, row := range rows {
		version := row.SuspectedVersion
		if version == "" {
			version = "None"
		}
		fmt.Fprintf(&b, "| %d | %s | %.2f | %.4f | %.1f%% | %d | %s | %s |\n",
			row.Rank, strings.ReplaceAll(row.App, "_", " "), row.RiskScore, row.Slope,
			row.NegativeRatio*100, row.TotalReviews, row.PrimaryPillar, version)
	}
	b.WriteString(methodologyAppendix)

	path := filepath.Join(reportsDir, "market_leaderboard.md")
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

// WriteMatrix saves the cross-app pillar matrix JSON.
func WriteMatrix(reportsDir string, matrix map[string]map[string]float64) (string, error) {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(reportsDir, "niche_matrix.json")
	data, err := json.MarshalIndent(matrix, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

const methodologyAppendix = `
## Interpretation

### Risk Scoring Methodology

**Pillars:** mutually exclusive, collectively exhaustive risk categories.

1. **Functional Risk:** technical issues affecting app operation
   - Categories: ` + "`critical`, `performance`, `privacy`" + `
2. **Economic Risk:** financial concerns and monetization issues
   - Categories: ` + "`scam_financial`, `subscription`, `ads`" + `
3. **Experience Risk:** usability and competitive positioning
   - Categories: ` + "`usability`, `competitor_mention`, `generic_pain`" + `

### Risk Score Calculation

**Formula:** ` + "`BaseScore x (1 + max(0, VolatilitySlope))`" + `

- **Base Score:** ` + "`(FunctionalDensity + EconomicDensity + ExperienceDensity) x 10.0`" + `
  - Density = sum of keyword weights of matching reviews / total reviews analyzed
- **Volatility Boost:** amplifies the score when the pain trend is worsening; an improving trend leaves the base score unchanged

### Column Definitions

- **Risk Score (0-100):** pillar-density composite with trend boost
- **Vol. Slope:** rate of change in pain-keyword reviews per week
- **Neg. Ratio (%):** share of reviews containing pain keywords
- **Volume:** reviews analyzed in the trailing window
- **Primary Pillar:** pillar with the highest density
- **Suspected Version:** version with an outsized share of pain reviews, if detected

### Risk Score Ranges
- **0-25:** Low Risk (Stable)
- **26-50:** Moderate Risk (Watch)
- **51-75:** High Risk (Concerning)
- **76-100:** Critical Risk (Urgent Action Needed)
`
