package signal

import (
	"sort"
	"strings"
	"time"

	"reviewradar/config"
	"reviewradar/internal/review"
)

// Metrics are the headline numbers for one app.
type Metrics struct {
	TotalReviews    int     `json:"total_reviews_90d"`
	NegativeRatio   float64 `json:"negative_ratio"`
	VolatilitySlope float64 `json:"volatility_slope"`
	RiskScore       float64 `json:"risk_score"`
}

// PainCategory is one taxonomy category with its match count and weight.
type PainCategory struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Weight   float64 `json:"weight"`
}

// Signals holds the derived indicators beyond the headline metrics.
type Signals struct {
	BrokenUpdateDetected bool               `json:"broken_update_detected"`
	SuspectedVersion     string             `json:"suspected_version,omitempty"`
	TopPainCategories    []PainCategory     `json:"top_pain_categories"`
	PillarDensities      map[string]float64 `json:"pillar_densities"`
	PrimaryPillar        string             `json:"primary_pillar"`
}

// Analysis is the per-app result consumed by the leaderboard, the store,
// and report rendering.
type Analysis struct {
	AppName      string   `json:"app_name"`
	AnalysisDate string   `json:"analysis_date"`
	Metrics      Metrics  `json:"metrics"`
	Signals      Signals  `json:"signals"`
	Evidence     []string `json:"evidence"`
}

// Intelligence is the forensic deep-dive for one app: the weekly pain
// timeline, mined complaint clusters, and competitor churn edges.
type Intelligence struct {
	Timeline  []WeeklyBucket  `json:"timeline"`
	Clusters  []Phrase        `json:"clusters"`
	Migration []MigrationEdge `json:"migration"`
}

// Analyzer runs the full per-app pipeline. It is safe for concurrent use
// across apps: all fields are read-only after construction.
type Analyzer struct {
	classifier *Classifier
	anomaly    *AnomalyDetector
	cluster    config.ClusterConfig
	daysBack   int
}

func NewAnalyzer(tax config.Taxonomy, cfg config.Config) *Analyzer {
	return &Analyzer{
		classifier: NewClassifier(tax),
		anomaly:    NewAnomalyDetector(cfg.Anomaly),
		cluster:    cfg.Cluster,
		daysBack:   cfg.DaysBack,
	}
}

const (
	evidenceLimit    = 5
	evidenceMaxChars = 200
	topCategoryLimit = 5
	// A version owning more than this share of pain reviews marks a
	// broken update.
	brokenUpdateShare = 0.3
)

// Analyze computes the headline analysis for one app over the trailing
// date window ending at now.
func (a *Analyzer) Analyze(appName string, records []review.Record, now time.Time) Analysis {
	windowed := review.WithinWindow(records, now, a.daysBack)
	result := Analysis{
		AppName:      appName,
		AnalysisDate: now.UTC().Format("2006-01-02"),
		Evidence:     []string{},
		Signals: Signals{
			TopPainCategories: []PainCategory{},
			PillarDensities: map[string]float64{
				PillarFunctional: 0,
				PillarEconomic:   0,
				PillarExperience: 0,
			},
			PrimaryPillar: PillarNone,
		},
	}
	if len(windowed) == 0 {
		return result
	}

	cls := a.classifier.Classify(windowed)
	total := len(windowed)
	slope := Slope(windowed, cls.PainFlags)
	risk := ScoreRisk(cls.CategoryCounts, a.classifier.Weight, total, slope)

	result.Metrics = Metrics{
		TotalReviews:    total,
		NegativeRatio:   round3(float64(cls.NegativeCount) / float64(total)),
		VolatilitySlope: round4(slope),
		RiskScore:       risk.Score,
	}
	result.Signals.PillarDensities = map[string]float64{
		PillarFunctional: round4(risk.PillarDensities[PillarFunctional]),
		PillarEconomic:   round4(risk.PillarDensities[PillarEconomic]),
		PillarExperience: round4(risk.PillarDensities[PillarExperience]),
	}
	result.Signals.PrimaryPillar = risk.PrimaryPillar
	result.Signals.TopPainCategories = a.topCategories(cls.CategoryCounts)
	result.Signals.BrokenUpdateDetected, result.Signals.SuspectedVersion =
		detectBrokenUpdate(windowed, cls.PainFlags, cls.NegativeCount)
	result.Evidence = collectEvidence(windowed, cls.PainFlags)
	return result
}

// Forensic runs timeline, cluster, and migration analysis over the full
// record set. The app itself is excluded from the competitor list.
func (a *Analyzer) Forensic(appName string, records []review.Record, competitors []string) Intelligence {
	intel := Intelligence{
		Timeline:  []WeeklyBucket{},
		Clusters:  []Phrase{},
		Migration: []MigrationEdge{},
	}
	if len(records) == 0 {
		return intel
	}

	cls := a.classifier.Classify(records)
	if timeline := a.anomaly.DetectTimeline(records, cls.PainFlags); timeline != nil {
		intel.Timeline = timeline
	}

	var negativeTexts []string
	allTexts := make([]string, 0, len(records))
	for _, rec := range records {
		allTexts = append(allTexts, rec.Text)
		if rec.Score <= 2 {
			negativeTexts = append(negativeTexts, rec.Text)
		}
	}
	miner := NewClusterMiner(appName, a.cluster)
	if clusters := miner.Mine(negativeTexts); clusters != nil {
		intel.Clusters = clusters
	}

	self := strings.ToLower(strings.ReplaceAll(appName, " ", "_"))
	others := make([]string, 0, len(competitors))
	for _, comp := range competitors {
		if strings.ToLower(comp) == self {
			continue
		}
		others = append(others, comp)
	}
	if edges := NewMigrationDetector(others).Detect(allTexts); edges != nil {
		intel.Migration = edges
	}
	return intel
}

// topCategories orders matched categories by impact (count times weight).
func (a *Analyzer) topCategories(counts map[string]int) []PainCategory {
	cats := make([]PainCategory, 0, len(counts))
	for _, name := range a.classifier.Categories() {
		if counts[name] > 0 {
			cats = append(cats, PainCategory{
				Category: name,
				Count:    counts[name],
				Weight:   a.classifier.Weight(name),
			})
		}
	}
	sort.SliceStable(cats, func(i, j int) bool {
		return float64(cats[i].Count)*cats[i].Weight > float64(cats[j].Count)*cats[j].Weight
	})
	if len(cats) > topCategoryLimit {
		cats = cats[:topCategoryLimit]
	}
	return cats
}

// detectBrokenUpdate flags a version that owns an outsized share of
// pain-flagged reviews.
func detectBrokenUpdate(records []review.Record, painFlags []bool, negativeCount int) (bool, string) {
	if negativeCount == 0 {
		return false, ""
	}
	counts := make(map[string]int)
	for i, rec := range records {
		if painFlags[i] && rec.Version != "" {
			counts[rec.Version]++
		}
	}
	var top string
	var best int
	for version, count := range counts {
		if count > best || (count == best && best > 0 && version < top) {
			top, best = version, count
		}
	}
	if top != "" && float64(best) > float64(negativeCount)*brokenUpdateShare {
		return true, top
	}
	return false, ""
}

// collectEvidence picks the longest pain-flagged texts as quotable proof,
// truncated for report display.
func collectEvidence(records []review.Record, painFlags []bool) []string {
	type candidate struct {
		text string
		pos  int
	}
	var cands []candidate
	for i, rec := range records {
		if painFlags[i] && rec.Text != "" {
			cands = append(cands, candidate{text: rec.Text, pos: i})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return len(cands[i].text) > len(cands[j].text)
	})
	if len(cands) > evidenceLimit {
		cands = cands[:evidenceLimit]
	}
	evidence := make([]string, 0, len(cands))
	for _, c := range cands {
		evidence = append(evidence, truncateRunes(c.text, evidenceMaxChars))
	}
	return evidence
}

// truncateRunes cuts on a rune boundary so multi-byte text stays valid
// UTF-8 in the JSON output.
func truncateRunes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
