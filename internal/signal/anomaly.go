package signal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"reviewradar/config"
	"reviewradar/internal/review"
)

// Domain vocabulary marking a review as high-signal regardless of length.
// Power users complain in infrastructure terms.
var highSignalVocab = []string{
	"latency", "vector", "workflow", "pipeline", "integration", "api",
	"batch", "export", "sync", "sync failed", "credits", "quota",
	"render", "4k", "resolution", "frame rate",
}

// WeeklyBucket is one week of the pain timeline. Event is empty for
// ordinary weeks.
type WeeklyBucket struct {
	WeekStart    time.Time `json:"-"`
	Week         string    `json:"week"`
	Total        int       `json:"total"`
	PainWeighted float64   `json:"pain_weighted_count"`
	Density      float64   `json:"density"`
	Anomalous    bool      `json:"anomalous"`
	Event        string    `json:"event,omitempty"`
}

// AnomalyDetector flags weeks whose pain density spikes past the trailing
// rolling mean plus two standard deviations.
type AnomalyDetector struct {
	cfg     config.AnomalyConfig
	matcher *ahocorasick.Matcher
}

func NewAnomalyDetector(cfg config.AnomalyConfig) *AnomalyDetector {
	return &AnomalyDetector{
		cfg:     cfg,
		matcher: ahocorasick.NewStringMatcher(highSignalVocab),
	}
}

// highSignal reports whether a review is a "whale": either long enough to
// be a considered writeup, or using domain vocabulary.
func (d *AnomalyDetector) highSignal(rec review.Record) bool {
	if rec.WordCount() > d.cfg.HighSignalWords {
		return true
	}
	return len(d.matcher.Match([]byte(strings.ToLower(rec.Combined())))) > 0
}

// painWeight is the record's contribution to the weekly weighted count:
// 0 for non-pain, 1 for ordinary pain, the whale multiplier for
// high-signal pain.
func (d *AnomalyDetector) painWeight(rec review.Record, pain bool) float64 {
	if !pain {
		return 0
	}
	if d.highSignal(rec) {
		return d.cfg.HighSignalWeight
	}
	return 1.0
}

// DetectTimeline buckets dated records into Monday-start weeks and flags
// density anomalies. Weeks below the configured minimum total are dropped
// as noise; fewer than two surviving weeks yields an empty timeline.
func (d *AnomalyDetector) DetectTimeline(records []review.Record, painFlags []bool) []WeeklyBucket {
	type acc struct {
		total    int
		weighted float64
	}
	weeks := make(map[time.Time]*acc)
	for i, rec := range records {
		if rec.Date == nil {
			continue
		}
		wk := weekStart(*rec.Date)
		a := weeks[wk]
		if a == nil {
			a = &acc{}
			weeks[wk] = a
		}
		a.total++
		pain := i < len(painFlags) && painFlags[i]
		a.weighted += d.painWeight(rec, pain)
	}

	starts := make([]time.Time, 0, len(weeks))
	for wk, a := range weeks {
		if a.total < d.cfg.MinReviewsPerWeek {
			continue
		}
		starts = append(starts, wk)
	}
	if len(starts) < 2 {
		return nil
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	buckets := make([]WeeklyBucket, len(starts))
	for i, wk := range starts {
		a := weeks[wk]
		buckets[i] = WeeklyBucket{
			WeekStart:    wk,
			Week:         wk.Format("2006-01-02"),
			Total:        a.total,
			PainWeighted: a.weighted,
			Density:      round4(a.weighted / float64(a.total)),
		}
	}

	// Baseline is the trailing window of up to 4 preceding weeks. The
	// current week stays out of its own baseline; otherwise a spike
	// inflates the very statistics meant to catch it. The window shrinks
	// near the series start so early anomalies are not lost to warm-up.
	for i := range buckets {
		lo := i - 4
		if lo < 0 {
			lo = 0
		}
		if lo == i {
			continue
		}
		mean, std := meanStd(buckets[lo:i])
		if buckets[i].Density > mean+2*std {
			buckets[i].Anomalous = true
			buckets[i].Event = d.eventLabel(records, buckets[i].WeekStart)
		}
	}
	return buckets
}

// meanStd computes mean and sample standard deviation of bucket densities.
// A single-element window has no spread; std is 0.
func meanStd(window []WeeklyBucket) (float64, float64) {
	n := float64(len(window))
	var sum float64
	for _, b := range window {
		sum += b.Density
	}
	mean := sum / n
	if len(window) < 2 {
		return mean, 0
	}
	var sq float64
	for _, b := range window {
		diff := b.Density - mean
		sq += diff * diff
	}
	return mean, math.Sqrt(sq / (n - 1))
}

// eventLabel correlates an anomalous week with the most frequent non-empty
// app version among its records. Ties go to the lexicographically smaller
// version so reruns produce the same label.
func (d *AnomalyDetector) eventLabel(records []review.Record, wk time.Time) string {
	end := wk.AddDate(0, 0, 7)
	counts := make(map[string]int)
	for _, rec := range records {
		if rec.Date == nil || rec.Version == "" {
			continue
		}
		if rec.Date.Before(wk) || !rec.Date.Before(end) {
			continue
		}
		counts[rec.Version]++
	}
	var top string
	var best int
	for version, count := range counts {
		if count > best || (count == best && best > 0 && version < top) {
			top, best = version, count
		}
	}
	if top == "" {
		return "Critical Spike"
	}
	return fmt.Sprintf("The Version %s Spike", top)
}
