package signal

import (
	"sort"
	"time"

	"reviewradar/internal/review"
)

// weekStart truncates a timestamp to the Monday of its calendar week, UTC.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// Slope fits an ordinary least-squares line through weekly pain-flagged
// review counts and returns its slope in reviews per week. Weeks are the
// distinct observed ones, indexed 0..n-1 in chronological order with no
// gap filling. Fewer than 2 dated pain records, or all of them in one
// week, yields 0.0 rather than an error.
func Slope(records []review.Record, painFlags []bool) float64 {
	counts := make(map[time.Time]float64)
	dated := 0
	for i, rec := range records {
		if i >= len(painFlags) || !painFlags[i] || rec.Date == nil {
			continue
		}
		counts[weekStart(*rec.Date)]++
		dated++
	}
	if dated < 2 || len(counts) < 2 {
		return 0.0
	}

	weeks := make([]time.Time, 0, len(counts))
	for wk := range counts {
		weeks = append(weeks, wk)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(weeks))
	for i, wk := range weeks {
		x := float64(i)
		y := counts[wk]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0.0
	}
	return (n*sumXY - sumX*sumY) / denom
}
