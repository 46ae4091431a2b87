// Package review normalizes raw scraped review objects into a uniform
// Record shape the analysis stages consume.
package review

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one normalized review. Date is nil when the source value was
// missing or unparsable; such records still participate in text-only
// analysis but are excluded from any date-windowed view.
type Record struct {
	ID      string
	Date    *time.Time
	Score   int
	Title   string
	Text    string
	Version string
}

// Combined returns the title and body joined for keyword matching,
// lowercased by the caller when needed.
func (r Record) Combined() string {
	if r.Title == "" {
		return r.Text
	}
	return r.Title + " " + r.Text
}

// WordCount counts whitespace-separated tokens in the review body.
func (r Record) WordCount() int {
	return len(strings.Fields(r.Text))
}

// Alias probe order for raw review objects. First present key wins.
var (
	dateKeys  = []string{"date", "reviewDate", "createdAt", "updatedAt"}
	scoreKeys = []string{"score", "rating", "starRating", "stars"}
	textKeys  = []string{"text", "reviewText", "content", "body", "comment"}
	idKeys    = []string{"id", "reviewId", "review_id"}
)

const neutralScore = 3

// Normalize converts raw review maps into Records. Malformed fields fall
// back to defaults rather than dropping the record: an unparsable score
// becomes neutral (3), an unparsable date becomes nil.
func Normalize(raw []map[string]any) []Record {
	records := make([]Record, 0, len(raw))
	for i, obj := range raw {
		rec := Record{
			ID:      stringField(obj, idKeys...),
			Date:    parseDateField(obj),
			Score:   parseScoreField(obj),
			Title:   stringField(obj, "title"),
			Text:    stringField(obj, textKeys...),
			Version: stringField(obj, "version", "appVersion"),
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("review-%d", i)
		}
		records = append(records, rec)
	}
	return records
}

// WithinWindow returns records whose date falls within the last daysBack
// days of now. Records without a parsed date are excluded.
func WithinWindow(records []Record, now time.Time, daysBack int) []Record {
	cutoff := now.AddDate(0, 0, -daysBack)
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Date == nil {
			continue
		}
		if rec.Date.Before(cutoff) || rec.Date.After(now) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Dated returns only records with a parsed date.
func Dated(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Date != nil {
			out = append(out, rec)
		}
	}
	return out
}

func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		val, ok := obj[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10)
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateField(obj map[string]any) *time.Time {
	for _, key := range dateKeys {
		val, ok := obj[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					t = t.UTC()
					return &t
				}
			}
		case float64:
			// Unix seconds, allowing fractional values.
			sec, frac := math.Modf(v)
			t := time.Unix(int64(sec), int64(frac*1e9)).UTC()
			return &t
		case time.Time:
			t := v.UTC()
			return &t
		}
		// First present date key wins even if unparsable.
		return nil
	}
	return nil
}

func parseScoreField(obj map[string]any) int {
	for _, key := range scoreKeys {
		val, ok := obj[key]
		if !ok || val == nil {
			continue
		}
		var score int
		switch v := val.(type) {
		case float64:
			score = int(v)
		case int:
			score = v
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return neutralScore
			}
			score = int(parsed)
		default:
			return neutralScore
		}
		if score < 1 {
			score = 1
		}
		if score > 5 {
			score = 5
		}
		return score
	}
	return neutralScore
}
