package fetch

import (
	"log"
	"strconv"
	"strings"

	"reviewradar/config"
)

// Keywords that keep a review regardless of length or star rating. These
// mirror the critical taxonomy category: a short "Scam!" is signal, not
// noise.
var criticalKeywords = []string{"scam", "crash", "fraud", "broken", "error", "bug"}

var ratingKeys = []string{"rating", "starRating", "stars", "score"}
var textKeys = []string{"text", "reviewText", "content", "body", "comment"}

// FilterReviews applies the thrifty pre-analysis filter on raw review
// objects: drop below the minimum star rating, drop too-short reviews
// unless they contain a critical keyword, and optionally drop generic
// 5-star praise while keeping ironic 5-stars that mention real defects.
func FilterReviews(reviews []map[string]any, cfg config.FilterConfig) []map[string]any {
	kept := make([]map[string]any, 0, len(reviews))
	dropped := 0
	for _, rev := range reviews {
		rating, hasRating := extractRating(rev)
		text := extractText(rev)
		critical := hasCriticalKeyword(text)

		// Missing rating: keep, the analyzer defaults it to neutral.
		if !hasRating {
			kept = append(kept, rev)
			continue
		}
		if rating < cfg.MinStarRating {
			dropped++
			continue
		}
		if len(strings.Fields(text)) < cfg.MinReviewWords && !critical {
			dropped++
			continue
		}
		if rating == 5 {
			switch {
			case cfg.MinStarRating == 5:
				// Caller wants only 5-stars; keep them all.
				kept = append(kept, rev)
			case cfg.DropGeneric5Star && cfg.MinStarRating >= 4:
				if critical {
					kept = append(kept, rev)
				} else {
					dropped++
				}
			default:
				kept = append(kept, rev)
			}
			continue
		}
		kept = append(kept, rev)
	}
	log.Printf("fetch: filtered reviews: %d kept, %d dropped (min_rating=%d, drop_5star=%v)",
		len(kept), dropped, cfg.MinStarRating, cfg.DropGeneric5Star)
	return kept
}

func extractRating(rev map[string]any) (int, bool) {
	for _, key := range ratingKeys {
		val, ok := rev[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case float64:
			r := int(v)
			if r >= 1 && r <= 5 {
				return r, true
			}
		case int:
			if v >= 1 && v <= 5 {
				return v, true
			}
		case string:
			if r, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && r >= 1 && r <= 5 {
				return r, true
			}
		}
	}
	return 0, false
}

func extractText(rev map[string]any) string {
	for _, key := range textKeys {
		if v, ok := rev[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func hasCriticalKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range criticalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
