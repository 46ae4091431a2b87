package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SafeName converts an app name into a filesystem-safe token used for the
// per-app raw review files.
func SafeName(appName string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, appName)
}

// ReviewsPath is the on-disk location of one app's raw reviews.
func ReviewsPath(dataDir, appName string) string {
	return filepath.Join(dataDir, SafeName(appName)+"_reviews.json")
}

// SaveReviews writes raw reviews to the data dir so a run can be replayed
// offline without hitting the actor again.
func SaveReviews(dataDir, appName string, reviews []map[string]any) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	path := ReviewsPath(dataDir, appName)
	data, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

// LoadReviews reads a previously saved raw review file.
func LoadReviews(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reviews []map[string]any
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return reviews, nil
}
