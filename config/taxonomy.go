package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one keyword bucket of the pain taxonomy.
type Category struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Weight   float64  `json:"weight" yaml:"weight"`
}

// Taxonomy maps category names to weighted keyword sets. It is loaded once at
// startup and treated as read-only by every analysis stage.
type Taxonomy struct {
	Categories map[string]Category `json:"categories" yaml:"categories"`
}

// DefaultTaxonomy returns the baked-in nine-category keyword set. The
// category names line up with the fixed pillar mapping in the risk stage.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Categories: map[string]Category{
		"critical": {
			Weight: 10,
			Keywords: []string{
				"crash", "crashes", "crashed", "broken", "unusable",
				"won't open", "wont open", "doesn't work", "doesnt work",
				"freezes", "frozen", "data loss", "lost my", "error", "bug",
			},
		},
		"performance": {
			Weight: 6,
			Keywords: []string{
				"slow", "lag", "laggy", "battery drain", "drains battery",
				"heats up", "overheat", "memory", "takes forever", "loading",
			},
		},
		"privacy": {
			Weight: 8,
			Keywords: []string{
				"privacy", "tracking", "sells my data", "data collection",
				"permissions", "spyware", "surveillance", "personal data",
			},
		},
		"scam_financial": {
			Weight: 10,
			Keywords: []string{
				"scam", "fraud", "stole", "charged me", "unauthorized",
				"refund", "rip off", "ripoff", "money back", "overcharged",
			},
		},
		"subscription": {
			Weight: 7,
			Keywords: []string{
				"subscription", "paywall", "cancel subscription", "free trial",
				"auto renew", "auto-renew", "hidden fee", "hidden fees",
			},
		},
		"ads": {
			Weight: 5,
			Keywords: []string{
				"ads", "advertisement", "too many ads", "ad every",
				"pop up", "pop-up", "popups", "intrusive",
			},
		},
		"usability": {
			Weight: 4,
			Keywords: []string{
				"confusing", "hard to use", "clunky", "bad ui", "bad design",
				"can't find", "cant find", "unintuitive", "complicated",
			},
		},
		"competitor_mention": {
			Weight: 3,
			Keywords: []string{
				"switched to", "moved to", "better than", "alternative",
				"competitor", "instead of",
			},
		},
		"generic_pain": {
			Weight: 2,
			Keywords: []string{
				"disappointed", "frustrating", "annoying", "terrible",
				"awful", "worst", "hate", "useless", "waste of time",
			},
		},
	}}
}

// LoadTaxonomy reads a YAML/JSON taxonomy file. Missing file falls back to
// the defaults; a present but invalid file is an error.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTaxonomy(), nil
		}
		return Taxonomy{}, err
	}
	if len(data) == 0 {
		return Taxonomy{}, errors.New("empty taxonomy file")
	}
	var tax Taxonomy
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &tax); err != nil {
			return Taxonomy{}, err
		}
	} else {
		if err := yaml.Unmarshal(data, &tax); err != nil {
			return Taxonomy{}, err
		}
	}
	if err := tax.Validate(); err != nil {
		return Taxonomy{}, err
	}
	return tax, nil
}

// Validate checks taxonomy structure: at least one category, each with at
// least one keyword and a non-negative weight.
func (t Taxonomy) Validate() error {
	if len(t.Categories) == 0 {
		return errors.New("taxonomy must contain at least one category")
	}
	for name, cat := range t.Categories {
		if strings.TrimSpace(name) == "" {
			return errors.New("taxonomy category name must not be empty")
		}
		if len(cat.Keywords) == 0 {
			return fmt.Errorf("category %q has no keywords", name)
		}
		for _, kw := range cat.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("category %q contains an empty keyword", name)
			}
		}
		if cat.Weight < 0 {
			return fmt.Errorf("category %q has negative weight %v", name, cat.Weight)
		}
	}
	return nil
}
