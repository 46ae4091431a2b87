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

// Target is one app under analysis.
type Target struct {
	Name          string  `json:"name" yaml:"name"`
	URL           string  `json:"url" yaml:"url"`
	Price         float64 `json:"price" yaml:"price"`
	NicheCategory string  `json:"niche_category" yaml:"niche_category"`
}

// TargetParams are fetch parameters shared by every target in a run.
type TargetParams struct {
	DaysBack   int `json:"days_back" yaml:"days_back"`
	MaxReviews int `json:"max_reviews" yaml:"max_reviews"`
}

// Targets is the parsed targets file: the app list plus shared parameters.
type Targets struct {
	NicheName     string       `json:"niche_name" yaml:"niche_name"`
	NicheCategory string       `json:"niche_category" yaml:"niche_category"`
	Apps          []Target     `json:"apps" yaml:"apps"`
	Params        TargetParams `json:"params" yaml:"params"`
}

// LoadTargets reads and validates the targets file. Unlike settings, a
// missing or invalid targets file is always fatal: there is nothing to
// analyze without it.
func LoadTargets(path string) (Targets, error) {
	var t Targets
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("targets file: %w", err)
	}
	if len(data) == 0 {
		return t, errors.New("targets file is empty")
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &t); err != nil {
			return t, fmt.Errorf("targets file %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &t); err != nil {
			return t, fmt.Errorf("targets file %s: %w", path, err)
		}
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate enforces the targets file contract.
func (t Targets) Validate() error {
	if len(t.Apps) == 0 {
		return errors.New("targets must contain at least one app")
	}
	for i, app := range t.Apps {
		if strings.TrimSpace(app.Name) == "" {
			return fmt.Errorf("app %d is missing a name", i)
		}
		if strings.TrimSpace(app.URL) == "" {
			return fmt.Errorf("app %q is missing a url", app.Name)
		}
	}
	if t.Params.DaysBack <= 0 {
		return errors.New("params.days_back must be positive")
	}
	if t.Params.MaxReviews <= 0 {
		return errors.New("params.max_reviews must be positive")
	}
	return nil
}

// Niche returns the run's niche directory name: niche_name with spaces
// replaced by underscores, defaulting to "default".
func (t Targets) Niche() string {
	name := strings.TrimSpace(strings.ReplaceAll(t.NicheName, " ", "_"))
	if name == "" {
		return "default"
	}
	return name
}

// CompetitorNames returns every app name with spaces replaced by
// underscores, the form the migration detector matches against.
func (t Targets) CompetitorNames() []string {
	names := make([]string, 0, len(t.Apps))
	for _, app := range t.Apps {
		names = append(names, strings.ReplaceAll(app.Name, " ", "_"))
	}
	return names
}
