package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for an analysis run. Values come from a
// YAML/JSON settings file overlaid with environment variables.
type Config struct {
	DataDir       string
	ReportsDir    string
	DBPath        string
	DaysBack      int
	MaxReviews    int
	WorkerCount   int
	QueueSize     int
	JobTimeoutSec int
	EnableWatcher bool
	StrictConfig  bool
	Filters       FilterConfig
	Anomaly       AnomalyConfig
	Cluster       ClusterConfig
	Fetch         FetchConfig
	LLM           LLMConfig
}

// FilterConfig controls the thrifty pre-analysis review filter.
type FilterConfig struct {
	MinStarRating    int
	MinReviewWords   int
	DropGeneric5Star bool
	ForceFetchCount  int
	Country          string
}

// AnomalyConfig tunes weekly spike detection.
type AnomalyConfig struct {
	MinReviewsPerWeek int
	HighSignalWords   int
	HighSignalWeight  float64
}

// ClusterConfig tunes phrase mining over negative reviews.
type ClusterConfig struct {
	TopPhrases  int
	MinDocCount int
}

// FetchConfig describes the review-scraper actor endpoint.
type FetchConfig struct {
	BaseURL        string
	ActorID        string
	MaxRetries     int
	RequestsPerSec float64
	TimeoutSec     int
}

// LLMConfig describes the optional narrative summarizer.
type LLMConfig struct {
	Enabled       bool
	Model         string
	BaseURL       string
	PromptVersion string
}

type fileConfig struct {
	DataDir       string            `json:"data_dir" yaml:"data_dir"`
	ReportsDir    string            `json:"reports_dir" yaml:"reports_dir"`
	DBPath        string            `json:"db_path" yaml:"db_path"`
	DaysBack      *int              `json:"days_back" yaml:"days_back"`
	MaxReviews    *int              `json:"max_reviews" yaml:"max_reviews"`
	WorkerCount   *int              `json:"worker_count" yaml:"worker_count"`
	QueueSize     *int              `json:"queue_size" yaml:"queue_size"`
	JobTimeoutSec *int              `json:"job_timeout_sec" yaml:"job_timeout_sec"`
	Filters       filterFileConfig  `json:"filters" yaml:"filters"`
	Anomaly       anomalyFileConfig `json:"anomaly" yaml:"anomaly"`
	Cluster       clusterFileConfig `json:"cluster" yaml:"cluster"`
	Fetch         fetchFileConfig   `json:"fetch" yaml:"fetch"`
	LLM           llmFileConfig     `json:"llm" yaml:"llm"`
}

type filterFileConfig struct {
	MinStarRating    *int   `json:"min_star_rating" yaml:"min_star_rating"`
	MinReviewWords   *int   `json:"min_review_length_words" yaml:"min_review_length_words"`
	DropGeneric5Star *bool  `json:"drop_generic_5_star" yaml:"drop_generic_5_star"`
	ForceFetchCount  *int   `json:"force_fetch_count" yaml:"force_fetch_count"`
	Country          string `json:"country" yaml:"country"`
}

type anomalyFileConfig struct {
	MinReviewsPerWeek *int     `json:"min_reviews_per_week" yaml:"min_reviews_per_week"`
	HighSignalWords   *int     `json:"high_signal_words" yaml:"high_signal_words"`
	HighSignalWeight  *float64 `json:"high_signal_weight" yaml:"high_signal_weight"`
}

type clusterFileConfig struct {
	TopPhrases  *int `json:"top_phrases" yaml:"top_phrases"`
	MinDocCount *int `json:"min_doc_count" yaml:"min_doc_count"`
}

type fetchFileConfig struct {
	BaseURL        string   `json:"base_url" yaml:"base_url"`
	ActorID        string   `json:"actor_id" yaml:"actor_id"`
	MaxRetries     *int     `json:"max_retries" yaml:"max_retries"`
	RequestsPerSec *float64 `json:"requests_per_sec" yaml:"requests_per_sec"`
	TimeoutSec     *int     `json:"timeout_sec" yaml:"timeout_sec"`
}

type llmFileConfig struct {
	Enabled       *bool  `json:"enabled" yaml:"enabled"`
	Model         string `json:"model" yaml:"model"`
	BaseURL       string `json:"base_url" yaml:"base_url"`
	PromptVersion string `json:"prompt_version" yaml:"prompt_version"`
}

const (
	defaultDataDir       = "data"
	defaultReportsDir    = "reports"
	defaultDBFile        = "reviewradar.db"
	defaultDaysBack      = 90
	defaultMaxReviews    = 500
	defaultWorkerCount   = 4
	minQueueSize         = 1
	defaultQueueSize     = 64
	defaultJobTimeoutSec = 300
)

func defaults() Config {
	return Config{
		DataDir:       defaultDataDir,
		ReportsDir:    defaultReportsDir,
		DaysBack:      defaultDaysBack,
		MaxReviews:    defaultMaxReviews,
		WorkerCount:   defaultWorkerCount,
		QueueSize:     defaultQueueSize,
		JobTimeoutSec: defaultJobTimeoutSec,
		Filters: FilterConfig{
			MinStarRating:    1,
			MinReviewWords:   3,
			DropGeneric5Star: true,
			ForceFetchCount:  10,
			Country:          "us",
		},
		Anomaly: AnomalyConfig{
			MinReviewsPerWeek: 5,
			HighSignalWords:   40,
			HighSignalWeight:  3.0,
		},
		Cluster: ClusterConfig{
			TopPhrases:  5,
			MinDocCount: 2,
		},
		Fetch: FetchConfig{
			BaseURL:        "https://api.apify.com",
			ActorID:        "agents~appstore-reviews",
			MaxRetries:     3,
			RequestsPerSec: 2,
			TimeoutSec:     120,
		},
		LLM: LLMConfig{
			Enabled:       false,
			Model:         "gpt-4o-mini",
			BaseURL:       "https://api.openai.com",
			PromptVersion: "v1",
		},
	}
}

// Load reads the settings file and applies environment overrides. Structural
// problems are fatal when STRICT_CONFIG is set, otherwise defaults win.
func Load() (Config, error) {
	cfg := defaults()
	cfg.StrictConfig = parseBoolEnv("STRICT_CONFIG")
	cfg.EnableWatcher = parseBoolEnv("ENABLE_WATCHER")

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "settings.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
	}
	cfg = applyFileConfig(cfg, fileCfg)

	cfg.DataDir = firstNonEmpty(os.Getenv("DATA_DIR"), cfg.DataDir)
	cfg.ReportsDir = firstNonEmpty(os.Getenv("REPORTS_DIR"), cfg.ReportsDir)
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	} else if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, defaultDBFile)
	}

	if v, ok, err := parseIntEnv("WORKER_COUNT"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid WORKER_COUNT: %w", err)
		}
		log.Printf("invalid WORKER_COUNT: %v (using %d)", err, cfg.WorkerCount)
	} else if ok && v > 0 {
		cfg.WorkerCount = v
	}
	if v, ok, err := parseIntEnv("QUEUE_SIZE"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid QUEUE_SIZE: %w", err)
		}
		log.Printf("invalid QUEUE_SIZE: %v (using %d)", err, cfg.QueueSize)
	} else if ok {
		if v < minQueueSize {
			log.Printf("QUEUE_SIZE raised to minimum %d (was %d)", minQueueSize, v)
			v = minQueueSize
		}
		cfg.QueueSize = v
	}
	if cfg.QueueSize < cfg.WorkerCount {
		cfg.QueueSize = cfg.WorkerCount
	}
	if v, ok, err := parseIntEnv("DAYS_BACK"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid DAYS_BACK: %w", err)
		}
		log.Printf("invalid DAYS_BACK: %v (using %d)", err, cfg.DaysBack)
	} else if ok && v > 0 {
		cfg.DaysBack = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_ENABLED")); v != "" {
		cfg.LLM.Enabled = parseBoolEnv("LLM_ENABLED")
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	cfg.LLM.BaseURL = firstNonEmpty(
		os.Getenv("LLM_BASE_URL"),
		os.Getenv("OPENAI_BASE_URL"),
		cfg.LLM.BaseURL,
	)
	cfg.Fetch.BaseURL = firstNonEmpty(os.Getenv("ACTOR_BASE_URL"), cfg.Fetch.BaseURL)

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	// JSON parses as YAML, but decode natively when the extension says so
	// for better error positions.
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFileConfig(base Config, file fileConfig) Config {
	base.DataDir = firstNonEmpty(file.DataDir, base.DataDir)
	base.ReportsDir = firstNonEmpty(file.ReportsDir, base.ReportsDir)
	base.DBPath = firstNonEmpty(file.DBPath, base.DBPath)
	if file.DaysBack != nil && *file.DaysBack > 0 {
		base.DaysBack = *file.DaysBack
	}
	if file.MaxReviews != nil && *file.MaxReviews > 0 {
		base.MaxReviews = *file.MaxReviews
	}
	if file.WorkerCount != nil && *file.WorkerCount > 0 {
		base.WorkerCount = *file.WorkerCount
	}
	if file.QueueSize != nil && *file.QueueSize >= minQueueSize {
		base.QueueSize = *file.QueueSize
	}
	if file.JobTimeoutSec != nil && *file.JobTimeoutSec > 0 {
		base.JobTimeoutSec = *file.JobTimeoutSec
	}
	if file.Filters.MinStarRating != nil {
		base.Filters.MinStarRating = *file.Filters.MinStarRating
	}
	if file.Filters.MinReviewWords != nil && *file.Filters.MinReviewWords >= 0 {
		base.Filters.MinReviewWords = *file.Filters.MinReviewWords
	}
	if file.Filters.DropGeneric5Star != nil {
		base.Filters.DropGeneric5Star = *file.Filters.DropGeneric5Star
	}
	if file.Filters.ForceFetchCount != nil && *file.Filters.ForceFetchCount > 0 {
		base.Filters.ForceFetchCount = *file.Filters.ForceFetchCount
	}
	base.Filters.Country = firstNonEmpty(file.Filters.Country, base.Filters.Country)
	if file.Anomaly.MinReviewsPerWeek != nil && *file.Anomaly.MinReviewsPerWeek > 0 {
		base.Anomaly.MinReviewsPerWeek = *file.Anomaly.MinReviewsPerWeek
	}
	if file.Anomaly.HighSignalWords != nil && *file.Anomaly.HighSignalWords > 0 {
		base.Anomaly.HighSignalWords = *file.Anomaly.HighSignalWords
	}
	if file.Anomaly.HighSignalWeight != nil && *file.Anomaly.HighSignalWeight > 1 {
		base.Anomaly.HighSignalWeight = *file.Anomaly.HighSignalWeight
	}
	if file.Cluster.TopPhrases != nil && *file.Cluster.TopPhrases > 0 {
		base.Cluster.TopPhrases = *file.Cluster.TopPhrases
	}
	if file.Cluster.MinDocCount != nil && *file.Cluster.MinDocCount > 0 {
		base.Cluster.MinDocCount = *file.Cluster.MinDocCount
	}
	base.Fetch.BaseURL = firstNonEmpty(file.Fetch.BaseURL, base.Fetch.BaseURL)
	base.Fetch.ActorID = firstNonEmpty(file.Fetch.ActorID, base.Fetch.ActorID)
	if file.Fetch.MaxRetries != nil && *file.Fetch.MaxRetries > 0 {
		base.Fetch.MaxRetries = *file.Fetch.MaxRetries
	}
	if file.Fetch.RequestsPerSec != nil && *file.Fetch.RequestsPerSec > 0 {
		base.Fetch.RequestsPerSec = *file.Fetch.RequestsPerSec
	}
	if file.Fetch.TimeoutSec != nil && *file.Fetch.TimeoutSec > 0 {
		base.Fetch.TimeoutSec = *file.Fetch.TimeoutSec
	}
	if file.LLM.Enabled != nil {
		base.LLM.Enabled = *file.LLM.Enabled
	}
	base.LLM.Model = firstNonEmpty(file.LLM.Model, base.LLM.Model)
	base.LLM.BaseURL = firstNonEmpty(file.LLM.BaseURL, base.LLM.BaseURL)
	base.LLM.PromptVersion = firstNonEmpty(file.LLM.PromptVersion, base.LLM.PromptVersion)
	return base
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if strings.TrimSpace(cfg.ReportsDir) == "" {
		return errors.New("reports_dir is required")
	}
	if cfg.DaysBack <= 0 {
		return errors.New("days_back must be positive")
	}
	if cfg.Anomaly.MinReviewsPerWeek <= 0 {
		return errors.New("anomaly min_reviews_per_week must be positive")
	}
	if cfg.Anomaly.HighSignalWeight <= 1 {
		return errors.New("anomaly high_signal_weight must be greater than 1")
	}
	if cfg.Filters.MinStarRating < 1 || cfg.Filters.MinStarRating > 5 {
		return fmt.Errorf("filters min_star_rating must be in [1,5] (got %d)", cfg.Filters.MinStarRating)
	}
	if cfg.Fetch.MaxRetries <= 0 {
		return errors.New("fetch max_retries must be positive")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}
