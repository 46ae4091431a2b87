package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"reviewradar/config"
	"reviewradar/internal/fetch"
	"reviewradar/internal/leaderboard"
	"reviewradar/internal/llm"
	"reviewradar/internal/report"
	"reviewradar/internal/review"
	"reviewradar/internal/signal"
	"reviewradar/internal/store"
	"reviewradar/internal/watch"
	"reviewradar/metrics"
	"reviewradar/queue"
)

func main() {
	configPath := flag.String("config", "", "settings file (overrides CONFIG_PATH)")
	targetsPath := flag.String("targets", filepath.Join("config", "targets.json"), "targets file: niche and app list")
	keywordsPath := flag.String("keywords", "", "pain keyword taxonomy file (defaults baked in)")
	smokeTest := flag.Bool("smoke-test", false, "fetch a handful of reviews for the first target and exit")
	offline := flag.Bool("offline", false, "analyze saved review snapshots instead of calling the actor")
	reportOnly := flag.Bool("report-only", false, "rebuild reports from stored analyses without fetching or re-analyzing")
	flag.Parse()

	config.LoadDotEnv(".env")
	if *configPath != "" {
		os.Setenv("CONFIG_PATH", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tax, err := config.LoadTaxonomy(*keywordsPath)
	if err != nil {
		log.Fatalf("taxonomy: %v", err)
	}
	targets, err := config.LoadTargets(*targetsPath)
	if err != nil {
		log.Fatalf("targets: %v", err)
	}
	if targets.Params.DaysBack > 0 {
		cfg.DaysBack = targets.Params.DaysBack
	}
	if targets.Params.MaxReviews > 0 {
		cfg.MaxReviews = targets.Params.MaxReviews
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if *reportOnly {
		if err := regenerateReports(ctx, cfg, targets.Niche()); err != nil {
			log.Fatalf("report-only: %v", err)
		}
		return
	}

	if err := run(ctx, cfg, tax, targets, *smokeTest, *offline); err != nil {
		log.Fatalf("run: %v", err)
	}
}

// regenerateReports rewrites the per-app and market reports for a niche
// from the stored snapshots. No fetching, no re-analysis; reports built
// this way omit the analyst summary.
func regenerateReports(ctx context.Context, cfg config.Config, niche string) error {
	reportsDir := filepath.Join(cfg.ReportsDir, niche)
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", reportsDir, err)
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	analyses, err := db.ListAnalyses(ctx, niche)
	if err != nil {
		return fmt.Errorf("list analyses: %w", err)
	}
	if len(analyses) == 0 {
		return fmt.Errorf("no stored analyses for niche %s", niche)
	}
	for _, a := range analyses {
		intel, err := db.GetIntelligence(ctx, niche, a.AppName)
		if err != nil {
			return fmt.Errorf("load intelligence for %s: %w", a.AppName, err)
		}
		if intel == nil {
			intel = &signal.Intelligence{
				Timeline:  []signal.WeeklyBucket{},
				Clusters:  []signal.Phrase{},
				Migration: []signal.MigrationEdge{},
			}
		}
		if _, err := report.WriteAppReport(reportsDir, a, *intel, nil); err != nil {
			return fmt.Errorf("write report for %s: %w", a.AppName, err)
		}
	}
	if _, err := report.WriteLeaderboard(reportsDir, niche, leaderboard.Rank(analyses), time.Now().UTC()); err != nil {
		return fmt.Errorf("write leaderboard: %w", err)
	}
	if _, err := report.WriteMatrix(reportsDir, leaderboard.Matrix(analyses)); err != nil {
		return fmt.Errorf("write matrix: %w", err)
	}
	log.Printf("regenerated %d app reports for niche %s", len(analyses), niche)
	return nil
}

func run(ctx context.Context, cfg config.Config, tax config.Taxonomy, targets config.Targets, smokeTest, offline bool) error {
	niche := targets.Niche()
	dataDir := filepath.Join(cfg.DataDir, niche)
	reportsDir := filepath.Join(cfg.ReportsDir, niche)
	for _, dir := range []string{dataDir, reportsDir, filepath.Dir(cfg.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Health(ctx); err != nil {
		return fmt.Errorf("store health: %w", err)
	}
	if last, err := db.LastRun(ctx, niche); err != nil {
		log.Printf("last run lookup: %v", err)
	} else if last != nil {
		log.Printf("last run niche=%s started=%s failed=%d/%d",
			niche, last.StartedAt.Format(time.RFC3339), last.AppsFailed, last.AppsTotal)
	}

	m := metrics.New()
	analyzer := signal.NewAnalyzer(tax, cfg)
	client := fetch.NewClient(cfg.Fetch, cfg.Filters.Country, os.Getenv("APIFY_TOKEN"))
	client.OnRetry = m.RecordFetchRetry

	var narrator *llm.Client
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		narrator = llm.NewClient(cfg.LLM, key)
	} else {
		log.Println("OPENAI_API_KEY not set, reports will omit the analyst summary")
	}

	maxItems := cfg.MaxReviews
	apps := targets.Apps
	if smokeTest {
		maxItems = cfg.Filters.ForceFetchCount
		apps = apps[:1]
		log.Printf("smoke test: fetching up to %d reviews for %s", maxItems, apps[0].Name)
	}

	runID, err := db.StartRun(ctx, niche, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	p := pipeline{
		cfg:         cfg,
		analyzer:    analyzer,
		client:      client,
		narrator:    narrator,
		db:          db,
		metrics:     m,
		niche:       niche,
		dataDir:     dataDir,
		reportsDir:  reportsDir,
		competitors: targets.CompetitorNames(),
		maxItems:    maxItems,
	}

	q := queue.New(cfg.QueueSize, cfg.WorkerCount, time.Duration(cfg.JobTimeoutSec)*time.Second)
	q.Start(ctx)

	var wg sync.WaitGroup
	for _, app := range apps {
		wg.Add(1)
		job := queue.Job{
			App:   app.Name,
			Niche: niche,
			Work: func(jobCtx context.Context) error {
				return p.processApp(jobCtx, app, offline)
			},
			OnFinish: func(err error) {
				defer wg.Done()
				m.RecordApp(err)
				if err != nil {
					p.recordFailure(app.Name, err)
				}
			},
		}
		enqueued, _ := q.EnqueueWithRetry(ctx, job, 5*time.Minute, time.Second)
		if !enqueued {
			wg.Done()
			m.RecordApp(fmt.Errorf("queue full"))
			p.recordFailure(app.Name, fmt.Errorf("analysis queue full"))
		}
		stats := q.Stats()
		m.UpdateQueue(stats.Length, stats.Capacity, stats.WorkerCount)
	}
	wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	q.Stop(stopCtx)
	cancel()

	failures := p.failureList()
	if err := db.FinishRun(ctx, runID, len(apps), failures, time.Now().UTC()); err != nil {
		log.Printf("finish run: %v", err)
	}

	// The leaderboard covers the whole niche, not just this batch: stored
	// analyses keep previously scored apps ranked across reruns.
	analyses, err := db.ListAnalyses(ctx, niche)
	if err != nil {
		log.Printf("list analyses: %v (ranking this run only)", err)
		analyses = p.analysisList()
	}
	if len(analyses) > 0 {
		rows := leaderboard.Rank(analyses)
		if path, err := report.WriteLeaderboard(reportsDir, niche, rows, time.Now().UTC()); err != nil {
			log.Printf("leaderboard: %v", err)
		} else {
			log.Printf("leaderboard written to %s", path)
		}
		if _, err := report.WriteMatrix(reportsDir, leaderboard.Matrix(analyses)); err != nil {
			log.Printf("matrix: %v", err)
		}
	}

	snap := m.Snapshot()
	log.Printf("run complete niche=%s analyzed=%d failed=%d reviews_fetched=%d reviews_kept=%d fetch_retries=%d",
		niche, snap.AppsAnalyzed, snap.AppsFailed, snap.ReviewsFetched, snap.ReviewsKept, snap.FetchRetries)
	for _, f := range failures {
		log.Printf("failed: %s", f)
	}

	if cfg.EnableWatcher && !smokeTest {
		if err := p.watchLoop(ctx, targets.Apps); err != nil {
			return err
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d apps failed", len(failures), len(apps))
	}
	return nil
}

// pipeline carries the per-run collaborators shared by every app job.
type pipeline struct {
	cfg         config.Config
	analyzer    *signal.Analyzer
	client      *fetch.Client
	narrator    *llm.Client
	db          *store.Store
	metrics     *metrics.Metrics
	niche       string
	dataDir     string
	reportsDir  string
	competitors []string
	maxItems    int

	mu       sync.Mutex
	analyses []signal.Analysis
	failures []string
}

// processApp runs the full fetch -> filter -> analyze -> persist -> report
// chain for one app. Best-effort steps (LLM narrative, report writing) log
// and degrade; everything before persistence is fatal for this app only.
func (p *pipeline) processApp(ctx context.Context, app config.Target, offline bool) error {
	raw, err := p.loadReviews(ctx, app, offline)
	if err != nil {
		return err
	}
	filtered := fetch.FilterReviews(raw, p.cfg.Filters)
	p.metrics.RecordFetch(len(raw), len(filtered))
	log.Printf("app=%s fetched=%d kept=%d", app.Name, len(raw), len(filtered))
	if !offline {
		if _, err := fetch.SaveReviews(p.dataDir, app.Name, filtered); err != nil {
			return fmt.Errorf("save reviews: %w", err)
		}
	}

	now := time.Now().UTC()
	records := review.Normalize(filtered)
	analysis := p.analyzer.Analyze(app.Name, records, now)
	intel := p.analyzer.Forensic(app.Name, records, p.competitors)

	if err := p.db.SaveAnalysis(ctx, p.niche, analysis, now); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	if err := p.db.SaveIntelligence(ctx, p.niche, app.Name, intel, now); err != nil {
		return fmt.Errorf("save intelligence: %w", err)
	}
	if _, err := report.WriteAnalysis(p.dataDir, analysis); err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}
	if _, err := report.WriteIntelligence(p.reportsDir, app.Name, intel); err != nil {
		return fmt.Errorf("write intelligence: %w", err)
	}

	var insight *llm.Insight
	if p.narrator != nil {
		got, err := p.narrator.Summarize(ctx, analysis, intel)
		if err != nil {
			log.Printf("app=%s llm summary failed: %v", app.Name, err)
		} else {
			insight = &got
		}
	}
	if _, err := report.WriteAppReport(p.reportsDir, analysis, intel, insight); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	p.mu.Lock()
	p.analyses = append(p.analyses, analysis)
	p.mu.Unlock()
	return nil
}

func (p *pipeline) loadReviews(ctx context.Context, app config.Target, offline bool) ([]map[string]any, error) {
	if offline {
		path := fetch.ReviewsPath(p.dataDir, app.Name)
		raw, err := fetch.LoadReviews(path)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", path, err)
		}
		return raw, nil
	}
	raw, err := p.client.FetchReviews(ctx, app.URL, p.maxItems)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews: %w", err)
	}
	return raw, nil
}

func (p *pipeline) recordFailure(app string, err error) {
	p.mu.Lock()
	p.failures = append(p.failures, fmt.Sprintf("%s: %v", app, err))
	p.mu.Unlock()
}

func (p *pipeline) failureList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.failures))
	copy(out, p.failures)
	sort.Strings(out)
	return out
}

func (p *pipeline) analysisList() []signal.Analysis {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]signal.Analysis, len(p.analyses))
	copy(out, p.analyses)
	sort.Slice(out, func(i, j int) bool { return out[i].AppName < out[j].AppName })
	return out
}

// watchLoop keeps the process alive re-analyzing snapshots dropped into the
// data directory, until the run context is cancelled.
func (p *pipeline) watchLoop(ctx context.Context, apps []config.Target) error {
	bySafeName := make(map[string]config.Target, len(apps))
	for _, app := range apps {
		bySafeName[fetch.SafeName(app.Name)] = app
	}

	q := queue.New(p.cfg.QueueSize, p.cfg.WorkerCount, time.Duration(p.cfg.JobTimeoutSec)*time.Second)
	q.Start(ctx)
	w := watch.New(p.dataDir, true, func(safeName string) {
		app, ok := bySafeName[safeName]
		if !ok {
			log.Printf("watcher: snapshot %s matches no configured target", safeName)
			return
		}
		q.Enqueue(queue.Job{
			App:   app.Name,
			Niche: p.niche,
			Work: func(jobCtx context.Context) error {
				return p.processApp(jobCtx, app, true)
			},
			OnFinish: p.metrics.RecordApp,
		})
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	// Pick up snapshots that landed before the watch started.
	if err := w.Backfill(); err != nil {
		log.Printf("watcher backfill: %v", err)
	}
	log.Printf("watching %s for review snapshots", p.dataDir)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	q.Stop(stopCtx)
	cancel()
	return nil
}
