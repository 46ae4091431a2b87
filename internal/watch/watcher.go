// Package watch monitors the per-niche data directory for review snapshot
// drops and triggers re-analysis for the matching app.
package watch

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const reviewsSuffix = "_reviews.json"

// Watcher monitors a data directory for new *_reviews.json snapshots and
// hands the sanitized app name to the enqueue callback.
type Watcher struct {
	dataDir string
	enabled bool
	enqueue func(safeName string)
}

func New(dataDir string, enabled bool, enqueue func(safeName string)) *Watcher {
	return &Watcher{dataDir: dataDir, enabled: enabled, enqueue: enqueue}
}

func (w *Watcher) Start(ctx context.Context) error {
	if !w.enabled {
		log.Println("watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
					if name, ok := snapshotName(evt.Name); ok {
						w.enqueue(name)
					}
				}
			case err := <-watcher.Errors:
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(w.dataDir)
}

// Backfill enqueues analysis for snapshots already on disk.
func (w *Watcher) Backfill() error {
	entries, err := filepath.Glob(filepath.Join(w.dataDir, "*"+reviewsSuffix))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if name, ok := snapshotName(e); ok {
			w.enqueue(name)
		}
	}
	return nil
}

// snapshotName extracts the sanitized app name from a snapshot path,
// e.g. "Focus_App_reviews.json" -> "Focus_App".
func snapshotName(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, reviewsSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(base, reviewsSuffix)
	if name == "" {
		return "", false
	}
	return name, true
}
