// Package cache holds the crawl's durable state: the completed-URL and
// queued-URL stores that make runs resumable, the whole-run download cache,
// and the deduplicating failure log. Store corruption or unavailability is
// fatal for the run; resume correctness depends on durability.
package cache

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sabihismail/website-ripper/internal/fsutil"
)

// Dir is the directory all cache stores live under, relative to the
// working directory.
const Dir = "cache"

// Caches bundles the three independent key-value stores.
type Caches struct {
	Completed *CompletedStore
	Queued    *QueuedStore
	Downloads *DownloadStore
}

// Open creates root/cache when missing and opens all three stores.
func Open(root string) (*Caches, error) {
	dir := filepath.Join(root, Dir)
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	completed, err := OpenCompleted(filepath.Join(dir, "completed_urls.db"))
	if err != nil {
		return nil, err
	}
	queued, err := OpenQueued(filepath.Join(dir, "queued_urls.db"))
	if err != nil {
		completed.Close()
		return nil, err
	}
	downloads, err := OpenDownloads(filepath.Join(dir, "website_links.db"))
	if err != nil {
		completed.Close()
		queued.Close()
		return nil, err
	}

	return &Caches{Completed: completed, Queued: queued, Downloads: downloads}, nil
}

// Close closes all stores, returning the first error.
func (c *Caches) Close() error {
	var first error
	for _, closer := range []interface{ Close() error }{c.Completed, c.Queued, c.Downloads} {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openSQLite(path, schema string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache store %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema for %s: %w", path, err)
	}
	return db, nil
}
