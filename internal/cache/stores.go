package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
)

// CompletedStore persists, per base domain, the URLs whose pages have been
// fully processed. Append-only within a run.
type CompletedStore struct {
	db *sql.DB
}

// OpenCompleted opens (creating if needed) the completed-URL store.
func OpenCompleted(path string) (*CompletedStore, error) {
	db, err := openSQLite(path, `
	CREATE TABLE IF NOT EXISTS completed (
		base TEXT NOT NULL,
		url  TEXT NOT NULL,
		PRIMARY KEY (base, url)
	);`)
	if err != nil {
		return nil, err
	}
	return &CompletedStore{db: db}, nil
}

// IsCompleted reports whether url was fully processed for base.
func (s *CompletedStore) IsCompleted(url, base string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM completed WHERE base = ? AND url = ?`, base, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("completed lookup: %w", err)
	}
	return n > 0, nil
}

// MarkCompleted records url as fully processed for base.
func (s *CompletedStore) MarkCompleted(url, base string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO completed (base, url) VALUES (?, ?)`, base, url)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (s *CompletedStore) Close() error { return s.db.Close() }

// QueuedStore persists, per base domain, the URLs enqueued but not yet
// processed, so an interrupted crawl can rebuild its frontier. An entry is
// added at enqueue time and removed at dequeue time, before processing
// begins.
type QueuedStore struct {
	db *sql.DB
}

// OpenQueued opens (creating if needed) the queued-URL store.
func OpenQueued(path string) (*QueuedStore, error) {
	db, err := openSQLite(path, `
	CREATE TABLE IF NOT EXISTS queued (
		seq  INTEGER PRIMARY KEY AUTOINCREMENT,
		base TEXT NOT NULL,
		url  TEXT NOT NULL,
		UNIQUE (base, url)
	);`)
	if err != nil {
		return nil, err
	}
	return &QueuedStore{db: db}, nil
}

// URLs returns the pending URLs for base in enqueue order.
func (s *QueuedStore) URLs(base string) ([]string, error) {
	rows, err := s.db.Query(`SELECT url FROM queued WHERE base = ? ORDER BY seq`, base)
	if err != nil {
		return nil, fmt.Errorf("queued list: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("queued scan: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// Add records url as pending for base.
func (s *QueuedStore) Add(url, base string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO queued (base, url) VALUES (?, ?)`, base, url)
	if err != nil {
		return fmt.Errorf("queued add: %w", err)
	}
	return nil
}

// Remove drops url from base's pending set.
func (s *QueuedStore) Remove(url, base string) error {
	_, err := s.db.Exec(`DELETE FROM queued WHERE base = ? AND url = ?`, base, url)
	if err != nil {
		return fmt.Errorf("queued remove: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (s *QueuedStore) Close() error { return s.db.Close() }

// DownloadResult is the terminal status of one fetched URL.
type DownloadResult string

const (
	ResultSuccess DownloadResult = "success"
	ResultFail    DownloadResult = "fail"
	ResultSkipped DownloadResult = "skipped"
)

// DownloadEntry maps a URL to what fetching it produced. Write-once per URL;
// a successful entry's Filename denotes a file that exists on disk for the
// rest of the run.
type DownloadEntry struct {
	URL      string
	Filename string
	Result   DownloadResult
	Headers  http.Header
}

// DownloadStore is the whole-run download cache, keyed by final URL and any
// alternate (pre-redirect) URLs.
type DownloadStore struct {
	db *sql.DB
}

// OpenDownloads opens (creating if needed) the download cache.
func OpenDownloads(path string) (*DownloadStore, error) {
	db, err := openSQLite(path, `
	CREATE TABLE IF NOT EXISTS downloads (
		url      TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		result   TEXT NOT NULL,
		headers  TEXT NOT NULL
	);`)
	if err != nil {
		return nil, err
	}
	return &DownloadStore{db: db}, nil
}

// Lookup returns the cached entry for url, if any.
func (s *DownloadStore) Lookup(url string) (*DownloadEntry, bool, error) {
	var (
		entry       DownloadEntry
		headersBlob string
	)
	err := s.db.QueryRow(`SELECT url, filename, result, headers FROM downloads WHERE url = ?`, url).
		Scan(&entry.URL, &entry.Filename, (*string)(&entry.Result), &headersBlob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("download lookup: %w", err)
	}
	if headersBlob != "" {
		if err := json.Unmarshal([]byte(headersBlob), &entry.Headers); err != nil {
			return nil, false, fmt.Errorf("download headers decode: %w", err)
		}
	}
	return &entry, true, nil
}

// Store records entry under its URL and every alternate URL, so lookups by
// either the original or the post-redirect URL succeed.
func (s *DownloadStore) Store(entry *DownloadEntry, altURLs ...string) error {
	headersBlob, err := json.Marshal(entry.Headers)
	if err != nil {
		return fmt.Errorf("download headers encode: %w", err)
	}

	urls := append([]string{entry.URL}, altURLs...)
	for _, url := range urls {
		if url == "" {
			continue
		}
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO downloads (url, filename, result, headers) VALUES (?, ?, ?, ?)`,
			url, entry.Filename, string(entry.Result), string(headersBlob))
		if err != nil {
			return fmt.Errorf("download store: %w", err)
		}
	}
	return nil
}

// Close closes the underlying store.
func (s *DownloadStore) Close() error { return s.db.Close() }
