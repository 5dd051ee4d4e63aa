package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sabihismail/website-ripper/internal/fsutil"
)

// SeenLog is an append-only log that records each key at most once across
// runs. The crawl uses one for unhandled iframe markup so broken embeds on
// many pages don't flood the log file. Constructed once per run and passed
// to whoever needs suppression.
type SeenLog struct {
	path string
	file *os.File
	keys map[string]bool
}

// OpenSeenLog opens root/cache/<name>, loading previously recorded keys.
func OpenSeenLog(root, name string) (*SeenLog, error) {
	path := filepath.Join(root, Dir, name)
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	keys := make(map[string]bool)
	if existing, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if key, _, found := strings.Cut(line, "\t"); found && key != "" {
				keys[key] = true
			}
		}
		existing.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read seen log %s: %w", path, err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open seen log %s: %w", path, err)
	}
	return &SeenLog{path: path, file: file, keys: keys}, nil
}

// Seen reports whether key was already recorded, this run or earlier.
func (l *SeenLog) Seen(key string) bool { return l.keys[key] }

// Record appends key with its payload unless the key was seen before.
// Returns true when the record was written.
func (l *SeenLog) Record(key, payload string) (bool, error) {
	if key == "" || l.keys[key] {
		return false, nil
	}
	l.keys[key] = true

	// Newlines in the payload would break the key\tpayload line format.
	payload = strings.ReplaceAll(payload, "\n", " ")
	if _, err := fmt.Fprintf(l.file, "%s\t%s\n", key, payload); err != nil {
		return false, fmt.Errorf("append seen log: %w", err)
	}
	return true, l.file.Sync()
}

// Close closes the log file.
func (l *SeenLog) Close() error { return l.file.Close() }
