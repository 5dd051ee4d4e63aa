// Package postscrape applies a job's literal text-replacement rules to
// every .html file the crawl produced.
package postscrape

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sabihismail/website-ripper/internal/config"
)

// Run sweeps root for .html files and applies every replacement rule to
// each. Files are rewritten in place only when a rule actually matched.
// Returns the number of files changed.
func Run(root string, jobs []config.PostScrapeJob) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	changed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		replaced := apply(string(body), jobs)
		if replaced == string(body) {
			return nil
		}
		if err := os.WriteFile(path, []byte(replaced), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		changed++
		return nil
	})
	if err != nil {
		return changed, err
	}
	return changed, nil
}

func apply(body string, jobs []config.PostScrapeJob) string {
	for _, job := range jobs {
		switch job.Type {
		case config.PostScrapeReplace:
			if job.Identifier != "" {
				body = strings.ReplaceAll(body, job.Identifier, job.Text)
			}
		}
	}
	return body
}
