package postscrape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sabihismail/website-ripper/internal/config"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestRunReplacesAcrossNestedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), `<div class="paywall">content</div>`)
	writeFile(t, filepath.Join(root, "a", "index.html"), `<div class="paywall">more</div>`)
	writeFile(t, filepath.Join(root, "a", "data", "notes.txt"), `paywall stays in text files`)

	jobs := []config.PostScrapeJob{
		{Type: config.PostScrapeReplace, Identifier: `class="paywall"`, Text: `class="open"`},
	}
	changed, err := Run(root, jobs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if changed != 2 {
		t.Errorf("Expected 2 files changed, got %d", changed)
	}

	body, _ := os.ReadFile(filepath.Join(root, "a", "index.html"))
	if string(body) != `<div class="open">more</div>` {
		t.Errorf("Expected nested file rewritten, got %q", body)
	}
	body, _ = os.ReadFile(filepath.Join(root, "a", "data", "notes.txt"))
	if string(body) != `paywall stays in text files` {
		t.Errorf("Expected non-html file untouched, got %q", body)
	}
}

func TestRunLeavesUnmatchedFilesAlone(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "index.html")
	writeFile(t, path, `<p>nothing to see</p>`)

	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	changed, err := Run(root, []config.PostScrapeJob{
		{Type: config.PostScrapeReplace, Identifier: "absent", Text: "x"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("Expected no files changed, got %d", changed)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("Expected unmatched file not rewritten")
	}
}

func TestRunAppliesRulesInOrder(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "index.html")
	writeFile(t, path, `<p>one</p>`)

	changed, err := Run(root, []config.PostScrapeJob{
		{Type: config.PostScrapeReplace, Identifier: "one", Text: "two"},
		{Type: config.PostScrapeReplace, Identifier: "two", Text: "three"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("Expected 1 file changed, got %d", changed)
	}

	body, _ := os.ReadFile(path)
	if string(body) != `<p>three</p>` {
		t.Errorf("Expected rules applied in order, got %q", body)
	}
}

func TestRunNoJobsIsNoop(t *testing.T) {
	changed, err := Run(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("Expected nothing changed, got %d", changed)
	}
}

func TestRunMatchesHTMLExtensionCaseInsensitively(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "PAGE.HTML")
	writeFile(t, path, `old`)

	changed, err := Run(root, []config.PostScrapeJob{
		{Type: config.PostScrapeReplace, Identifier: "old", Text: "new"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("Expected uppercase extension matched, got %d changed", changed)
	}
}
