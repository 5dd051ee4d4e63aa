package cache

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesStores(t *testing.T) {
	root := t.TempDir()

	caches, err := Open(root)
	if err != nil {
		t.Fatalf("Failed to open caches: %v", err)
	}
	defer caches.Close()

	for _, name := range []string{"completed_urls.db", "queued_urls.db", "website_links.db"} {
		if _, err := os.Stat(filepath.Join(root, Dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestCompletedStore(t *testing.T) {
	caches, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open caches: %v", err)
	}
	defer caches.Close()

	done, err := caches.Completed.IsCompleted("https://example.com/a", "example.com")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if done {
		t.Error("Expected fresh URL not completed")
	}

	if err := caches.Completed.MarkCompleted("https://example.com/a", "example.com"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	done, _ = caches.Completed.IsCompleted("https://example.com/a", "example.com")
	if !done {
		t.Error("Expected URL completed after mark")
	}

	done, _ = caches.Completed.IsCompleted("https://example.com/a", "other.com")
	if done {
		t.Error("Expected base domains not to collide")
	}
}

func TestQueuedStoreOrderAndRemove(t *testing.T) {
	caches, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open caches: %v", err)
	}
	defer caches.Close()

	for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		if err := caches.Queued.Add(u, "example.com"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if err := caches.Queued.Remove("https://example.com/2", "example.com"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	urls, err := caches.Queued.URLs("example.com")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://example.com/1" || urls[1] != "https://example.com/3" {
		t.Errorf("Expected enqueue order preserved minus removed entry, got %v", urls)
	}
}

func TestDownloadStoreAltURLs(t *testing.T) {
	caches, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open caches: %v", err)
	}
	defer caches.Close()

	entry := &DownloadEntry{
		URL:      "https://cdn.example.com/final.png",
		Filename: "/out/images/final.png",
		Result:   ResultSuccess,
		Headers:  http.Header{"Content-Type": []string{"image/png"}},
	}
	if err := caches.Downloads.Store(entry, "https://example.com/redirect.png"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	for _, url := range []string{"https://cdn.example.com/final.png", "https://example.com/redirect.png"} {
		got, ok, err := caches.Downloads.Lookup(url)
		if err != nil {
			t.Fatalf("Lookup %s failed: %v", url, err)
		}
		if !ok {
			t.Errorf("Expected cache hit for %s", url)
			continue
		}
		if got.Filename != entry.Filename || got.Result != ResultSuccess {
			t.Errorf("Expected stored entry for %s, got %+v", url, got)
		}
		if got.Headers.Get("Content-Type") != "image/png" {
			t.Errorf("Expected headers round-tripped for %s", url)
		}
	}
}

func TestDownloadStoreWriteOnce(t *testing.T) {
	caches, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open caches: %v", err)
	}
	defer caches.Close()

	first := &DownloadEntry{URL: "https://example.com/a", Filename: "one", Result: ResultSuccess}
	second := &DownloadEntry{URL: "https://example.com/a", Filename: "two", Result: ResultFail}
	if err := caches.Downloads.Store(first); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := caches.Downloads.Store(second); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, _, _ := caches.Downloads.Lookup("https://example.com/a")
	if got.Filename != "one" {
		t.Errorf("Expected first write kept, got %q", got.Filename)
	}
}

func TestSeenLogPersistsAcrossOpens(t *testing.T) {
	root := t.TempDir()

	log, err := OpenSeenLog(root, "failed_iframes.txt")
	if err != nil {
		t.Fatalf("Failed to open seen log: %v", err)
	}

	wrote, err := log.Record("frame-1", "<iframe src=\"x\">\n</iframe>")
	if err != nil || !wrote {
		t.Fatalf("Expected first record written: wrote=%v err=%v", wrote, err)
	}
	wrote, _ = log.Record("frame-1", "again")
	if wrote {
		t.Error("Expected repeat key suppressed")
	}
	log.Close()

	log, err = OpenSeenLog(root, "failed_iframes.txt")
	if err != nil {
		t.Fatalf("Failed to reopen seen log: %v", err)
	}
	defer log.Close()

	if !log.Seen("frame-1") {
		t.Error("Expected key remembered across opens")
	}
}
