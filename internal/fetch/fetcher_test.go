package fetch

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sabihismail/website-ripper/internal/cache"
	"github.com/sabihismail/website-ripper/internal/fsutil"
)

// countingTransport counts round trips so tests can prove the cache
// short-circuits the network.
type countingTransport struct {
	inner http.RoundTripper
	calls int
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls++
	return c.inner.RoundTrip(req)
}

func newTestFetcher(t *testing.T) (*Fetcher, *countingTransport) {
	t.Helper()
	caches, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open caches: %v", err)
	}
	t.Cleanup(func() { caches.Close() })

	transport := &countingTransport{inner: http.DefaultTransport}
	return &Fetcher{
		Client:    &http.Client{Transport: transport},
		Downloads: caches.Downloads,
	}, transport
}

func TestFetchDownloadsFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png bytes"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	outDir := t.TempDir()

	file, err := f.Fetch(Request{URL: server.URL + "/pic.png", OutDir: outDir})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if file.Result != cache.ResultSuccess {
		t.Fatalf("Expected success, got %v", file.Result)
	}
	body, err := os.ReadFile(filepath.FromSlash(file.Filename))
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(body) != "png bytes" {
		t.Errorf("Expected body written, got %q", body)
	}
	if !strings.HasSuffix(file.Filename, "pic.png") {
		t.Errorf("Expected URL basename kept, got %q", file.Filename)
	}
}

func TestFetchCacheIdempotence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	f, transport := newTestFetcher(t)
	req := Request{URL: server.URL + "/a.bin", OutDir: t.TempDir()}

	first, err := f.Fetch(req)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	callsAfterFirst := transport.calls

	second, err := f.Fetch(req)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}

	if transport.calls != callsAfterFirst {
		t.Errorf("Expected no network call on cache hit, got %d extra", transport.calls-callsAfterFirst)
	}
	if second.Filename != first.Filename || second.Result != first.Result {
		t.Errorf("Expected identical cached result, got %+v vs %+v", second, first)
	}
}

func TestFetchNetworkFailureIsNonFatal(t *testing.T) {
	f, _ := newTestFetcher(t)

	file, err := f.Fetch(Request{URL: "http://127.0.0.1:1/unreachable", OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Expected network failure folded into result, got error: %v", err)
	}
	if file.Result != cache.ResultFail {
		t.Errorf("Expected FAIL result, got %v", file.Result)
	}
}

func TestFetchIgnoredContentTypeSkips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	outDir := t.TempDir()

	file, err := f.Fetch(Request{
		URL:                 server.URL + "/page",
		OutDir:              outDir,
		IgnoredContentTypes: []string{"text/html"},
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if file.Result != cache.ResultSkipped {
		t.Errorf("Expected SKIPPED, got %v", file.Result)
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("Expected no file retained, found %d", len(entries))
	}
}

func TestFetchRecordsRedirectAliases(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.bin", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f, transport := newTestFetcher(t)
	outDir := t.TempDir()

	if _, err := f.Fetch(Request{URL: server.URL + "/old", OutDir: outDir}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	calls := transport.calls

	// Both the original and the final URL must now hit the cache.
	for _, url := range []string{server.URL + "/old", server.URL + "/new.bin"} {
		file, err := f.Fetch(Request{URL: url, OutDir: outDir})
		if err != nil {
			t.Fatalf("Cached fetch of %s failed: %v", url, err)
		}
		if file.Result != cache.ResultSuccess {
			t.Errorf("Expected cached success for %s, got %v", url, file.Result)
		}
	}
	if transport.calls != calls {
		t.Errorf("Expected no further network calls, got %d extra", transport.calls-calls)
	}
}

func TestFetchRedirectToCachedEntryAliasesOriginal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.bin", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f, transport := newTestFetcher(t)
	outDir := t.TempDir()

	// Cache the final URL first, then reach it through the redirect.
	direct, err := f.Fetch(Request{URL: server.URL + "/new.bin", OutDir: outDir})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	viaRedirect, err := f.Fetch(Request{URL: server.URL + "/old", OutDir: outDir})
	if err != nil {
		t.Fatalf("Redirected fetch failed: %v", err)
	}
	if viaRedirect.Filename != direct.Filename {
		t.Errorf("Expected cached entry reused, got %q vs %q", viaRedirect.Filename, direct.Filename)
	}
	calls := transport.calls

	// The pre-redirect URL is now an alias: no further network access.
	again, err := f.Fetch(Request{URL: server.URL + "/old", OutDir: outDir})
	if err != nil {
		t.Fatalf("Aliased fetch failed: %v", err)
	}
	if transport.calls != calls {
		t.Errorf("Expected no network call for the aliased URL, got %d extra", transport.calls-calls)
	}
	if again.Result != cache.ResultSuccess || again.Filename != direct.Filename {
		t.Errorf("Expected identical cached result, got %+v", again)
	}
}

func TestFetchHashCompareReusesIdenticalPayload(t *testing.T) {
	mux := http.NewServeMux()
	for _, path := range []string{"/a/logo.png", "/b/logo.png"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("identical png bytes"))
		})
	}
	server := httptest.NewServer(mux)
	defer server.Close()

	f, _ := newTestFetcher(t)
	outDir := t.TempDir()

	first, err := f.Fetch(Request{
		URL:        server.URL + "/a/logo.png",
		OutDir:     outDir,
		Duplicates: fsutil.PolicyHashCompare,
	})
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	second, err := f.Fetch(Request{
		URL:        server.URL + "/b/logo.png",
		OutDir:     outDir,
		Duplicates: fsutil.PolicyHashCompare,
	})
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}

	if second.Filename != first.Filename {
		t.Errorf("Expected identical payload to reuse %q, got %q", first.Filename, second.Filename)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("Failed to list output directory: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "logo.png" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected a single logo.png, got %v", names)
	}
}

func TestFetchIdealFilenameKeepsExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)

	file, err := f.Fetch(Request{
		URL:           server.URL + "/raw.png",
		IdealFilename: "My Title - 2",
		OutDir:        t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.HasSuffix(file.Filename, "My Title - 2.png") {
		t.Errorf("Expected ideal stem with inferred extension, got %q", file.Filename)
	}
}

func TestFetchGroupByLayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	outDir := t.TempDir()

	file, err := f.Fetch(Request{
		URL:     server.URL + "/logo.png",
		OutDir:  outDir,
		GroupBy: fsutil.DefaultGroupBy(),
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	want := filepath.ToSlash(filepath.Join(outDir, "images", "logo.png"))
	if file.Filename != want {
		t.Errorf("Expected %q, got %q", want, file.Filename)
	}
}

func TestContentTypeUsesCachedHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("pdf"))
	}))
	defer server.Close()

	f, transport := newTestFetcher(t)
	url := server.URL + "/doc.pdf"

	if _, err := f.Fetch(Request{URL: url, OutDir: t.TempDir()}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	calls := transport.calls

	if ct := f.ContentType(url, nil); ct != "application/pdf" {
		t.Errorf("Expected application/pdf, got %q", ct)
	}
	if transport.calls != calls {
		t.Error("Expected content type resolved from cached headers")
	}
}
