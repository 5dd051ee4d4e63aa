// Package fetch downloads a single URL with whole-run caching, streamed
// writes and content-aware naming. It is the foundation every asset
// download goes through.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sabihismail/website-ripper/internal/cache"
	"github.com/sabihismail/website-ripper/internal/fsutil"
)

var defaultHeaders = map[string]string{
	"Accept":          "*/*",
	"Accept-Encoding": "identity",
	"User-Agent":      "website-ripper/1.0",
}

// DownloadedFile is what a fetch produced. On success Filename points at a
// file that exists on disk for the remainder of the run.
type DownloadedFile struct {
	Result   cache.DownloadResult
	Filename string
	URL      string
	Headers  http.Header
}

// Request describes one download.
type Request struct {
	URL string
	// IdealFilename, when set, replaces the resolved filename's stem while
	// keeping the inferred extension.
	IdealFilename string
	OutDir        string
	Headers       http.Header
	Duplicates    fsutil.DuplicatePolicy
	// IgnoredContentTypes short-circuits unwanted payloads (e.g. text/html
	// when only binary assets are wanted) into a SKIPPED result.
	IgnoredContentTypes []string
	GroupBy             *fsutil.GroupByMapping
	MaxFilenameLength   int
}

// Fetcher performs cached HTTP downloads. Single-threaded by contract: the
// crawl never fetches two assets concurrently.
type Fetcher struct {
	Client    *http.Client
	Downloads *cache.DownloadStore
	// Progress receives download meters; nil disables them.
	Progress io.Writer
	// UserAgent overrides the default header when non-empty.
	UserAgent string
}

// New builds a fetcher around the download cache with a fingerprint-matched
// transport.
func New(downloads *cache.DownloadStore, userAgent string) *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: NewTransport(userAgent),
		},
		Downloads: downloads,
		Progress:  os.Stdout,
		UserAgent: userAgent,
	}
}

// Fetch downloads req.URL: cache lookup, request, redirect-aware re-lookup,
// spool, content-type filter, naming, placement, record. Network failures
// are non-fatal and fold into a FAIL result; only cache-store errors
// propagate.
func (f *Fetcher) Fetch(req Request) (*DownloadedFile, error) {
	if entry, ok, err := f.cached(req.URL); err != nil {
		return nil, err
	} else if ok {
		return entry, nil
	}

	resp, err := f.open(req.URL, req.Headers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download failed: %s: %v\n", req.URL, err)
		return f.record(&DownloadedFile{Result: cache.ResultFail, URL: req.URL})
	}
	defer resp.Body.Close()

	// The transport followed redirects; a different final URL may already be
	// cached from an earlier fetch.
	finalURL := resp.Request.URL.String()
	originalURL := ""
	if finalURL != req.URL {
		originalURL = req.URL
		if entry, ok, err := f.cached(finalURL); err != nil {
			return nil, err
		} else if ok {
			// Record the pre-redirect URL as an alias of the cached entry;
			// the next fetch of it then skips the network too.
			return f.record(entry, originalURL)
		}
	}

	spool := filepath.Join(os.TempDir(), "webrip-"+uuid.NewString())
	if err := f.stream(resp, finalURL, spool); err != nil {
		os.Remove(spool)
		fmt.Fprintf(os.Stderr, "download failed: %s: %v\n", finalURL, err)
		return f.record(&DownloadedFile{Result: cache.ResultFail, URL: finalURL}, originalURL)
	}

	if ignorableContentType(req.IgnoredContentTypes, contentTypeOf(resp.Header)) {
		os.Remove(spool)
		return f.record(&DownloadedFile{Result: cache.ResultSkipped, URL: finalURL}, originalURL)
	}

	name := resolveFilename(finalURL, spool, req.IdealFilename, resp.Header)

	outDir := req.OutDir
	if outDir == "" {
		outDir = filepath.Dir(spool)
	}
	outPath := filepath.Join(outDir, name)

	if req.GroupBy != nil && req.OutDir != "" {
		_, ext := fsutil.SplitExt(name)
		outPath = filepath.Join(outDir, req.GroupBy.FolderFor(ext), name)
	}

	maxLen := req.MaxFilenameLength
	if maxLen == 0 {
		maxLen = fsutil.DefaultMaxFilenameLength
	}
	outPath = fsutil.ShortenFilename(outPath, maxLen)

	placed, _, err := fsutil.Place(spool, outPath, req.Duplicates)
	if err != nil {
		os.Remove(spool)
		return nil, fmt.Errorf("place %s: %w", finalURL, err)
	}

	return f.record(&DownloadedFile{
		Result:   cache.ResultSuccess,
		Filename: filepath.ToSlash(placed),
		URL:      finalURL,
		Headers:  resp.Header,
	}, originalURL)
}

// ContentType resolves a URL's content type without keeping the body:
// cached response headers first, then a HEAD request, then a GET whose body
// is discarded.
func (f *Fetcher) ContentType(url string, headers http.Header) string {
	if f.Downloads != nil {
		if entry, ok, _ := f.Downloads.Lookup(url); ok && entry.Headers != nil {
			if ct := contentTypeOf(entry.Headers); ct != "" {
				return ct
			}
		}
	}

	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return ""
	}
	f.applyHeaders(req, headers)
	if resp, err := f.Client.Do(req); err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if ct := contentTypeOf(resp.Header); ct != "" {
			return ct
		}
	}

	resp, err := f.open(url, headers)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
	return contentTypeOf(resp.Header)
}

// FetchBody downloads a URL straight into memory, for small documents like
// embedded-player pages and stream manifests.
func (f *Fetcher) FetchBody(url string, headers http.Header) ([]byte, error) {
	resp, err := f.open(url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// FetchInto streams a URL onto the end of an open file, for stream-segment
// reassembly. Returns an error when fewer bytes than declared arrive.
func (f *Fetcher) FetchInto(url string, headers http.Header, dst io.Writer) error {
	resp, err := f.open(url, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	meter := newProgressMeter(f.Progress, url, resp.ContentLength)
	read, err := copyWithMeter(dst, resp.Body, meter)
	meter.finish()
	if err != nil {
		return err
	}
	if resp.ContentLength > 0 && read < resp.ContentLength {
		return fmt.Errorf("segment incomplete: received %d of %d bytes", read, resp.ContentLength)
	}
	return nil
}

func (f *Fetcher) cached(url string) (*DownloadedFile, bool, error) {
	if f.Downloads == nil {
		return nil, false, nil
	}
	entry, ok, err := f.Downloads.Lookup(url)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &DownloadedFile{
		Result:   entry.Result,
		Filename: entry.Filename,
		URL:      entry.URL,
		Headers:  entry.Headers,
	}, true, nil
}

func (f *Fetcher) record(file *DownloadedFile, altURLs ...string) (*DownloadedFile, error) {
	if f.Downloads == nil {
		return file, nil
	}
	err := f.Downloads.Store(&cache.DownloadEntry{
		URL:      file.URL,
		Filename: file.Filename,
		Result:   file.Result,
		Headers:  file.Headers,
	}, altURLs...)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *Fetcher) open(url string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	f.applyHeaders(req, headers)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp, nil
}

func (f *Fetcher) applyHeaders(req *http.Request, headers http.Header) {
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
}

// stream writes the response body to spool. A short read against a declared
// Content-Length is a content inconsistency: logged, and the bytes that did
// arrive are kept, matching the caller-continues policy.
func (f *Fetcher) stream(resp *http.Response, url, spool string) error {
	file, err := os.Create(spool)
	if err != nil {
		return err
	}

	meter := newProgressMeter(f.Progress, url, resp.ContentLength)
	read, err := copyWithMeter(file, resp.Body, meter)
	meter.finish()

	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	if resp.ContentLength > 0 && read < resp.ContentLength {
		fmt.Fprintf(os.Stderr, "download incomplete: received %s of %s bytes from %s\n",
			strconv.FormatInt(read, 10), strconv.FormatInt(resp.ContentLength, 10), url)
	}
	return nil
}

func copyWithMeter(dst io.Writer, src io.Reader, meter *progressMeter) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			meter.advance(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
