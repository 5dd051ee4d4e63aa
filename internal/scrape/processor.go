// Package scrape contains the per-page processing pipeline and the crawl
// driver that feeds it.
package scrape

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sabihismail/website-ripper/internal/browser"
	"github.com/sabihismail/website-ripper/internal/cache"
	"github.com/sabihismail/website-ripper/internal/config"
	"github.com/sabihismail/website-ripper/internal/fetch"
	"github.com/sabihismail/website-ripper/internal/frontier"
	"github.com/sabihismail/website-ripper/internal/fsutil"
	"github.com/sabihismail/website-ripper/internal/handlers"
	"github.com/sabihismail/website-ripper/internal/rewrite"
	"github.com/sabihismail/website-ripper/internal/urlutil"
)

// PageLoadError marks a page that could not be loaded at all (navigation
// never converged or the session broke). The driver decides whether that
// ends the run or just skips the page.
type PageLoadError struct {
	URL string
	Err error
}

func (e *PageLoadError) Error() string { return fmt.Sprintf("load page %s: %v", e.URL, e.Err) }
func (e *PageLoadError) Unwrap() error { return e.Err }

// Processor runs one page through load, extraction, link discovery,
// rewrite and persistence. One instance serves the whole crawl; all state
// below is crawl-scoped and read-only during a page.
type Processor struct {
	Browser browser.Driver
	Job     *config.Job
	Fetch   *fetch.Fetcher
	Caches  *cache.Caches
	// Iframes is the ordered handler list; the first handler claiming an
	// element wins.
	Iframes []handlers.IframeHandler
	// FailLog deduplicates unhandled-iframe log lines across runs.
	FailLog *cache.SeenLog
}

// ProcessPage loads pageURL, downloads its assets per the job's element
// mask, rewrites its HTML to local copies and persists it under the output
// directory. When fr is non-nil, discovered same-domain links are fed back
// through the frontier; a nil fr produces rewrite jobs only. pageURL must
// already be defragmented.
func (p *Processor) ProcessPage(pageURL, base string, fr *frontier.Frontier) error {
	fmt.Printf("Processing %s\n", pageURL)

	if err := browser.GoAndWait(p.Browser, pageURL, p.Job.ScrollPause); err != nil {
		return &PageLoadError{URL: pageURL, Err: err}
	}
	resolved, err := p.Browser.CurrentURL()
	if err != nil {
		return &PageLoadError{URL: pageURL, Err: err}
	}
	raw, err := p.Browser.PageSource()
	if err != nil {
		return &PageLoadError{URL: pageURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	pageDir := p.pageDir(base, pageURL)
	ctx := &handlers.Context{
		PageURL: resolved,
		PageDir: pageDir,
		Title:   p.contentTitle(),
		Job:     p.Job,
		Fetch:   p.Fetch,
	}

	// One job list and one captured-URL set per page: later extraction
	// steps must not re-download what an earlier step already fetched.
	var jobs []handlers.ScrapeJob
	captured := make(map[string]bool)
	collect := func(newJobs []handlers.ScrapeJob) {
		for _, j := range newJobs {
			jobs = append(jobs, j)
			if j.Kind == handlers.JobURL && j.OriginalText != "" {
				if abs := urlutil.Resolve(resolved, j.OriginalText); abs != "" {
					captured[abs] = true
				}
			}
		}
	}

	if p.Job.Elements.Has(config.ElementVideos) {
		found, err := handlers.VideoHandler().Extract(ctx, doc)
		if err != nil {
			return err
		}
		collect(found)
	}
	if p.Job.Elements.Has(config.ElementImages) {
		found, err := handlers.ImageHandler().Extract(ctx, doc)
		if err != nil {
			return err
		}
		collect(found)
	}
	if p.Job.Elements.Has(config.ElementHTML) {
		found, err := p.extractEmbedded(ctx, raw, base, captured)
		if err != nil {
			return err
		}
		jobs = append(jobs, found...)
	}
	if p.Job.Elements.Has(config.ElementIframes) {
		found, err := p.extractIframes(ctx, doc)
		if err != nil {
			return err
		}
		jobs = append(jobs, found...)
	}

	linkJobs, links, err := p.discoverLinks(ctx, doc, base, captured)
	if err != nil {
		return err
	}
	jobs = append(jobs, linkJobs...)

	final := rewrite.Apply(raw, jobs, pageDir)

	if err := fsutil.EnsureDir(pageDir); err != nil {
		return fmt.Errorf("create page directory %s: %w", pageDir, err)
	}
	indexPath := filepath.Join(pageDir, "index.html")
	if err := os.WriteFile(indexPath, []byte(final), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", indexPath, err)
	}
	if err := p.Caches.Completed.MarkCompleted(urlutil.Defragment(pageURL), base); err != nil {
		return err
	}

	if fr != nil {
		for _, link := range links {
			if err := AddToFrontierIfNew(fr, p.Caches, link, base); err != nil {
				return err
			}
		}
	}

	fmt.Printf("Completed %s\n", pageURL)
	return nil
}

// pageDir maps a page URL onto its mirror directory under the output root.
func (p *Processor) pageDir(base, pageURL string) string {
	sub := urlutil.SubDirectoryPath(base, pageURL, "")
	return filepath.Join(p.Job.OutDir, filepath.FromSlash(strings.TrimPrefix(sub, "/")))
}

// contentTitle reads the configured content-name element's text from the
// loaded page, or "" when unconfigured or absent.
func (p *Processor) contentTitle() string {
	cn := p.Job.ContentName
	if cn == nil || cn.Identifier == "" {
		return ""
	}
	text, err := p.Browser.ElementText(cn.Identifier)
	if err != nil || strings.TrimSpace(text) == "" {
		return ""
	}
	return cn.Prefix + strings.TrimSpace(text)
}

// extractEmbedded scans the raw HTML and inline scripts for absolute or
// protocol-relative URLs that no earlier step captured, and downloads the
// ones that are neither pages nor part of the crawl's own domain.
func (p *Processor) extractEmbedded(ctx *handlers.Context, raw, base string, captured map[string]bool) ([]handlers.ScrapeJob, error) {
	outDir := filepath.Join(ctx.PageDir, p.Job.DataDirectory)
	groupBy := fsutil.DefaultGroupBy()

	// Embedded assets are named after the file, never the page title.
	ectx := *ctx
	ectx.Title = ""

	var jobs []handlers.ScrapeJob
	for _, found := range urlutil.FindURLs(raw) {
		key := urlutil.Defragment(found.URL)
		if captured[key] || captured[found.URL] {
			continue
		}
		if urlutil.InDomain(base, found.URL) {
			continue
		}
		contentType := p.Fetch.ContentType(found.URL, ctx.DefaultHeaders())
		if strings.Contains(contentType, "text/html") {
			continue
		}

		local, err := handlers.DownloadElement(&ectx, found.URL, outDir, 0, 1, groupBy)
		if err != nil {
			return nil, err
		}
		captured[key] = true
		if local == "" {
			continue
		}

		original := found.Original
		if original == "" {
			original = found.URL
		}
		jobs = append(jobs, handlers.ScrapeJob{
			Kind:         handlers.JobURL,
			OriginalText: original,
			LocalPath:    local,
		})
	}
	return jobs, nil
}

// extractIframes walks the page's iframes through the injected handler
// list. Unclaimed iframes are logged once per identifier across runs,
// unless the job's ignore list suppresses them.
func (p *Processor) extractIframes(ctx *handlers.Context, doc *goquery.Document) ([]handlers.ScrapeJob, error) {
	var jobs []handlers.ScrapeJob
	var fatal error

	doc.Find("iframe").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		for _, h := range p.Iframes {
			if !h.CanHandle(sel) {
				continue
			}
			found, err := h.Handle(ctx, sel)
			if err != nil {
				fmt.Fprintf(os.Stderr, "iframe handler failed on %s: %v\n", ctx.PageURL, err)
				return true
			}
			jobs = append(jobs, found...)
			return true
		}

		identifier := iframeIdentifier(sel)
		if identifier == "" || p.Job.IgnoredIframe(identifier) {
			return true
		}
		if p.FailLog == nil || p.FailLog.Seen(identifier) {
			return true
		}
		markup, _ := goquery.OuterHtml(sel)
		if _, err := p.FailLog.Record(identifier, markup); err != nil {
			fatal = err
			return false
		}
		fmt.Fprintf(os.Stderr, "no handler for iframe %q on %s\n", identifier, ctx.PageURL)
		return true
	})
	return jobs, fatal
}

func iframeIdentifier(sel *goquery.Selection) string {
	if src, ok := sel.Attr("src"); ok && src != "" {
		return src
	}
	if id, ok := sel.Attr("id"); ok {
		return id
	}
	return ""
}

// discoverLinks classifies every anchor on the page. Non-HTML targets are
// downloaded as assets. Same-domain HTML targets get an index.html
// substitution job so stored pages link to each other locally, and are
// returned as candidate frontier entries unless a skip substring matches;
// the skip list gates crawl-following only, never rewriting.
func (p *Processor) discoverLinks(ctx *handlers.Context, doc *goquery.Document, base string, captured map[string]bool) ([]handlers.ScrapeJob, []string, error) {
	outDir := filepath.Join(ctx.PageDir, p.Job.DataDirectory)
	groupBy := fsutil.DefaultGroupBy()

	ectx := *ctx
	ectx.Title = ""

	seen := make(map[string]bool)
	var jobs []handlers.ScrapeJob
	var links []string
	var fatal error

	doc.Find("a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		abs := urlutil.Resolve(ctx.PageURL, href)
		if abs == "" || seen[abs] {
			return true
		}
		seen[abs] = true

		contentType := p.Fetch.ContentType(abs, ctx.DefaultHeaders())
		if !strings.Contains(contentType, "text/html") {
			if captured[abs] {
				return true
			}
			local, err := handlers.DownloadElement(&ectx, abs, outDir, 0, 1, groupBy)
			if err != nil {
				fatal = err
				return false
			}
			captured[abs] = true
			if local != "" {
				jobs = append(jobs, handlers.ScrapeJob{
					Kind:         handlers.JobURL,
					OriginalText: href,
					LocalPath:    local,
				})
			}
			return true
		}

		if !urlutil.InDomain(base, abs) {
			return true
		}

		target := filepath.Join(p.pageDir(base, abs), "index.html")
		jobs = append(jobs, handlers.ScrapeJob{
			Kind:         handlers.JobURL,
			OriginalText: href,
			LocalPath:    target,
		})

		if p.shouldSkip(abs) {
			return true
		}
		links = append(links, abs)
		return true
	})
	return jobs, links, fatal
}

func (p *Processor) shouldSkip(url string) bool {
	for _, sub := range p.Job.SubstringsToSkip {
		if sub != "" && strings.Contains(url, sub) {
			return true
		}
	}
	return false
}
