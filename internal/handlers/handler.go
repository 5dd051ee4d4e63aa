// Package handlers locates and fetches media referenced by page elements,
// from plain <img src> tags to iframe-embedded stream players.
package handlers

import (
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/sabihismail/website-ripper/internal/config"
	"github.com/sabihismail/website-ripper/internal/fetch"
	"github.com/sabihismail/website-ripper/internal/urlutil"
)

// JobKind tags what a ScrapeJob substitutes in the page HTML.
type JobKind int

const (
	// JobURL replaces occurrences of the original URL text with a relative
	// local path.
	JobURL JobKind = iota
	// JobVideo replaces an entire element, located by identifier, with a
	// replacement HTML snippet.
	JobVideo
)

// ScrapeJob is one pending HTML substitution. Created during extraction,
// consumed once during rewrite, never persisted.
type ScrapeJob struct {
	Kind JobKind
	// OriginalText is the text to find in the raw HTML: the element's source
	// URL for JobURL, unused for JobVideo.
	OriginalText string
	// LocalPath is the downloaded file. Empty when the fetch failed, which
	// keeps the job's position without rewriting anything.
	LocalPath string
	// HTML is the replacement snippet for JobVideo.
	HTML string
	// Identifier locates the element to splice for JobVideo.
	Identifier string
}

// Context carries the page-scoped state a handler needs.
type Context struct {
	// PageURL is the browser's resolved URL for the page being processed.
	PageURL string
	// PageDir is the directory the page's index.html will be written to;
	// replacement snippets express local paths relative to it.
	PageDir string
	// Title is the page's content title, may be empty.
	Title string
	Job   *config.Job
	Fetch *fetch.Fetcher
}

// DefaultHeaders are sent with every asset fetch for a page: sites commonly
// gate media behind Referer/Origin checks.
func (c *Context) DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("Referer", urlutil.Referer(c.PageURL))
	h.Set("Origin", urlutil.Origin(c.PageURL))
	if c.Job != nil && c.Job.UserAgent != "" {
		h.Set("User-Agent", c.Job.UserAgent)
	}
	return h
}

// IframeHandler is the capability pair shared by embedded-player handlers.
// The page processor walks an injected ordered list and the first handler
// claiming an element wins.
type IframeHandler interface {
	// CanHandle inspects the element's attributes.
	CanHandle(sel *goquery.Selection) bool
	// Handle runs the handler's extraction protocol against the element.
	Handle(ctx *Context, sel *goquery.Selection) ([]ScrapeJob, error)
}

// DefaultIframeHandlers is the standard handler list for a crawl.
func DefaultIframeHandlers() []IframeHandler {
	return []IframeHandler{NewPlayerIframeHandler()}
}
