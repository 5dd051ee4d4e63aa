package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sabihismail/website-ripper/internal/cache"
	"github.com/sabihismail/website-ripper/internal/fetch"
	"github.com/sabihismail/website-ripper/internal/fsutil"
	"github.com/sabihismail/website-ripper/internal/urlutil"
)

// ignoredContentTypes excludes page-like payloads from asset downloads.
var ignoredContentTypes = []string{"text/html"}

// GenericHandler downloads media referenced by a plain tag/attribute pair,
// e.g. img/src or video/src (via a nested <source> child).
type GenericHandler struct {
	// Tag is the element to enumerate.
	Tag string
	// Attr holds the source URL.
	Attr string
	// SrcChild, when set, names a child element carrying Attr instead of the
	// tag itself (video elements keep their URL on <source>).
	SrcChild string
	// SubDir is the asset folder below the page's data directory.
	SubDir string
}

// VideoHandler enumerates <video><source src> elements into the videos
// folder.
func VideoHandler() *GenericHandler {
	return &GenericHandler{Tag: "video", Attr: "src", SrcChild: "source", SubDir: "videos"}
}

// ImageHandler enumerates <img src> elements into the images folder.
func ImageHandler() *GenericHandler {
	return &GenericHandler{Tag: "img", Attr: "src", SubDir: "images"}
}

// Extract fetches every matching element's source and emits one job per
// element. Elements whose fetch fails still emit a job with an empty local
// path, preserving position-based naming for the rest. The returned error
// is always a cache-store failure, fatal for the run.
func (g *GenericHandler) Extract(ctx *Context, doc *goquery.Document) ([]ScrapeJob, error) {
	elements := doc.Find(g.Tag)
	total := elements.Length()

	outDir := fmt.Sprintf("%s/%s/%s", ctx.PageDir, ctx.Job.DataDirectory, g.SubDir)

	var jobs []ScrapeJob
	var fatal error
	elements.Each(func(i int, sel *goquery.Selection) {
		if fatal != nil {
			return
		}
		fmt.Printf("Starting %s download %d/%d.\n", g.Tag, i+1, total)

		source := sel
		if g.SrcChild != "" {
			source = sel.Find(g.SrcChild).First()
		}
		srcURL, _ := source.Attr(g.Attr)
		if srcURL == "" {
			fmt.Fprintf(os.Stderr, "no %s attribute, skipping %s %d on %s\n", g.Attr, g.Tag, i+1, ctx.PageURL)
			return
		}

		original := srcURL
		if urlutil.IsRelative(srcURL) || strings.HasPrefix(srcURL, "//") {
			srcURL = urlutil.Resolve(ctx.PageURL, srcURL)
			if srcURL == "" {
				return
			}
		}

		local, err := DownloadElement(ctx, srcURL, outDir, i, total, nil)
		if err != nil {
			fatal = err
			return
		}
		jobs = append(jobs, ScrapeJob{
			Kind:         JobURL,
			OriginalText: original,
			LocalPath:    local,
		})
	})
	return jobs, fatal
}

// DownloadElement fetches one asset URL for a page, naming it after the
// page title ("Title - N" when the page has several). An empty path with a
// nil error means the download failed or was skipped; the caller logs and
// continues. A non-nil error is a cache-store failure, fatal for the run.
func DownloadElement(ctx *Context, srcURL, outDir string, index, total int, groupBy *fsutil.GroupByMapping) (string, error) {
	ideal := ""
	if ctx.Title != "" {
		ideal = ctx.Title
		if total > 1 {
			ideal = fmt.Sprintf("%s - %d", ctx.Title, index+1)
		}
	}

	file, err := ctx.Fetch.Fetch(fetch.Request{
		URL:                 srcURL,
		IdealFilename:       ideal,
		OutDir:              outDir,
		Headers:             ctx.DefaultHeaders(),
		Duplicates:          fsutil.PolicyHashCompare,
		IgnoredContentTypes: ignoredContentTypes,
		GroupBy:             groupBy,
	})
	if err != nil {
		return "", err
	}

	switch file.Result {
	case cache.ResultSkipped:
		fmt.Printf("Skipped download %s\n", srcURL)
		return "", nil
	case cache.ResultFail:
		fmt.Fprintf(os.Stderr, "failed on download %s\n", srcURL)
		return "", nil
	}
	return file.Filename, nil
}
