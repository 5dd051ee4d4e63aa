// Package rewrite edits a page's raw HTML to point at local copies. The
// page is otherwise untouched text, so edits are byte-preserving: literal
// substring substitution for URLs and a tokenizer-located splice for
// replaced elements — never a parse/re-serialize round trip.
package rewrite

import (
	"fmt"
	"os"
	"strings"

	"github.com/sabihismail/website-ripper/internal/fsutil"
	"github.com/sabihismail/website-ripper/internal/handlers"
)

// Apply consumes the page's scrape jobs against its raw HTML. URL jobs
// rewrite every occurrence of the original text to a path relative to
// pageDir; video jobs replace the identified element's outer markup with
// the job's snippet. Jobs without a local path are skipped, leaving the
// original URL in place (the crawl's accepted degradation for failed
// downloads).
func Apply(html string, jobs []handlers.ScrapeJob, pageDir string) string {
	for _, job := range jobs {
		switch job.Kind {
		case handlers.JobURL:
			if job.LocalPath == "" || job.OriginalText == "" {
				continue
			}
			rel := fsutil.RelativePath(job.LocalPath, pageDir)
			html = replaceURL(html, job.OriginalText, rel)

		case handlers.JobVideo:
			if job.HTML == "" || job.Identifier == "" {
				continue
			}
			replaced, ok := SpliceByID(html, job.Identifier, job.HTML)
			if !ok {
				fmt.Fprintf(os.Stderr, "element id %q not found for video substitution\n", job.Identifier)
				continue
			}
			html = replaced
		}
	}
	return html
}

// replaceURL rewrites every quoted or parenthesized occurrence of orig to
// rel. Only delimited occurrences are touched so a URL that is a prefix of
// a longer one on the same page is never mangled.
func replaceURL(html, orig, rel string) string {
	for _, d := range [][2]string{{`'`, `'`}, {`"`, `"`}, {`(`, `)`}} {
		html = strings.ReplaceAll(html, d[0]+orig+d[1], d[0]+rel+d[1])
	}
	return html
}
