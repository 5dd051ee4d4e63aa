package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingField reports a required job-file field that was absent. Always
// wrapped with the field name.
var ErrMissingField = errors.New("missing required field")

// ScrapeType selects the crawl entry mode.
type ScrapeType int

const (
	// SinglePage processes each seed URL once, with no link following.
	SinglePage ScrapeType = iota
	// AllPages treats each seed as a site base URL and crawls its link graph.
	AllPages
)

func (t ScrapeType) String() string {
	if t == SinglePage {
		return "SINGLE_PAGE"
	}
	return "ALL_PAGES"
}

// Elements is the per-run bitmask of element kinds to extract.
type Elements uint8

const (
	ElementVideos Elements = 1 << iota
	ElementImages
	ElementHTML
	ElementIframes

	ElementsAll = ElementVideos | ElementImages | ElementHTML | ElementIframes
)

// Has reports whether the mask includes kind.
func (e Elements) Has(kind Elements) bool { return e&kind != 0 }

// Cookie is injected into the browser session before the crawl starts.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// ContentName locates the element whose text names downloaded content.
type ContentName struct {
	Identifier string // xpath
	Prefix     string
}

// UITask is an optional action performed on a located login-flow element.
type UITask int

const (
	TaskNone UITask = iota
	// TaskGoTo switches the session into the element's frame.
	TaskGoTo
	// TaskClick clicks the element.
	TaskClick
)

// LocatorKind names how a UIStep identifier is interpreted.
type LocatorKind string

const (
	ByID    LocatorKind = "id"
	ByClass LocatorKind = "class"
	ByName  LocatorKind = "name"
	ByTag   LocatorKind = "tag"
	ByXPath LocatorKind = "xpath"
	ByCSS   LocatorKind = "css"
)

// UIStep is one ordered step of a scripted login flow.
type UIStep struct {
	Identifier string
	Kind       LocatorKind
	Value      string // typed into the element when non-empty
	Task       UITask
}

// Login is the scripted UI interaction performed before crawling.
type Login struct {
	URL      string
	Children []UIStep
}

// IframeIgnoreRule suppresses unhandled-iframe logging for identifiers
// containing Substring. Category only labels the rule in the job file.
type IframeIgnoreRule struct {
	Substring string
	Category  string
}

// PostScrapeJobType tags a post-scrape rule.
type PostScrapeJobType int

const (
	// PostScrapeReplace replaces every occurrence of Identifier with Text.
	PostScrapeReplace PostScrapeJobType = iota
)

// PostScrapeJob is one literal text replacement applied to every produced
// .html file after the crawl.
type PostScrapeJob struct {
	Type       PostScrapeJobType
	Identifier string
	Text       string
}

// Job is the immutable run configuration. Loaded once at startup,
// read-only thereafter.
type Job struct {
	ScrapeType ScrapeType
	URLs       []string
	OutDir     string

	Elements      Elements
	UseSitemap    bool
	UseCache      bool
	DataDirectory string

	// Politeness delay bounds between page fetches; zero disables pacing.
	TimeoutMin time.Duration
	TimeoutMax time.Duration
	// Pause between progressive scroll steps while waiting for lazy content.
	ScrollPause time.Duration

	ContentName      *ContentName
	Cookies          []Cookie
	Login            *Login
	SubstringsToSkip []string
	IframeIgnores    []IframeIgnoreRule
	PostScrapeJobs   []PostScrapeJob

	PostScrapeOnly bool
	UserAgent      string
}

// Validate checks the cross-field constraints decoding cannot express.
func (j *Job) Validate() error {
	if len(j.URLs) == 0 && !j.PostScrapeOnly {
		return fmt.Errorf("%w: urls", ErrMissingField)
	}
	if j.OutDir == "" {
		return fmt.Errorf("%w: out_dir", ErrMissingField)
	}
	if j.TimeoutMin > j.TimeoutMax {
		return fmt.Errorf("timeout_min %v exceeds timeout_max %v", j.TimeoutMin, j.TimeoutMax)
	}
	return nil
}

// IgnoredIframe reports whether an iframe identifier matches an ignore rule.
func (j *Job) IgnoredIframe(identifier string) bool {
	for _, rule := range j.IframeIgnores {
		if rule.Substring != "" && identifier != "" &&
			strings.Contains(strings.ToLower(identifier), strings.ToLower(rule.Substring)) {
			return true
		}
	}
	return false
}
