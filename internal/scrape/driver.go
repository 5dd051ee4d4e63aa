package scrape

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sabihismail/website-ripper/internal/browser"
	"github.com/sabihismail/website-ripper/internal/cache"
	"github.com/sabihismail/website-ripper/internal/config"
	"github.com/sabihismail/website-ripper/internal/fetch"
	"github.com/sabihismail/website-ripper/internal/frontier"
	"github.com/sabihismail/website-ripper/internal/handlers"
	"github.com/sabihismail/website-ripper/internal/sitemap"
	"github.com/sabihismail/website-ripper/internal/urlutil"
)

// Crawler drives one job: it seeds the frontier, drains it through the
// page processor and paces requests. Single-threaded: one browser session,
// one frontier, one page at a time.
type Crawler struct {
	Job      *config.Job
	Browser  browser.Driver
	Fetch    *fetch.Fetcher
	Caches   *cache.Caches
	Discover *sitemap.Discoverer
	Handlers []handlers.IframeHandler
	FailLog  *cache.SeenLog
	// Order selects frontier draining. FIFO (the zero value) gives a
	// breadth-first-like traversal.
	Order frontier.Order

	rng         *rand.Rand
	pagesDone   int
	pagesFailed int
}

// AddToFrontierIfNew is the only sanctioned way URLs enter the crawl. It
// defragments url, drops it when already completed, and otherwise enqueues
// it in both the frontier and the durable queued store. Guarantees the
// completed set and the frontier never both contain the same URL.
func AddToFrontierIfNew(fr *frontier.Frontier, caches *cache.Caches, url, base string) error {
	url = urlutil.Defragment(url)
	done, err := caches.Completed.IsCompleted(url, base)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if fr.Add(url) {
		return caches.Queued.Add(url, base)
	}
	return nil
}

// Run executes the job to completion. A PageLoadError ends the run in
// single-page mode but only skips the page in whole-site mode; every other
// error (cache store, filesystem) is fatal either way.
func (c *Crawler) Run() error {
	if len(c.Job.Cookies) > 0 {
		if err := c.Browser.SetCookies(c.Job.Cookies); err != nil {
			return fmt.Errorf("inject cookies: %w", err)
		}
	}
	if c.Job.Login != nil {
		if err := c.Browser.RunLogin(c.Job.Login); err != nil {
			return fmt.Errorf("login script: %w", err)
		}
	}

	proc := &Processor{
		Browser: c.Browser,
		Job:     c.Job,
		Fetch:   c.Fetch,
		Caches:  c.Caches,
		Iframes: c.Handlers,
		FailLog: c.FailLog,
	}

	var err error
	if c.Job.ScrapeType == config.SinglePage {
		err = c.runSinglePages(proc)
	} else {
		err = c.runWholeSites(proc)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Crawl finished: %d pages processed, %d failed.\n", c.pagesDone, c.pagesFailed)
	return nil
}

// runSinglePages processes each seed once, in order. The nil frontier
// keeps link discovery to rewrite jobs only; a page that cannot load is
// fatal because the operator asked for exactly these pages.
func (c *Crawler) runSinglePages(proc *Processor) error {
	fr := frontier.New(frontier.FIFO)
	for _, seed := range c.Job.URLs {
		fr.Add(urlutil.Defragment(seed))
	}

	first := true
	for !fr.IsEmpty() {
		url, _ := fr.Next()
		if !first {
			c.pause()
		}
		first = false

		if err := proc.ProcessPage(url, urlutil.BaseDomain(url), nil); err != nil {
			return err
		}
		c.pagesDone++
	}
	return nil
}

func (c *Crawler) runWholeSites(proc *Processor) error {
	for _, seed := range c.Job.URLs {
		if err := c.crawlSite(proc, seed); err != nil {
			return err
		}
	}
	return nil
}

// crawlSite seeds a frontier for one site and drains it. The durable
// queued store is restored first so an interrupted crawl resumes, then the
// seed and any sitemap-discovered pages enter through AddToFrontierIfNew,
// which filters out pages completed on earlier runs.
func (c *Crawler) crawlSite(proc *Processor, seed string) error {
	base := urlutil.BaseDomain(seed)
	fr := frontier.New(c.Order)

	if c.Job.UseCache {
		queued, err := c.Caches.Queued.URLs(base)
		if err != nil {
			return err
		}
		for _, url := range queued {
			fr.Add(url)
		}
		if len(queued) > 0 {
			fmt.Printf("Resuming %s with %d queued pages.\n", base, len(queued))
		}
	}

	if err := AddToFrontierIfNew(fr, c.Caches, seed, base); err != nil {
		return err
	}

	if c.Job.UseSitemap && c.Discover != nil {
		pages, err := c.Discover.Discover(seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sitemap discovery for %s failed: %v\n", base, err)
		}
		for _, url := range pages {
			if !urlutil.InDomain(base, url) {
				continue
			}
			if err := AddToFrontierIfNew(fr, c.Caches, url, base); err != nil {
				return err
			}
		}
	}

	first := true
	for !fr.IsEmpty() {
		url, _ := fr.Next()
		if err := c.Caches.Queued.Remove(url, base); err != nil {
			return err
		}
		if c.Discover != nil && !c.Discover.Allowed(url) {
			fmt.Printf("robots.txt disallows %s, skipping.\n", url)
			continue
		}

		if !first {
			c.pause()
		}
		first = false

		err := proc.ProcessPage(url, base, fr)
		var loadErr *PageLoadError
		switch {
		case err == nil:
			c.pagesDone++
		case errors.As(err, &loadErr):
			fmt.Fprintf(os.Stderr, "skipping unreachable page: %v\n", err)
			c.pagesFailed++
		default:
			return err
		}
	}
	return nil
}

// pause sleeps a random duration within the job's politeness bounds. A
// zero max disables pacing.
func (c *Crawler) pause() {
	if c.Job.TimeoutMax <= 0 {
		return
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	span := int64(c.Job.TimeoutMax - c.Job.TimeoutMin)
	delay := c.Job.TimeoutMin
	if span > 0 {
		delay += time.Duration(c.rng.Int63n(span + 1))
	}
	time.Sleep(delay)
}
