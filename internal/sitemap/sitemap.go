// Package sitemap discovers crawl seeds from a site's robots.txt and
// sitemap files, and answers robots.txt allow checks for the crawler.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// maxSitemapFetches caps how many sitemap documents one discovery run
// will pull, so a cyclic or pathological sitemap index cannot pin the
// crawl in network I/O forever.
const maxSitemapFetches = 200

// Discoverer fetches and caches robots.txt data per host and walks
// sitemap indexes to collect page URLs.
type Discoverer struct {
	Client    *http.Client
	UserAgent string

	robotsCache sync.Map // map[string]*robotstxt.RobotsData
}

func NewDiscoverer(client *http.Client, userAgent string) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = "website-ripper"
	}
	return &Discoverer{Client: client, UserAgent: userAgent}
}

// urlset and sitemapindex share the same shape on the wire: a list of
// <loc> entries. One struct decodes both.
type sitemapDoc struct {
	XMLName xml.Name `xml:""`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Discover collects page URLs for the host of startURL. It tries the
// sitemap directives in robots.txt first, then the conventional
// sitemap.xml locations. Nested sitemap indexes are walked with a
// bounded worklist. An unreachable or missing sitemap is not an error;
// the result is simply empty.
func (d *Discoverer) Discover(startURL string) ([]string, error) {
	parsed, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	base := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	worklist := d.robotsSitemaps(base)
	worklist = append(worklist,
		base+"/sitemap.xml",
		base+"/sitemap_index.xml",
		base+"/sitemap-index.xml",
	)

	visited := make(map[string]bool)
	pages := make([]string, 0)
	fetches := 0

	for len(worklist) > 0 && fetches < maxSitemapFetches {
		next := worklist[0]
		worklist = worklist[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		fetches++

		doc, err := d.fetchSitemap(next)
		if err != nil {
			continue
		}
		for _, sm := range doc.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				worklist = append(worklist, loc)
			}
		}
		for _, u := range doc.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				pages = append(pages, loc)
			}
		}
	}

	return pages, nil
}

// robotsSitemaps returns the Sitemap: directives from the host's
// robots.txt, in file order.
func (d *Discoverer) robotsSitemaps(base string) []string {
	robots, err := d.robotsFor(base)
	if err != nil || robots == nil {
		return nil
	}
	return robots.Sitemaps
}

// Allowed reports whether robots.txt permits fetching the URL. Missing
// or unreadable robots.txt allows everything.
func (d *Discoverer) Allowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	robots, err := d.robotsFor(base)
	if err != nil || robots == nil {
		return true
	}
	return robots.TestAgent(parsed.Path, d.UserAgent)
}

func (d *Discoverer) robotsFor(base string) (*robotstxt.RobotsData, error) {
	if data, ok := d.robotsCache.Load(base); ok {
		robots, _ := data.(*robotstxt.RobotsData)
		return robots, nil
	}

	resp, err := d.get(base + "/robots.txt")
	if err != nil {
		d.robotsCache.Store(base, (*robotstxt.RobotsData)(nil))
		return nil, err
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		d.robotsCache.Store(base, (*robotstxt.RobotsData)(nil))
		return nil, err
	}

	d.robotsCache.Store(base, robots)
	return robots, nil
}

func (d *Discoverer) fetchSitemap(sitemapURL string) (*sitemapDoc, error) {
	resp, err := d.get(sitemapURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	return &doc, nil
}

func (d *Discoverer) get(rawURL string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.UserAgent)
	return d.Client.Do(req)
}
