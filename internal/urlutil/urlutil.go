package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// Matches quoted or parenthesized URL-ish values in HTML and inline JS,
// e.g. src="...", url('...'), or url(...).
var urlPattern = regexp.MustCompile(`[=:] *(?:'([^']*)'|"([^"]*)")| *\(([^()]*)\)`)

// Defragment strips the #fragment suffix from a URL. The defragmented form
// is the canonical dedup key for the frontier and the caches.
func Defragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// IsRelative reports whether a href needs resolving against a base URL.
func IsRelative(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "www.") {
		return false
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return false
	}
	return true
}

// Resolve resolves href against base, returning an absolute defragmented URL.
// Empty string means the href is unusable (javascript:, mailto:, bare
// fragment, unparseable).
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return ""
	}

	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := b.ResolveReference(u)
	resolved.Fragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// BaseDomain extracts the host portion of a URL or bare domain string.
// A leading dot (cookie-domain form) is dropped.
func BaseDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme == "" && u.Host == "") {
		return strings.TrimPrefix(strings.TrimPrefix(raw, "."), "www.")
	}
	host := u.Hostname()
	return strings.TrimPrefix(host, "www.")
}

// PureDomain reduces a URL to its registrable-ish domain: the last two
// host labels. Used for the loose in-domain containment test.
func PureDomain(raw string) string {
	host := BaseDomain(raw)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// InDomain reports whether u belongs to the crawl rooted at base: either the
// base's pure domain occurs in u, or u is a relative reference.
func InDomain(base, u string) bool {
	pure := PureDomain(base)
	if pure != "" && strings.Contains(u, pure) {
		return true
	}
	return IsRelative(u)
}

// ExactMatch compares two URLs ignoring scheme, fragments and a trailing
// slash on the path. Used to decide whether navigation converged.
func ExactMatch(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host == ub.Host &&
		normPath(ua.Path) == normPath(ub.Path) &&
		ua.RawQuery == ub.RawQuery
}

func normPath(p string) string {
	if p == "/" {
		return ""
	}
	return strings.TrimSuffix(p, "/")
}

// Referer returns the requesting page's URL up to and including the third
// slash (scheme://host/), the shape sites expect in a Referer header.
func Referer(pageURL string) string {
	if i := nthIndex(pageURL, '/', 3); i >= 0 {
		return pageURL[:i+1]
	}
	return pageURL
}

// Origin returns scheme://host with no trailing slash.
func Origin(pageURL string) string {
	if i := nthIndex(pageURL, '/', 3); i >= 0 {
		return pageURL[:i]
	}
	return pageURL
}

func nthIndex(s string, c byte, n int) int {
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			count++
			if count == n {
				return i
			}
		}
	}
	return -1
}

// FoundURL is one absolute URL scraped out of raw HTML or inline script
// text. Original holds the protocol-relative spelling when the absolute
// form was synthesized from it, so the rewriter can match the page's text.
type FoundURL struct {
	URL      string
	Original string
}

// FindURLs scans raw HTML/JS for embedded absolute and protocol-relative
// URLs. Order of first appearance is preserved; duplicates collapse.
func FindURLs(html string) []FoundURL {
	var out []FoundURL
	seen := make(map[string]bool)

	for _, match := range urlPattern.FindAllStringSubmatch(html, -1) {
		candidate := firstGroup(match)
		if candidate == "" {
			continue
		}

		original := ""
		abs := candidate
		switch {
		case strings.HasPrefix(candidate, "//"):
			original = candidate
			abs = "https:" + candidate
		case !isAbsoluteHTTP(candidate):
			continue
		}

		if !isAbsoluteHTTP(abs) || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, FoundURL{URL: abs, Original: original})
	}
	return out
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && strings.Contains(u.Host, ".")
}

// SubDirectoryPath maps a page URL onto its site-relative output directory:
// the path of newURL below baseURL, slash-prefixed, optionally below
// prependDir. The ripper stores every page at <dir>/index.html.
func SubDirectoryPath(baseURL, newURL, prependDir string) string {
	newURL = strings.TrimSuffix(newURL, "/")
	base := BaseDomain(baseURL)

	sub := ""
	if base != "" {
		if i := strings.Index(newURL, base); i >= 0 {
			sub = newURL[i+len(base):]
		}
	}
	if !strings.HasPrefix(sub, "/") {
		sub = "/" + sub
	}

	if prependDir != "" {
		return strings.TrimSuffix(prependDir, "/") + sub
	}
	return sub
}
