// Package browser wraps the browser-automation dependency behind the
// capability set the crawl core needs. The core owns no browser policy
// beyond start/stop.
package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/sabihismail/website-ripper/internal/config"
	"github.com/sabihismail/website-ripper/internal/urlutil"
)

// ErrNavigationDiverged is returned when the browser never settles on the
// requested URL within the retry budget.
var ErrNavigationDiverged = errors.New("navigation never converged on requested URL")

// navigationRetries bounds the go-and-check loop. Fixed, not configurable.
const navigationRetries = 5

// Driver is the capability set the core requires from a browser session.
type Driver interface {
	// Navigate loads url and blocks until the document is ready.
	Navigate(url string) error
	// CurrentURL reports the resolved URL after redirects.
	CurrentURL() (string, error)
	// PageSource returns the rendered document's outer HTML.
	PageSource() (string, error)
	// ElementText returns the text of the first element matching an xpath,
	// or "" when absent.
	ElementText(xpath string) (string, error)
	// ScrollToBottom progressively scrolls, pausing between steps, until
	// the page height stops growing (lazy-loaded content settles).
	ScrollToBottom(pause time.Duration) error
	// SetCookies injects cookies before the crawl begins.
	SetCookies(cookies []config.Cookie) error
	// RunLogin executes a scripted login flow. A step whose element never
	// appears is a fatal error.
	RunLogin(login *config.Login) error
	// Close tears the session down.
	Close() error
}

// GoAndWait navigates with a bounded retry loop until the browser's
// resolved URL matches the request (trailing-slash-insensitive), then lets
// lazy content settle by scrolling to the bottom.
func GoAndWait(d Driver, url string, scrollPause time.Duration) error {
	for attempt := 0; attempt < navigationRetries; attempt++ {
		if err := d.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		current, err := d.CurrentURL()
		if err != nil {
			return fmt.Errorf("resolve current url: %w", err)
		}
		if urlutil.ExactMatch(current, url) {
			return d.ScrollToBottom(scrollPause)
		}
	}
	return fmt.Errorf("%w: %s", ErrNavigationDiverged, url)
}
