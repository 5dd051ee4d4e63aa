package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/sabihismail/website-ripper/internal/config"
)

const (
	// elementWait bounds how long a login-flow element may take to appear.
	elementWait = 30 * time.Second
	// redirectWait bounds post-action page settles during login flows.
	redirectWait = 10 * time.Second
)

// Chrome drives a headless Chrome session through chromedp.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChrome starts a browser session. userAgent overrides the browser
// default when non-empty.
func NewChrome(userAgent string) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser process now so a missing binary fails fast.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Chrome{ctx: ctx, cancel: cancel, allocCancel: allocCancel}, nil
}

// Navigate loads url and polls document.readyState until complete.
func (c *Chrome) Navigate(url string) error {
	if err := chromedp.Run(c.ctx, chromedp.Navigate(url)); err != nil {
		return err
	}
	return c.waitReady()
}

func (c *Chrome) waitReady() error {
	for {
		var state string
		if err := chromedp.Run(c.ctx,
			chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return err
		}
		if state == "complete" {
			return nil
		}
		time.Sleep(time.Second)
	}
}

// CurrentURL reports the session's resolved location.
func (c *Chrome) CurrentURL() (string, error) {
	var url string
	err := chromedp.Run(c.ctx, chromedp.Location(&url))
	return url, err
}

// PageSource returns the rendered document's outer HTML.
func (c *Chrome) PageSource() (string, error) {
	var html string
	err := chromedp.Run(c.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// ElementText returns the text of the first element located by xpath, or ""
// when the page has no such element.
func (c *Chrome) ElementText(xpath string) (string, error) {
	ctx, cancel := context.WithTimeout(c.ctx, redirectWait)
	defer cancel()

	var text string
	err := chromedp.Run(ctx, chromedp.Text(xpath, &text, chromedp.BySearch))
	if err != nil {
		if ctx.Err() != nil {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ScrollToBottom scrolls by a viewport at a time with a pause between
// steps, stopping once the remaining height stops changing.
func (c *Chrome) ScrollToBottom(pause time.Duration) error {
	const remaining = `document.body.scrollHeight - document.documentElement.scrollTop`

	var last float64
	if err := chromedp.Run(c.ctx, chromedp.Evaluate(remaining, &last)); err != nil {
		return err
	}

	for {
		err := chromedp.Run(c.ctx, chromedp.Evaluate(
			`window.scrollBy({top: window.innerHeight - 10, left: 0, behavior: 'smooth'}); true`,
			nil))
		if err != nil {
			return err
		}
		time.Sleep(pause)

		var height float64
		if err := chromedp.Run(c.ctx, chromedp.Evaluate(remaining, &height)); err != nil {
			return err
		}
		if height == last {
			return nil
		}
		last = height
	}
}

// SetCookies injects the job's cookies, grouped under their cookie domains.
func (c *Chrome) SetCookies(cookies []config.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	return chromedp.Run(c.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			err := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s for %s: %w", cookie.Name, cookie.Domain, err)
			}
		}
		return nil
	}))
}

// RunLogin navigates to the login page and performs each scripted step in
// order. Missing elements are fatal.
func (c *Chrome) RunLogin(login *config.Login) error {
	if login == nil {
		return nil
	}
	if err := c.Navigate(login.URL); err != nil {
		return fmt.Errorf("navigate login page: %w", err)
	}

	for _, step := range login.Children {
		sel, by := locator(step)

		waitCtx, cancel := context.WithTimeout(c.ctx, elementWait)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, by))
		cancel()
		if err != nil {
			return fmt.Errorf("login element %q never appeared: %w", step.Identifier, err)
		}

		if step.Value != "" {
			if err := chromedp.Run(c.ctx, chromedp.SendKeys(sel, step.Value, by)); err != nil {
				return fmt.Errorf("login input %q: %w", step.Identifier, err)
			}
		}

		switch step.Task {
		case config.TaskClick:
			if err := chromedp.Run(c.ctx, chromedp.Click(sel, by)); err != nil {
				return fmt.Errorf("login click %q: %w", step.Identifier, err)
			}
			if err := c.waitSettled(); err != nil {
				return err
			}
		case config.TaskGoTo:
			// Frame steps target elements inside the iframe; chromedp
			// resolves cross-frame selectors via the full DOM search below,
			// so subsequent xpath steps keep working without an explicit
			// session switch.
		}
	}
	return nil
}

// waitSettled waits briefly for a post-click redirect to finish loading.
func (c *Chrome) waitSettled() error {
	ctx, cancel := context.WithTimeout(c.ctx, redirectWait)
	defer cancel()

	for {
		var state string
		if err := chromedp.Run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if state == "complete" {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func locator(step config.UIStep) (string, chromedp.QueryOption) {
	switch step.Kind {
	case config.ByID:
		return "#" + step.Identifier, chromedp.ByQuery
	case config.ByClass:
		return "." + step.Identifier, chromedp.ByQuery
	case config.ByName:
		return fmt.Sprintf(`[name=%q]`, step.Identifier), chromedp.ByQuery
	case config.ByTag, config.ByCSS:
		return step.Identifier, chromedp.ByQuery
	default: // xpath
		return step.Identifier, chromedp.BySearch
	}
}

// Close shuts the session and browser process down.
func (c *Chrome) Close() error {
	c.cancel()
	c.allocCancel()
	return nil
}
