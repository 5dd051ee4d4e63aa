package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sabihismail/website-ripper/internal/fsutil"
	"github.com/sabihismail/website-ripper/internal/urlutil"
)

// ErrNoRenditions is returned when an embedded player advertises no usable
// streams.
var ErrNoRenditions = errors.New("player config lists no renditions")

// Rendition is one quality/format variant of an embedded stream.
type Rendition struct {
	// Label carries the human quality tag, e.g. "1080p".
	Label string
	URL   string
}

var qualityDigits = regexp.MustCompile(`\d+`)

// qualityScore extracts the numeric quality from a rendition label;
// unlabeled renditions score zero.
func qualityScore(label string) int {
	m := qualityDigits.FindString(label)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// BestRendition picks the highest-scoring rendition; ties keep manifest
// order. ok is false for an empty list.
func BestRendition(renditions []Rendition) (best Rendition, ok bool) {
	bestScore := -1
	for _, r := range renditions {
		if score := qualityScore(r.Label); score > bestScore {
			best = r
			bestScore = score
			ok = true
		}
	}
	return best, ok
}

// playerConfig is the JSON blob embedded-player pages carry in an inline
// script, describing the available renditions.
type playerConfig struct {
	Progressive []Rendition
	DashURL     string
	Title       string
}

type rawPlayerConfig struct {
	Request struct {
		Files struct {
			Progressive []struct {
				Quality string `json:"quality"`
				URL     string `json:"url"`
			} `json:"progressive"`
			Dash *struct {
				DefaultCDN string `json:"default_cdn"`
				CDNs       map[string]struct {
					URL string `json:"url"`
				} `json:"cdns"`
			} `json:"dash"`
		} `json:"files"`
	} `json:"request"`
	Video struct {
		Title string `json:"title"`
	} `json:"video"`
}

// decodePlayerConfig validates and flattens a player config blob. Configs
// with neither progressive renditions nor a DASH manifest fail with
// ErrNoRenditions.
func decodePlayerConfig(blob string) (*playerConfig, error) {
	var raw rawPlayerConfig
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("parse player config: %w", err)
	}

	cfg := &playerConfig{Title: raw.Video.Title}
	for _, p := range raw.Request.Files.Progressive {
		if p.URL == "" {
			continue
		}
		cfg.Progressive = append(cfg.Progressive, Rendition{Label: p.Quality, URL: p.URL})
	}

	if dash := raw.Request.Files.Dash; dash != nil {
		cdn, ok := dash.CDNs[dash.DefaultCDN]
		if !ok || cdn.URL == "" {
			// Any CDN with a URL serves; the default is only a preference.
			for _, c := range dash.CDNs {
				if c.URL != "" {
					cdn = c
					ok = true
					break
				}
			}
		}
		if ok {
			cfg.DashURL = cdn.URL
		}
	}

	if len(cfg.Progressive) == 0 && cfg.DashURL == "" {
		return nil, ErrNoRenditions
	}
	return cfg, nil
}

// PlayerIframeHandler handles iframes embedding a known streaming-video
// player. The protocol: fetch the embedded document, find the player config
// JSON in its inline scripts, choose the best rendition, download it (stream
// reassembly when only segmented renditions exist) and emit a video
// substitution job.
type PlayerIframeHandler struct {
	// SrcMarkers identify provider iframes by src substring.
	SrcMarkers []string
}

// NewPlayerIframeHandler recognizes the default streaming providers.
func NewPlayerIframeHandler() *PlayerIframeHandler {
	return &PlayerIframeHandler{SrcMarkers: []string{"player.vimeo", "fast.wistia"}}
}

// CanHandle claims iframes whose src matches a known provider.
func (h *PlayerIframeHandler) CanHandle(sel *goquery.Selection) bool {
	src, _ := sel.Attr("src")
	if src == "" {
		return false
	}
	for _, marker := range h.SrcMarkers {
		if strings.Contains(src, marker) {
			return true
		}
	}
	return false
}

// Handle fetches the embedded player document and downloads its best
// rendition.
func (h *PlayerIframeHandler) Handle(ctx *Context, sel *goquery.Selection) ([]ScrapeJob, error) {
	src, _ := sel.Attr("src")
	playerURL := src
	if strings.HasPrefix(playerURL, "//") {
		playerURL = "https:" + playerURL
	} else if urlutil.IsRelative(playerURL) {
		playerURL = urlutil.Resolve(ctx.PageURL, playerURL)
	}
	if playerURL == "" {
		return nil, fmt.Errorf("iframe src %q unusable", src)
	}

	cfg, err := h.loadConfig(ctx, playerURL)
	if err != nil {
		return nil, err
	}

	outDir := fmt.Sprintf("%s/%s/videos", ctx.PageDir, ctx.Job.DataDirectory)

	var localPath string
	if best, ok := BestRendition(cfg.Progressive); ok {
		localPath, err = h.downloadProgressive(ctx, best, cfg.Title, outDir)
	} else {
		localPath, err = downloadSegmented(ctx, cfg.DashURL, outDir)
	}
	if err != nil {
		return nil, err
	}
	if localPath == "" {
		return nil, fmt.Errorf("no rendition downloaded from %s", playerURL)
	}

	rel := fsutil.RelativePath(localPath, ctx.PageDir)
	job := ScrapeJob{LocalPath: localPath}
	if id, ok := sel.Attr("id"); ok && id != "" {
		job.Kind = JobVideo
		job.Identifier = id
		job.HTML = fmt.Sprintf(`<video controls src="%s"></video>`, rel)
	} else {
		// Without an identifier there is nothing to splice; substituting the
		// iframe's src still points the stored page at the local file.
		job.Kind = JobURL
		job.OriginalText = src
	}
	return []ScrapeJob{job}, nil
}

// loadConfig scans the embedded document's inline scripts for the rendition
// table.
func (h *PlayerIframeHandler) loadConfig(ctx *Context, playerURL string) (*playerConfig, error) {
	body, err := ctx.Fetch.FetchBody(playerURL, ctx.DefaultHeaders())
	if err != nil {
		return nil, fmt.Errorf("fetch player document %s: %w", playerURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse player document %s: %w", playerURL, err)
	}

	var cfg *playerConfig
	var decodeErr error
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		text := script.Text()
		if !strings.Contains(text, "progressive") && !strings.Contains(text, "dash") {
			return true
		}
		blob, ok := ExtractJSON(text)
		if !ok {
			return true
		}
		parsed, err := decodePlayerConfig(blob)
		if err != nil {
			decodeErr = err
			return true
		}
		cfg = parsed
		decodeErr = nil
		return false
	})

	if cfg == nil {
		if decodeErr != nil {
			return nil, decodeErr
		}
		return nil, fmt.Errorf("no player config found in %s", playerURL)
	}
	return cfg, nil
}

func (h *PlayerIframeHandler) downloadProgressive(ctx *Context, best Rendition, title, outDir string) (string, error) {
	// Prefer the player's own video title over the page title.
	named := *ctx
	if title != "" {
		named.Title = title
	}
	return DownloadElement(&named, best.URL, outDir, 0, 1, nil)
}
