package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJob(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write job file: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeJob(t, "job.json", `{
		"scrape_type": "ALL_PAGES",
		"urls": ["https://example.com"],
		"out_dir": "out",
		"scrape_elements": ["IMAGES", "IFRAMES"],
		"timeout_min": 1,
		"timeout_max": 2.5,
		"substrings_to_skip": ["/private/"],
		"user_agent": "test-agent"
	}`)

	job, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load job: %v", err)
	}

	if job.ScrapeType != AllPages {
		t.Errorf("Expected ALL_PAGES, got %v", job.ScrapeType)
	}
	if !job.Elements.Has(ElementImages) || !job.Elements.Has(ElementIframes) {
		t.Error("Expected images and iframes elements set")
	}
	if job.Elements.Has(ElementVideos) {
		t.Error("Expected videos element unset")
	}
	if job.TimeoutMin != time.Second || job.TimeoutMax != 2500*time.Millisecond {
		t.Errorf("Expected timeouts 1s/2.5s, got %v/%v", job.TimeoutMin, job.TimeoutMax)
	}
	if job.UserAgent != "test-agent" {
		t.Errorf("Expected user agent carried, got %q", job.UserAgent)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeJob(t, "job.yaml", `
scrape_type: SINGLE_PAGE
urls:
  - https://example.com/page
out_dir: out
cookies:
  - name: session
    value: abc
    domain: example.com
`)

	job, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load job: %v", err)
	}
	if job.ScrapeType != SinglePage {
		t.Errorf("Expected SINGLE_PAGE, got %v", job.ScrapeType)
	}
	if len(job.Cookies) != 1 || job.Cookies[0].Path != "/" {
		t.Errorf("Expected one cookie with default path, got %+v", job.Cookies)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeJob(t, "job.json", `{
		"scrape_type": "ALL_PAGES",
		"urls": ["https://example.com"],
		"out_dir": "out"
	}`)

	job, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load job: %v", err)
	}
	if job.Elements != ElementsAll {
		t.Error("Expected all elements by default")
	}
	if !job.UseSitemap || !job.UseCache {
		t.Error("Expected sitemap and cache enabled by default")
	}
	if job.DataDirectory != "data" {
		t.Errorf("Expected default data directory, got %q", job.DataDirectory)
	}
	if job.ScrollPause != time.Second {
		t.Errorf("Expected default scroll pause, got %v", job.ScrollPause)
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	cases := map[string]string{
		"no scrape_type": `{"urls": ["https://example.com"], "out_dir": "out"}`,
		"no urls":        `{"scrape_type": "ALL_PAGES", "out_dir": "out"}`,
		"no out_dir":     `{"scrape_type": "ALL_PAGES", "urls": ["https://example.com"]}`,
		"bad cookie":     `{"scrape_type": "ALL_PAGES", "urls": ["https://example.com"], "out_dir": "out", "cookies": [{"value": "x"}]}`,
		"bad login step": `{"scrape_type": "ALL_PAGES", "urls": ["https://example.com"], "out_dir": "out", "login": {"url": "https://example.com/login", "children": [{"kind": "id"}]}}`,
	}

	for name, content := range cases {
		path := writeJob(t, "job.json", content)
		_, err := Load(path)
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("%s: expected ErrMissingField, got %v", name, err)
		}
	}
}

func TestLoadInvalidTimeoutBounds(t *testing.T) {
	path := writeJob(t, "job.json", `{
		"scrape_type": "ALL_PAGES",
		"urls": ["https://example.com"],
		"out_dir": "out",
		"timeout_min": 5,
		"timeout_max": 1
	}`)

	if _, err := Load(path); err == nil {
		t.Error("Expected error when timeout_min exceeds timeout_max")
	}
}

func TestLoadLoginScript(t *testing.T) {
	path := writeJob(t, "job.json", `{
		"scrape_type": "SINGLE_PAGE",
		"urls": ["https://example.com"],
		"out_dir": "out",
		"login": {
			"url": "https://example.com/login",
			"children": [
				{"id": "user", "kind": "name", "value": "me"},
				{"id": "//button[@type='submit']", "kind": "xpath", "task": "CLICK"}
			]
		}
	}`)

	job, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load job: %v", err)
	}
	if job.Login == nil || len(job.Login.Children) != 2 {
		t.Fatalf("Expected two login steps, got %+v", job.Login)
	}
	if job.Login.Children[0].Kind != ByName {
		t.Errorf("Expected name locator, got %q", job.Login.Children[0].Kind)
	}
	if job.Login.Children[1].Task != TaskClick {
		t.Errorf("Expected click task, got %v", job.Login.Children[1].Task)
	}
}

func TestIgnoredIframe(t *testing.T) {
	job := &Job{IframeIgnores: []IframeIgnoreRule{{Substring: "ads.", Category: "ads"}}}
	if !job.IgnoredIframe("https://ADS.example.com/frame") {
		t.Error("Expected case-insensitive substring match")
	}
	if job.IgnoredIframe("https://player.example.com/frame") {
		t.Error("Expected non-matching identifier not ignored")
	}
}
