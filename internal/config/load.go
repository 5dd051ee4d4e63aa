package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Raw document shapes. Decoding stays dumb; each decode* function below owns
// required-field validation for its entity, so a missing field fails with a
// named error instead of a zero value slipping through.

type rawJob struct {
	ScrapeType       string             `json:"scrape_type" yaml:"scrape_type"`
	URLs             []string           `json:"urls" yaml:"urls"`
	OutDir           string             `json:"out_dir" yaml:"out_dir"`
	ScrapeElements   []string           `json:"scrape_elements" yaml:"scrape_elements"`
	UseSitemap       *bool              `json:"use_sitemap" yaml:"use_sitemap"`
	UseCache         *bool              `json:"use_cache" yaml:"use_cache"`
	DataDirectory    string             `json:"data_directory" yaml:"data_directory"`
	TimeoutMinSec    float64            `json:"timeout_min" yaml:"timeout_min"`
	TimeoutMaxSec    float64            `json:"timeout_max" yaml:"timeout_max"`
	ScrollPauseSec   float64            `json:"scroll_pause" yaml:"scroll_pause"`
	ContentName      *rawContentName    `json:"content_name" yaml:"content_name"`
	Cookies          []rawCookie        `json:"cookies" yaml:"cookies"`
	Login            *rawLogin          `json:"login" yaml:"login"`
	SubstringsToSkip []string           `json:"substrings_to_skip" yaml:"substrings_to_skip"`
	IframeIgnores    []rawIframeIgnore  `json:"iframe_ignores" yaml:"iframe_ignores"`
	PostScrapeJobs   []rawPostScrapeJob `json:"post_scrape_jobs" yaml:"post_scrape_jobs"`
	PostScrapeOnly   bool               `json:"post_scrape_jobs_only" yaml:"post_scrape_jobs_only"`
	UserAgent        string             `json:"user_agent" yaml:"user_agent"`
}

type rawContentName struct {
	ID     string `json:"id" yaml:"id"`
	Prefix string `json:"prefix" yaml:"prefix"`
}

type rawCookie struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
	Domain string `json:"domain" yaml:"domain"`
	Path   string `json:"path" yaml:"path"`
}

type rawLogin struct {
	URL      string      `json:"url" yaml:"url"`
	Children []rawUIStep `json:"children" yaml:"children"`
}

type rawUIStep struct {
	ID    string `json:"id" yaml:"id"`
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
	Task  string `json:"task" yaml:"task"`
}

type rawIframeIgnore struct {
	Substring string `json:"substring" yaml:"substring"`
	Category  string `json:"category" yaml:"category"`
}

type rawPostScrapeJob struct {
	Type       string `json:"type" yaml:"type"`
	Identifier string `json:"id" yaml:"id"`
	Text       string `json:"text" yaml:"text"`
}

// Load reads and validates a job file. The extension picks the codec:
// .yaml/.yml decode with yaml.v2, everything else as JSON.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var raw rawJob
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse job file %s: %w", path, err)
		}
	default:
		if err = json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse job file %s: %w", path, err)
		}
	}

	return decodeJob(&raw)
}

func decodeJob(raw *rawJob) (*Job, error) {
	if raw.ScrapeType == "" {
		return nil, fmt.Errorf("%w: scrape_type", ErrMissingField)
	}

	job := &Job{
		URLs:             raw.URLs,
		OutDir:           raw.OutDir,
		DataDirectory:    raw.DataDirectory,
		UseSitemap:       raw.UseSitemap == nil || *raw.UseSitemap,
		UseCache:         raw.UseCache == nil || *raw.UseCache,
		TimeoutMin:       secondsToDuration(raw.TimeoutMinSec),
		TimeoutMax:       secondsToDuration(raw.TimeoutMaxSec),
		ScrollPause:      secondsToDuration(raw.ScrollPauseSec),
		SubstringsToSkip: raw.SubstringsToSkip,
		PostScrapeOnly:   raw.PostScrapeOnly,
		UserAgent:        raw.UserAgent,
	}

	switch strings.ToUpper(raw.ScrapeType) {
	case "SINGLE_PAGE":
		job.ScrapeType = SinglePage
	case "ALL_PAGES":
		job.ScrapeType = AllPages
	default:
		return nil, fmt.Errorf("invalid scrape_type %q", raw.ScrapeType)
	}

	if job.DataDirectory == "" {
		job.DataDirectory = "data"
	}
	if job.ScrollPause == 0 {
		job.ScrollPause = time.Second
	}

	elements, err := decodeElements(raw.ScrapeElements)
	if err != nil {
		return nil, err
	}
	job.Elements = elements

	if raw.ContentName != nil {
		cn, err := decodeContentName(raw.ContentName)
		if err != nil {
			return nil, err
		}
		job.ContentName = cn
	}

	for i := range raw.Cookies {
		cookie, err := decodeCookie(&raw.Cookies[i])
		if err != nil {
			return nil, err
		}
		job.Cookies = append(job.Cookies, cookie)
	}

	if raw.Login != nil {
		login, err := decodeLogin(raw.Login)
		if err != nil {
			return nil, err
		}
		job.Login = login
	}

	for i := range raw.IframeIgnores {
		rule := raw.IframeIgnores[i]
		if rule.Substring == "" {
			return nil, fmt.Errorf("%w: iframe_ignores[%d].substring", ErrMissingField, i)
		}
		job.IframeIgnores = append(job.IframeIgnores, IframeIgnoreRule(rule))
	}

	for i := range raw.PostScrapeJobs {
		psj, err := decodePostScrapeJob(&raw.PostScrapeJobs[i], i)
		if err != nil {
			return nil, err
		}
		job.PostScrapeJobs = append(job.PostScrapeJobs, psj)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func decodeElements(names []string) (Elements, error) {
	if len(names) == 0 {
		return ElementsAll, nil
	}
	var mask Elements
	for _, name := range names {
		switch strings.ToUpper(name) {
		case "VIDEOS":
			mask |= ElementVideos
		case "IMAGES":
			mask |= ElementImages
		case "HTML":
			mask |= ElementHTML
		case "IFRAMES":
			mask |= ElementIframes
		default:
			return 0, fmt.Errorf("invalid scrape element %q", name)
		}
	}
	return mask, nil
}

func decodeContentName(raw *rawContentName) (*ContentName, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("%w: content_name.id", ErrMissingField)
	}
	return &ContentName{Identifier: raw.ID, Prefix: raw.Prefix}, nil
}

func decodeCookie(raw *rawCookie) (Cookie, error) {
	if raw.Name == "" {
		return Cookie{}, fmt.Errorf("%w: cookie.name", ErrMissingField)
	}
	if raw.Domain == "" {
		return Cookie{}, fmt.Errorf("%w: cookie.domain (cookie %q)", ErrMissingField, raw.Name)
	}
	path := raw.Path
	if path == "" {
		path = "/"
	}
	return Cookie{Name: raw.Name, Value: raw.Value, Domain: raw.Domain, Path: path}, nil
}

func decodeLogin(raw *rawLogin) (*Login, error) {
	if raw.URL == "" {
		return nil, fmt.Errorf("%w: login.url", ErrMissingField)
	}
	login := &Login{URL: raw.URL}
	for i := range raw.Children {
		step, err := decodeUIStep(&raw.Children[i], i)
		if err != nil {
			return nil, err
		}
		login.Children = append(login.Children, step)
	}
	return login, nil
}

func decodeUIStep(raw *rawUIStep, i int) (UIStep, error) {
	if raw.ID == "" {
		return UIStep{}, fmt.Errorf("%w: login.children[%d].id", ErrMissingField, i)
	}

	step := UIStep{Identifier: raw.ID, Value: raw.Value}

	switch LocatorKind(strings.ToLower(raw.Kind)) {
	case ByID, ByClass, ByName, ByTag, ByXPath, ByCSS:
		step.Kind = LocatorKind(strings.ToLower(raw.Kind))
	case "":
		step.Kind = ByID
	default:
		return UIStep{}, fmt.Errorf("invalid locator kind %q in login.children[%d]", raw.Kind, i)
	}

	switch strings.ToUpper(raw.Task) {
	case "":
		step.Task = TaskNone
	case "GO_TO":
		step.Task = TaskGoTo
	case "CLICK":
		step.Task = TaskClick
	default:
		return UIStep{}, fmt.Errorf("invalid task %q in login.children[%d]", raw.Task, i)
	}

	return step, nil
}

func decodePostScrapeJob(raw *rawPostScrapeJob, i int) (PostScrapeJob, error) {
	if strings.ToUpper(raw.Type) != "REPLACE" {
		return PostScrapeJob{}, fmt.Errorf("invalid post_scrape_jobs[%d].type %q", i, raw.Type)
	}
	if raw.Identifier == "" {
		return PostScrapeJob{}, fmt.Errorf("%w: post_scrape_jobs[%d].id", ErrMissingField, i)
	}
	return PostScrapeJob{Type: PostScrapeReplace, Identifier: raw.Identifier, Text: raw.Text}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
