package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabihismail/website-ripper/internal/browser"
	"github.com/sabihismail/website-ripper/internal/cache"
	"github.com/sabihismail/website-ripper/internal/config"
	"github.com/sabihismail/website-ripper/internal/fetch"
	"github.com/sabihismail/website-ripper/internal/frontier"
	"github.com/sabihismail/website-ripper/internal/handlers"
	"github.com/sabihismail/website-ripper/internal/postscrape"
	"github.com/sabihismail/website-ripper/internal/scrape"
	"github.com/sabihismail/website-ripper/internal/sitemap"
)

var (
	workDir string
	lifo    bool
)

var runCmd = &cobra.Command{
	Use:   "run <job file>",
	Short: "Run a scrape job",
	Long:  `Run a scrape job described by a JSON or YAML job file`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := config.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load job file: %w", err)
		}
		return runJob(job)
	},
}

func runJob(job *config.Job) error {
	if job.PostScrapeOnly {
		return runPostScrape(job)
	}

	caches, err := cache.Open(workDir)
	if err != nil {
		return fmt.Errorf("failed to open caches: %w", err)
	}
	defer caches.Close()

	failLog, err := cache.OpenSeenLog(workDir, "failed_iframes.txt")
	if err != nil {
		return fmt.Errorf("failed to open failure log: %w", err)
	}
	defer failLog.Close()

	chrome, err := browser.NewChrome(job.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer chrome.Close()

	fetcher := fetch.New(caches.Downloads, job.UserAgent)

	order := frontier.FIFO
	if lifo {
		order = frontier.LIFO
	}

	crawler := &scrape.Crawler{
		Job:      job,
		Browser:  chrome,
		Fetch:    fetcher,
		Caches:   caches,
		Discover: sitemap.NewDiscoverer(fetcher.Client, job.UserAgent),
		Handlers: handlers.DefaultIframeHandlers(),
		FailLog:  failLog,
		Order:    order,
	}
	if err := crawler.Run(); err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	if len(job.PostScrapeJobs) > 0 {
		return runPostScrape(job)
	}
	return nil
}

func runPostScrape(job *config.Job) error {
	changed, err := postscrape.Run(job.OutDir, job.PostScrapeJobs)
	if err != nil {
		return fmt.Errorf("post-scrape pass failed: %w", err)
	}
	fmt.Printf("Post-scrape pass rewrote %d files.\n", changed)
	return nil
}

func init() {
	runCmd.Flags().StringVar(&workDir, "work-dir", ".", "Directory holding the cache stores")
	runCmd.Flags().BoolVar(&lifo, "lifo", false, "Drain the frontier most-recent-first")
}
