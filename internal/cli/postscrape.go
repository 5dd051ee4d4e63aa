package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabihismail/website-ripper/internal/config"
)

var postScrapeCmd = &cobra.Command{
	Use:   "postscrape <job file>",
	Short: "Apply a job's post-scrape replacements without crawling",
	Long:  `Sweep the job's output directory and apply its text-replacement rules to every .html file`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := config.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load job file: %w", err)
		}
		return runPostScrape(job)
	},
}
