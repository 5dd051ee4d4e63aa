package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "website-ripper",
	Short: "Rip a website's content to local files",
	Long:  `Website Ripper - drives a browser through a site, downloads its media and rewrites pages to point at local copies`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(postScrapeCmd)
}
