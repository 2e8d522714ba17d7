package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clipsmith",
	Short: "Clip-and-publish pipeline for source videos",
	Long: `clipsmith downloads a source video, trims it to a time range and
publishes the clip to YouTube, tracking each job's lifecycle in a durable
store and optionally notifying subscribers by webhook.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
