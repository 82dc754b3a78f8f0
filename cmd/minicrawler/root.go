package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for minicrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minicrawler",
		Short: "Concurrent crawler for paginated listing sites",
		Long: `minicrawler crawls a paginated listing site with a bounded pool of workers.

It follows the "next page" link from a site's first page, extracts one record
per listing item, and stops when the pages run out or the page budget is
spent. Fetch starts are spaced by a global delay to stay polite to the site.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSitesCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
