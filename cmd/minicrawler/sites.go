package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/minicrawler/internal/config"
)

// NewSitesCmd creates the sites command.
func NewSitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List the site profiles that can be crawled",
		Long: `Sites lists every site profile with the URL its crawl starts from.

Mirror URLs from the configuration file are applied, so the output shows
exactly where 'minicrawler run --site <id>' would go.`,
		Args: cobra.NoArgs,
		RunE: runSitesCmd,
	}

	cmd.Flags().String("config", "",
		"Configuration file path (default: .minicrawler in current or home directory)")

	return cmd
}

func runSitesCmd(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	file, err := loadConfigFile(configPath)
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.ApplyFile(file)
	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  %-8s  %s\n", "ID", "Start URL")
	for _, id := range reg.IDs() {
		p, err := reg.Resolve(id)
		if err != nil {
			return err
		}
		marker := " "
		if id == config.DefaultSite {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-8s  %s\n", marker, id, p.FirstPage())
	}
	fmt.Fprintln(out, "\n* default site")

	return nil
}
