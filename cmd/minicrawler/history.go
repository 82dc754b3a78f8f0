package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/minicrawler/internal/config"
	"github.com/nao1215/minicrawler/internal/database"
	"github.com/nao1215/minicrawler/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show crawl runs saved with 'run --save'",
		Long: `History lists the crawl runs stored in the history database.

Use --id to show one run. A unique prefix of the run id is enough.

Examples:
  # List the 20 most recent runs
  minicrawler history

  # List runs of the books site only
  minicrawler history --site books

  # Show a run as Markdown
  minicrawler history --id 3f2a --markdown

  # Export the records of a run as a JSON array
  minicrawler history --id 3f2a --records > books.json

  # Delete a run
  minicrawler history --id 3f2a --delete`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("site", "s", "",
		"Only list runs of this site")
	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to list (0 for all)")
	cmd.Flags().String("id", "",
		"Show the run with this id or id prefix")
	cmd.Flags().BoolP("json", "j", false,
		"Show the run as JSON (requires --id)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Show the run as Markdown (requires --id)")
	cmd.Flags().Bool("records", false,
		"Print only the run's records as a JSON array (requires --id)")
	cmd.Flags().Bool("delete", false,
		"Delete the run (requires --id)")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown", "records", "delete")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	site     string
	limit    int
	id       string
	json     bool
	markdown bool
	records  bool
	delete   bool
	dbDir    string
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	if opts.id == "" && (opts.json || opts.markdown || opts.records || opts.delete) {
		return errors.New("--json, --markdown, --records and --delete require --id")
	}

	// History never creates the database; only run --save does.
	dbOpts := database.DefaultOptions()
	dbOpts.CreateIfNotExists = false
	db, err := database.Open(opts.dbDir, dbOpts)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No crawl history found.")
		fmt.Fprintln(cmd.OutOrStdout(), "\nUse 'minicrawler run --save' to record a run.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.id == "" {
		return listRuns(ctx, out, db, opts)
	}
	if opts.delete {
		return deleteRun(ctx, out, db, opts.id)
	}
	return showRun(ctx, out, db, opts)
}

func parseHistoryFlags(cmd *cobra.Command) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.site, err = flags.GetString("site"); err != nil {
		return opts, err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.id, err = flags.GetString("id"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.records, err = flags.GetBool("records"); err != nil {
		return opts, err
	}
	if opts.delete, err = flags.GetBool("delete"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	opts.site = strings.ToLower(strings.TrimSpace(opts.site))
	return opts, nil
}

// listRuns prints a table of saved runs, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.HistoryDB, opts historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.site, opts.limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		if opts.site != "" {
			fmt.Fprintf(out, "No crawl history found for %s\n", opts.site)
		} else {
			fmt.Fprintln(out, "No crawl history found.")
		}
		fmt.Fprintln(out, "\nUse 'minicrawler run --save' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-8s  %-19s  %7s  %4s  %4s  %s\n",
		"ID", "Site", "Started", "Records", "OK", "Fail", "Duration")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-8s  %-8s  %-19s  %7d  %4d  %4d  %s\n",
			shortID(run.ID),
			run.Site,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.RecordCount,
			run.Stats.SuccessfulPages,
			run.Stats.FailedPages,
			run.Duration().Round(time.Millisecond),
		)
	}

	fmt.Fprintln(out, "\nUse 'minicrawler history --id <id>' to show a run.")
	return nil
}

// showRun prints one run in the selected format.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, opts historyOptions) error {
	result, run, err := db.LoadResult(ctx, opts.id)
	if err != nil {
		return err
	}

	switch {
	case opts.records:
		_, err = report.NewJSONWriter(out, report.WithPrettyPrint()).WriteRecords(result.Records)
	case opts.json:
		_, err = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion())).Write(result)
	case opts.markdown:
		_, err = report.NewMarkdownWriter(out).Write(result)
	default:
		fmt.Fprintf(out, "Run %s\n", run.ID)
		fmt.Fprintf(out, "Settings: concurrency=%d, max pages=%d, delay=%s\n",
			run.Settings.Concurrency, run.Settings.MaxPages, run.Settings.Delay)
		if run.Settings.StartURL != "" {
			fmt.Fprintf(out, "Start URL: %s\n", run.Settings.StartURL)
		}
		_, err = report.NewSimpleWriter(out, report.WithVerbose(true)).Write(result)
	}
	return err
}

func deleteRun(ctx context.Context, out io.Writer, db *database.HistoryDB, idPrefix string) error {
	run, err := db.GetRun(ctx, idPrefix)
	if err != nil {
		return err
	}
	if err := db.DeleteRun(ctx, run.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted run %s\n", run.ID)
	return nil
}

// shortID returns the first eight characters of a run id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
