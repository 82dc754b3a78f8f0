package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/minicrawler/internal/config"
	"github.com/nao1215/minicrawler/internal/crawler"
	"github.com/nao1215/minicrawler/internal/database"
	"github.com/nao1215/minicrawler/internal/fetcher"
	"github.com/nao1215/minicrawler/internal/log"
	"github.com/nao1215/minicrawler/internal/metrics"
	"github.com/nao1215/minicrawler/internal/model"
	"github.com/nao1215/minicrawler/internal/report"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl a site and report the records collected",
		Long: `Run crawls one site profile and prints what it collected.

The crawl starts at the profile's first page and follows each page's
"next" link. Up to --concurrency pages are fetched at once, the starts of
consecutive fetches are at least --delay apart, and no more than
--max-pages pages are attempted.

Examples:
  # Crawl quotes.toscrape.com with the defaults
  minicrawler run

  # Crawl books.toscrape.com with 3 workers, 10 pages, half a second apart
  minicrawler run --site books -c 3 -p 10 -d 0.5

  # Write a JSON report and keep the run in the history database
  minicrawler run --json -o reports/quotes.json --save

  # Expose Prometheus metrics while crawling
  minicrawler run --metrics-addr 127.0.0.1:9090

Configuration file (.minicrawler) example:
  defaults:
    delay: 1s
  sites:
    books:
      concurrency: 3
      maxPages: 20`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	// Crawl behavior flags
	cmd.Flags().StringP("site", "s", config.DefaultSite,
		"Site profile to crawl (see 'minicrawler sites')")
	cmd.Flags().IntP("concurrency", "c", config.DefaultConcurrency,
		"Number of concurrent workers")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to attempt")
	cmd.Flags().StringP("delay", "d", "1",
		"Minimum delay between request starts, in seconds or as a duration (e.g. 0.5, 500ms)")

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().StringP("user-agent", "A", "",
		"User-Agent header (default: minicrawler/<version>)")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header as "Key: Value" (repeatable)`)
	cmd.Flags().String("proxy", "",
		"Proxy URL (e.g. socks5://127.0.0.1:1080)")

	// Configuration file
	cmd.Flags().String("config", "",
		"Configuration file path (default: .minicrawler in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History and metrics flags
	cmd.Flags().Bool("save", false,
		"Save the run to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address during the crawl (e.g. 127.0.0.1:9090)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Reject bad settings before anything touches the network.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	cfg.Verbose = getVerboseFlag(cmd)
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	f, err := cfg.NewFetcher(logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling crawl")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, f, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig layers defaults, the config file, and explicitly set flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.UserAgent = userAgent()

	flags := cmd.Flags()
	var err error

	cfg.Site, err = flags.GetString("site")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}
	file, err := loadConfigFile(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyFile(file)

	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delay") {
		raw, err := flags.GetString("delay")
		if err != nil {
			return nil, err
		}
		if cfg.Delay, err = config.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("configuration error: --delay: %w", err)
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	rawHeaders, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	headers, err := parseHeaders(rawHeaders)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if len(headers) > 0 && cfg.Headers == nil {
		cfg.Headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		cfg.Headers[k] = v
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile finds and loads the configuration file.
// An explicitly given path that does not exist is an error; otherwise a
// missing file means no file.
func loadConfigFile(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return nil, nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return file, nil
}

// parseHeaders parses "Key: Value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Key: Value\"", h)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runCrawl crawls cfg.Site with f and writes the report to stdout or
// cfg.ReportFile. Progress lines go to stderr when stdout carries a
// machine-readable report.
//
// A cancelled crawl still reports and saves its partial result; the
// cancellation is returned afterwards.
func runCrawl(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, f fetcher.Fetcher, logger *slog.Logger) error {
	cc, err := cfg.CrawlConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	progress := stdout
	if (cfg.JSONReport || cfg.MarkdownReport) && cfg.ReportFile == "" {
		progress = stderr
	}

	fmt.Fprintf(progress, "Starting crawl of %s\n", cc.Profile.ID)
	fmt.Fprintf(progress, "Config: concurrency=%d, max pages=%d, delay=%s\n",
		cc.Concurrency, cc.MaxPages, cc.Delay)

	opts := []crawler.Option{crawler.WithLogger(logger)}

	stopMetrics := func() {}
	if cfg.MetricsAddr != "" {
		recorder := metrics.NewRecorder(string(cc.Profile.ID))
		srv, err := metrics.Listen(cfg.MetricsAddr, recorder, logger)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		fmt.Fprintf(progress, "Serving metrics on http://%s/metrics\n", srv.Addr())

		metricsCtx, metricsCancel := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Serve(metricsCtx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		stopMetrics = func() {
			metricsCancel()
			<-done
		}
		opts = append(opts, crawler.WithObserver(recorder))
	}

	c, err := crawler.New(cc, f, opts...)
	if err != nil {
		stopMetrics()
		return fmt.Errorf("configuration error: %w", err)
	}

	result, crawlErr := c.Run(ctx)
	stopMetrics()
	if result == nil {
		return crawlErr
	}

	if err := outputReport(stdout, cfg, result); err != nil {
		return err
	}

	if cfg.SaveToDB {
		// Interrupted runs are saved too.
		id, path, err := saveRun(context.WithoutCancel(ctx), cfg, cc, result)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Fprintf(progress, "Saved run %s to %s\n", id, path)
	}

	if crawlErr != nil {
		if errors.Is(crawlErr, context.Canceled) {
			return fmt.Errorf("crawl interrupted: %w", crawlErr)
		}
		return crawlErr
	}
	return nil
}

// outputReport writes the result in the selected format.
// With --output the report goes to the file and the plain summary still
// goes to stdout.
func outputReport(stdout io.Writer, cfg *config.Config, result *model.Result) error {
	summary := report.NewSimpleWriter(stdout, report.WithVerbose(cfg.Verbose))

	if cfg.ReportFile == "" {
		_, err := selectWriter(stdout, cfg).Write(result)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	w := report.NewMultiWriter(selectWriter(file, cfg), summary)
	if _, err := w.Write(result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(stdout, "Report written to %s\n", cfg.ReportFile)
	return nil
}

// selectWriter returns the report writer for the configured format.
func selectWriter(w io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// saveRun stores the result in the history database.
func saveRun(ctx context.Context, cfg *config.Config, cc crawler.Config, result *model.Result) (id, path string, err error) {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return "", "", fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err = db.SaveRun(ctx, result, database.RunSettings{
		Concurrency: cc.Concurrency,
		MaxPages:    cc.MaxPages,
		Delay:       cc.Delay,
		StartURL:    cc.Profile.FirstPage(),
	})
	if err != nil {
		return "", "", err
	}
	return id, db.Path(), nil
}
