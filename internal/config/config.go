package config

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/minicrawler/internal/crawler"
	"github.com/nao1215/minicrawler/internal/fetcher"
	"github.com/nao1215/minicrawler/internal/site"
)

// Default configuration values.
const (
	// DefaultSite is the site crawled when none is given.
	DefaultSite = string(site.Quotes)

	// DefaultConcurrency is the number of workers.
	DefaultConcurrency = 5

	// DefaultMaxPages is the page budget per crawl.
	DefaultMaxPages = 50

	// DefaultDelay is the minimum spacing between fetch starts.
	// It is a politeness setting for the target site.
	DefaultDelay = 1 * time.Second

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "minicrawler"
)

// DefaultUserAgent is the User-Agent sent when none is configured.
// The version is filled in by the CLI at startup.
var DefaultUserAgent = AppName + "/dev"

// Config holds all options for one minicrawler invocation.
// It is populated from defaults, the config file, and CLI flags, in that
// order, and passed down explicitly.
type Config struct {
	// Site is the id of the site profile to crawl.
	Site string

	// Concurrency is the number of workers and the bound on fetches in flight.
	Concurrency int

	// MaxPages is the most pages the crawl will attempt.
	MaxPages int

	// Delay is the minimum spacing between the starts of consecutive fetches.
	Delay time.Duration

	// Timeout applies to each HTTP request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes. 0 uses the default.
	MaxBodySize int64

	// Headers are added to every request.
	Headers map[string]string

	// Seeds are extra start pages from the config file.
	Seeds []string

	// Proxy is an optional proxy URL (socks5:// or http://).
	Proxy string

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is written instead of stdout when set.
	ReportFile string

	// SaveToDB persists the run to the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	// Defaults to XDGDataDir.
	DBDir string

	// MetricsAddr, when set, serves Prometheus metrics on this address during the crawl.
	MetricsAddr string

	// ConfigFilePath is the config file given with --config.
	ConfigFilePath string

	// File is the loaded config file, if any.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Site:        DefaultSite,
		Concurrency: DefaultConcurrency,
		MaxPages:    DefaultMaxPages,
		Delay:       DefaultDelay,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for minicrawler.
// On Linux: ~/.local/share/minicrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for minicrawler.
// On Linux: ~/.config/minicrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile layers the file's defaults and the entry for c.Site over c.
// Call it before applying explicitly set CLI flags.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	d := f.Defaults
	if d.Timeout != nil {
		c.Timeout = d.Timeout.Std()
	}
	if d.UserAgent != "" {
		c.UserAgent = d.UserAgent
	}
	if d.Proxy != "" {
		c.Proxy = d.Proxy
	}

	sc := f.GetSiteConfig(strings.ToLower(c.Site))
	if sc.Concurrency != 0 {
		c.Concurrency = sc.Concurrency
	}
	if sc.MaxPages != 0 {
		c.MaxPages = sc.MaxPages
	}
	if sc.Delay != nil {
		c.Delay = sc.Delay.Std()
	}
	if len(sc.Seeds) > 0 {
		c.Seeds = sc.Seeds
	}
	if len(sc.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(sc.Headers))
		}
		maps.Copy(c.Headers, sc.Headers)
	}
}

// Validate checks the configuration and returns the first problem found.
// It runs before any fetch.
func (c *Config) Validate() error {
	if _, err := site.Resolve(c.Site); err != nil {
		return err
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// Registry returns the site registry with the config file overrides applied.
func (c *Config) Registry() (*site.Registry, error) {
	reg := site.NewRegistry()
	if c.File != nil {
		if err := c.File.ApplySites(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// CrawlConfig resolves the site profile and returns the crawler settings.
func (c *Config) CrawlConfig() (crawler.Config, error) {
	reg, err := c.Registry()
	if err != nil {
		return crawler.Config{}, err
	}
	profile, err := reg.Resolve(c.Site)
	if err != nil {
		return crawler.Config{}, err
	}
	return crawler.Config{
		Profile:     profile,
		Concurrency: c.Concurrency,
		MaxPages:    c.MaxPages,
		Delay:       c.Delay,
		Seeds:       c.Seeds,
	}, nil
}

// NewFetcher builds the HTTP fetcher described by the configuration.
func (c *Config) NewFetcher(logger *slog.Logger) (*fetcher.HTTPFetcher, error) {
	opts := []fetcher.Option{
		fetcher.WithTimeout(c.Timeout),
		fetcher.WithUserAgent(c.UserAgent),
		fetcher.WithHeaders(c.Headers),
	}
	if c.MaxBodySize > 0 {
		opts = append(opts, fetcher.WithMaxBodySize(c.MaxBodySize))
	}
	if c.Proxy != "" {
		opts = append(opts, fetcher.WithProxy(c.Proxy))
	}
	if logger != nil {
		opts = append(opts, fetcher.WithLogger(logger))
	}

	f, err := fetcher.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	return f, nil
}
