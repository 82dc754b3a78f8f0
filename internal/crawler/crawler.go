package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/minicrawler/internal/fetcher"
	"github.com/nao1215/minicrawler/internal/frontier"
	"github.com/nao1215/minicrawler/internal/model"
	"github.com/nao1215/minicrawler/internal/ratelimit"
	"github.com/nao1215/minicrawler/internal/site"
)

// Config is the immutable description of one crawl.
type Config struct {
	// Profile is the site being crawled.
	Profile site.Profile

	// Concurrency is the number of workers, and so the maximum number of
	// fetches in flight at once.
	Concurrency int

	// MaxPages is the page budget: the most pages that will be attempted.
	MaxPages int

	// Delay is the minimum spacing between the starts of consecutive fetches
	// across the whole crawl.
	Delay time.Duration

	// Seeds are extra entry points enqueued after the profile's first page.
	// They count against MaxPages like any discovered URL.
	Seeds []string
}

// Validate checks the configuration. Errors wrap ErrConfiguration.
func (c Config) Validate() error {
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrInvalidConcurrency)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrInvalidMaxPages)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrInvalidDelay)
	}
	return nil
}

// Crawler orchestrates one crawl. A Crawler is single-use.
type Crawler struct {
	cfg      Config
	fetcher  fetcher.Fetcher
	limiter  *ratelimit.Limiter
	frontier *frontier.Frontier
	logger   *slog.Logger
	observer Observer

	// mu guards state, result, and started.
	mu      sync.Mutex
	state   State
	result  *model.Result
	started bool
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = l
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(c *Crawler) {
		c.observer = o
	}
}

// WithLimiter replaces the rate limiter built from Config.Delay.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Crawler) {
		c.limiter = l
	}
}

// New validates cfg and creates a crawler in the Idle state.
func New(cfg Config, f fetcher.Fetcher, opts ...Option) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrNoFetcher)
	}

	c := &Crawler{
		cfg:     cfg,
		fetcher: f,
		state:   StateIdle,
		result:  model.NewResult(cfg.Profile.ID.String()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(cfg.Delay)
	}
	return c, nil
}

// Crawl is a convenience wrapper around New and Run.
func Crawl(ctx context.Context, cfg Config, f fetcher.Fetcher, opts ...Option) (*model.Result, error) {
	c, err := New(cfg, f, opts...)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx)
}

// Run performs the crawl and blocks until every worker has exited.
//
// Per-page failures never abort the crawl; they are counted in the result.
// If ctx is cancelled, workers stop claiming new pages, the partial result
// is returned, and the error is ctx.Err().
func (c *Crawler) Run(ctx context.Context) (*model.Result, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	c.started = true
	c.result.StartedAt = time.Now()
	c.mu.Unlock()

	c.frontier = frontier.New(c.cfg.MaxPages)
	c.frontier.Seed(c.cfg.Profile.FirstPage())
	for _, u := range c.cfg.Seeds {
		c.frontier.Seed(u)
	}
	c.transition(StateSeeded)

	c.logger.Info("starting crawl",
		"site", c.cfg.Profile.ID,
		"startURL", c.cfg.Profile.FirstPage(),
		"concurrency", c.cfg.Concurrency,
		"maxPages", c.cfg.MaxPages,
		"delay", c.cfg.Delay,
	)

	g, gctx := errgroup.WithContext(ctx)
	c.transition(StateRunning)
	for id := range c.cfg.Concurrency {
		g.Go(func() error {
			c.work(gctx, id+1)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	c.transition(StateDone)

	c.mu.Lock()
	c.result.FinishedAt = time.Now()
	result := c.result
	c.mu.Unlock()

	c.logger.Info("crawl finished",
		"site", result.Site,
		"records", len(result.Records),
		"successful", result.Stats.SuccessfulPages,
		"failed", result.Stats.FailedPages,
		"elapsed", result.Duration(),
	)

	return result, ctx.Err()
}

// State returns the current lifecycle state.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the page counters.
func (c *Crawler) Stats() model.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Stats
}

// work is one worker's claim-process loop.
func (c *Crawler) work(ctx context.Context, id int) {
	logger := c.logger.With("worker", id)
	logger.Debug("worker started")
	defer logger.Debug("worker stopped")

	for {
		pageURL, ok := c.frontier.Claim(ctx)
		if !ok {
			return
		}
		if c.frontier.Exhausted() {
			c.transition(StateDraining)
		}

		start := time.Now()
		outcome := c.visit(ctx, pageURL)
		elapsed := time.Since(start)

		c.record(outcome)
		if outcome.Succeeded() {
			logger.Debug("page crawled", "url", pageURL, "records", len(outcome.Records), "next", outcome.NextURL)
		} else {
			logger.Warn("page failed", "url", pageURL, "error", outcome.Err)
		}
		c.observer.PageCompleted(outcome, elapsed)

		// Offers made in record must be visible before the page is released.
		c.frontier.Done()
	}
}

// visit fetches and parses one claimed page.
func (c *Crawler) visit(ctx context.Context, pageURL string) model.PageOutcome {
	outcome := model.PageOutcome{URL: pageURL}

	startedAt, err := c.limiter.Acquire(ctx)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	c.observer.FetchStarted(pageURL, startedAt)
	outcome.Fetched = true
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Records, outcome.NextURL, outcome.Err = c.parse(body)
	return outcome
}

// parse runs the site parser, converting a panic into ErrParse.
func (c *Crawler) parse(body string) (records []model.Record, next string, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, next = nil, ""
			err = fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()
	records, next = c.cfg.Profile.Parser.Parse(body, c.cfg.Profile.BaseURL)
	return records, next, nil
}

// record folds one outcome into the shared result and offers the next URL.
func (c *Crawler) record(outcome model.PageOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.Stats.TotalPagesAttempted++
	if !outcome.Succeeded() {
		c.result.Stats.FailedPages++
		c.result.Failures = append(c.result.Failures, model.PageFailure{
			URL:    outcome.URL,
			Reason: outcome.Err.Error(),
		})
		return
	}

	c.result.Stats.SuccessfulPages++
	c.result.Records = append(c.result.Records, outcome.Records...)
	if outcome.NextURL != "" {
		c.frontier.Offer(outcome.NextURL)
	}
}

// transition moves the state machine forward if to is a legal next state.
func (c *Crawler) transition(to State) {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	c.logger.Debug("crawl state changed", "from", from, "to", to)
	c.observer.StateChanged(from, to)
}
