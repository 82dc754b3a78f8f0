package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/minicrawler/internal/fetcher"
	"github.com/nao1215/minicrawler/internal/model"
	"github.com/nao1215/minicrawler/internal/parser"
	"github.com/nao1215/minicrawler/internal/ratelimit"
	"github.com/nao1215/minicrawler/internal/site"
)

const testBase = "http://chain.test"

// pageURL returns the URL of page n in a test chain.
func pageURL(n int) string {
	return fmt.Sprintf("%s/page/%d/", testBase, n)
}

// chainParser treats the body as "<records>|<next url>".
// Records are a comma-separated list of ids.
var chainParser = parser.Func(func(body, _ string) ([]model.Record, string) {
	ids, next, _ := strings.Cut(body, "|")
	records := make([]model.Record, 0)
	for _, id := range strings.Split(ids, ",") {
		if id != "" {
			records = append(records, model.Record{"id": id})
		}
	}
	return records, next
})

// stubFetcher serves a fixed set of pages and records every call.
type stubFetcher struct {
	pages map[string]string
	fail  map[string]error
	sleep time.Duration

	mu      sync.Mutex
	fetched []string

	current atomic.Int32
	peak    atomic.Int32
}

// newChain builds a linear chain of n pages, each with two records.
func newChain(n int) *stubFetcher {
	f := &stubFetcher{pages: make(map[string]string), fail: make(map[string]error)}
	for i := 1; i <= n; i++ {
		next := ""
		if i < n {
			next = pageURL(i + 1)
		}
		f.pages[pageURL(i)] = fmt.Sprintf("p%da,p%db|%s", i, i, next)
	}
	return f
}

func (f *stubFetcher) Fetch(ctx context.Context, u string) (string, error) {
	now := f.current.Add(1)
	defer f.current.Add(-1)
	for {
		peak := f.peak.Load()
		if now <= peak || f.peak.CompareAndSwap(peak, now) {
			break
		}
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, u)
	f.mu.Unlock()

	if f.sleep > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.sleep):
		}
	}
	if err, ok := f.fail[u]; ok {
		return "", err
	}
	body, ok := f.pages[u]
	if !ok {
		return "", &fetcher.StatusError{URL: u, StatusCode: 404}
	}
	return body, nil
}

func (f *stubFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func testConfig(concurrency, maxPages int, delay time.Duration) Config {
	return Config{
		Profile: site.Profile{
			ID:       "chain",
			BaseURL:  testBase,
			StartURL: pageURL(1),
			Parser:   chainParser,
		},
		Concurrency: concurrency,
		MaxPages:    maxPages,
		Delay:       delay,
	}
}

// checkStats asserts the accounting invariants of a result.
func checkStats(t *testing.T, r *model.Result, maxPages int) {
	t.Helper()
	s := r.Stats
	if s.SuccessfulPages+s.FailedPages != s.TotalPagesAttempted {
		t.Errorf("successful(%d) + failed(%d) != attempted(%d)", s.SuccessfulPages, s.FailedPages, s.TotalPagesAttempted)
	}
	if s.TotalPagesAttempted > maxPages {
		t.Errorf("attempted %d exceeds budget %d", s.TotalPagesAttempted, maxPages)
	}
	if len(r.Failures) != s.FailedPages {
		t.Errorf("expected %d failures listed, got %d", s.FailedPages, len(r.Failures))
	}
}

// TestCrawlFollowsChain tests a full traversal within budget.
func TestCrawlFollowsChain(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			t.Parallel()

			f := newChain(10)
			result, err := Crawl(context.Background(), testConfig(concurrency, 50, 0), f)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			checkStats(t, result, 50)
			if result.Stats.SuccessfulPages != 10 {
				t.Errorf("expected 10 successful pages, got %d", result.Stats.SuccessfulPages)
			}
			if len(result.Records) != 20 {
				t.Errorf("expected 20 records, got %d", len(result.Records))
			}
			if result.Site != "chain" {
				t.Errorf("expected site chain, got %q", result.Site)
			}
			if result.FinishedAt.Before(result.StartedAt) {
				t.Error("finished before started")
			}
			if calls := f.calls(); calls[0] != pageURL(1) {
				t.Errorf("expected first page first, got %q", calls[0])
			}
		})
	}
}

// TestCrawlBudget tests that the page budget caps attempts.
func TestCrawlBudget(t *testing.T) {
	t.Parallel()

	t.Run("max pages 1 never fetches the next page", func(t *testing.T) {
		t.Parallel()

		f := newChain(3)
		result, err := Crawl(context.Background(), testConfig(4, 1, 0), f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		checkStats(t, result, 1)
		if result.Stats.TotalPagesAttempted != 1 {
			t.Errorf("expected 1 attempted page, got %d", result.Stats.TotalPagesAttempted)
		}
		if calls := f.calls(); len(calls) != 1 || calls[0] != pageURL(1) {
			t.Errorf("expected only page 1 fetched, got %v", calls)
		}
	})

	t.Run("long chain stops at budget and drains", func(t *testing.T) {
		t.Parallel()

		rec := &recordingObserver{}
		f := newChain(100)
		c, err := New(testConfig(5, 7, 0), f, WithObserver(rec))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result, err := c.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		checkStats(t, result, 7)
		if result.Stats.TotalPagesAttempted != 7 {
			t.Errorf("expected 7 attempted, got %d", result.Stats.TotalPagesAttempted)
		}
		want := []State{StateSeeded, StateRunning, StateDraining, StateDone}
		if got := rec.states(); !equalStates(got, want) {
			t.Errorf("expected states %v, got %v", want, got)
		}
		if c.State() != StateDone {
			t.Errorf("expected done, got %v", c.State())
		}
	})
}

// TestCrawlDedup verifies a URL is never fetched twice, even when pages
// link back to earlier pages.
func TestCrawlDedup(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{
		pages: map[string]string{
			pageURL(1): "a|" + pageURL(2),
			pageURL(2): "b|" + pageURL(3),
			pageURL(3): "c|" + pageURL(1) + "#again",
		},
		fail: map[string]error{},
	}

	result, err := Crawl(context.Background(), testConfig(4, 20, 0), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkStats(t, result, 20)
	seen := make(map[string]bool)
	for _, u := range f.calls() {
		if seen[u] {
			t.Errorf("url fetched twice: %s", u)
		}
		seen[u] = true
	}
	if result.Stats.TotalPagesAttempted != 3 {
		t.Errorf("expected 3 attempted, got %d", result.Stats.TotalPagesAttempted)
	}
}

// newFanOut builds n independent single-page listings with no next link.
// Page 1 is the profile's first page; the rest are returned as seeds.
func newFanOut(n int) (*stubFetcher, []string) {
	f := &stubFetcher{pages: make(map[string]string), fail: make(map[string]error)}
	seeds := make([]string, 0, n-1)
	for i := 1; i <= n; i++ {
		f.pages[pageURL(i)] = fmt.Sprintf("p%d|", i)
		if i > 1 {
			seeds = append(seeds, pageURL(i))
		}
	}
	return f, seeds
}

// TestCrawlConcurrencyBound verifies fetch overlap reaches but never exceeds
// concurrency when more pages are pending than there are workers.
func TestCrawlConcurrencyBound(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			t.Parallel()

			const pages = 12
			f, seeds := newFanOut(pages)
			f.sleep = 30 * time.Millisecond

			cfg := testConfig(concurrency, pages, 0)
			cfg.Seeds = seeds
			result, err := Crawl(context.Background(), cfg, f)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			checkStats(t, result, pages)
			if result.Stats.SuccessfulPages != pages {
				t.Errorf("expected %d successful pages, got %d", pages, result.Stats.SuccessfulPages)
			}
			if peak := f.peak.Load(); int(peak) != concurrency {
				t.Errorf("peak concurrency %d, want %d", peak, concurrency)
			}
		})
	}
}

// TestCrawlSeedsRespectBudget verifies seeds beyond the budget are never fetched.
func TestCrawlSeedsRespectBudget(t *testing.T) {
	t.Parallel()

	f, seeds := newFanOut(6)
	cfg := testConfig(2, 4, 0)
	cfg.Seeds = append(seeds, pageURL(2))

	result, err := Crawl(context.Background(), cfg, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkStats(t, result, 4)
	if result.Stats.TotalPagesAttempted != 4 {
		t.Errorf("expected 4 pages attempted, got %d", result.Stats.TotalPagesAttempted)
	}
	seen := make(map[string]bool)
	for _, u := range f.calls() {
		if seen[u] {
			t.Errorf("%s fetched twice", u)
		}
		seen[u] = true
	}
	for _, u := range []string{pageURL(5), pageURL(6)} {
		if seen[u] {
			t.Errorf("%s is beyond the budget but was fetched", u)
		}
	}
}

// TestCrawlRateLimit verifies fetch starts are spaced by the delay.
func TestCrawlRateLimit(t *testing.T) {
	t.Parallel()

	const delay = 15 * time.Millisecond

	t.Run("linear chain", func(t *testing.T) {
		t.Parallel()

		f := newChain(5)
		obs := &recordingObserver{}
		result, err := Crawl(context.Background(), testConfig(4, 5, delay), f, WithObserver(obs))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		checkStats(t, result, 5)
		checkSpacing(t, obs.fetchStarts(), 5, delay)
	})

	t.Run("many pending pages", func(t *testing.T) {
		t.Parallel()

		f, seeds := newFanOut(10)
		cfg := testConfig(6, 10, delay)
		cfg.Seeds = seeds
		obs := &recordingObserver{}
		result, err := Crawl(context.Background(), cfg, f, WithObserver(obs))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		checkStats(t, result, 10)
		checkSpacing(t, obs.fetchStarts(), 10, delay)
	})
}

// checkSpacing asserts there are n fetch starts, each at least delay after
// the previous one.
func checkSpacing(t *testing.T, starts []time.Time, n int, delay time.Duration) {
	t.Helper()
	if len(starts) != n {
		t.Fatalf("expected %d fetch starts, got %d", n, len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < delay {
			t.Errorf("gap %d was %v, want >= %v", i, gap, delay)
		}
	}
}

// TestCrawlFailures tests per-page failure accounting.
func TestCrawlFailures(t *testing.T) {
	t.Parallel()

	t.Run("failure on page 2 of 3 ends the chain", func(t *testing.T) {
		t.Parallel()

		f := newChain(3)
		f.fail[pageURL(2)] = fetcher.ErrTimeout

		result, err := Crawl(context.Background(), testConfig(2, 10, 0), f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		checkStats(t, result, 10)
		if result.Stats.SuccessfulPages != 1 || result.Stats.FailedPages != 1 {
			t.Errorf("expected 1 successful and 1 failed, got %+v", result.Stats)
		}
		if result.Stats.TotalPagesAttempted != 2 {
			t.Errorf("expected 2 attempted, got %d", result.Stats.TotalPagesAttempted)
		}
		for _, u := range f.calls() {
			if u == pageURL(3) {
				t.Error("page 3 must not be fetched: its url is only known from page 2")
			}
		}
		if result.Failures[0].URL != pageURL(2) {
			t.Errorf("expected failure for page 2, got %+v", result.Failures[0])
		}
	})

	t.Run("every page failing still completes", func(t *testing.T) {
		t.Parallel()

		f := newChain(3)
		f.fail[pageURL(1)] = fetcher.ErrNetwork

		result, err := Crawl(context.Background(), testConfig(2, 10, 0), f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Stats.FailedPages != result.Stats.TotalPagesAttempted {
			t.Errorf("expected all attempted pages failed, got %+v", result.Stats)
		}
		if len(result.Records) != 0 {
			t.Errorf("expected no records, got %d", len(result.Records))
		}
	})

	t.Run("parser panic is a failed page", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(1, 5, 0)
		cfg.Profile.Parser = parser.Func(func(string, string) ([]model.Record, string) {
			panic("boom")
		})

		result, err := Crawl(context.Background(), cfg, newChain(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Stats.FailedPages != 1 || result.Stats.TotalPagesAttempted != 1 {
			t.Errorf("unexpected stats %+v", result.Stats)
		}
		if !strings.Contains(result.Failures[0].Reason, ErrParse.Error()) {
			t.Errorf("expected parse failure reason, got %q", result.Failures[0].Reason)
		}
	})
}

// TestCrawlEmptyParser covers a parser that never finds anything.
func TestCrawlEmptyParser(t *testing.T) {
	t.Parallel()

	empty := parser.Func(func(string, string) ([]model.Record, string) {
		return []model.Record{}, ""
	})

	tests := []struct {
		name           string
		fail           bool
		wantSuccessful int
		wantFailed     int
	}{
		{"fetch succeeds", false, 1, 0},
		{"fetch fails", true, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newChain(3)
			if tt.fail {
				f.fail[pageURL(1)] = fetcher.ErrNetwork
			}
			cfg := testConfig(3, 10, 0)
			cfg.Profile.Parser = empty

			result, err := Crawl(context.Background(), cfg, f)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Stats.TotalPagesAttempted != 1 {
				t.Errorf("expected 1 attempted page, got %d", result.Stats.TotalPagesAttempted)
			}
			if result.Stats.SuccessfulPages != tt.wantSuccessful || result.Stats.FailedPages != tt.wantFailed {
				t.Errorf("unexpected stats %+v", result.Stats)
			}
			if len(result.Records) != 0 {
				t.Errorf("expected no records, got %d", len(result.Records))
			}
		})
	}
}

// TestCrawlConfiguration tests that invalid configurations fail before any fetch.
func TestCrawlConfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"negative delay", func(c *Config) { c.Delay = -time.Second }, ErrInvalidDelay},
		{"profile without parser", func(c *Config) { c.Profile.Parser = nil }, site.ErrInvalidProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newChain(1)
			cfg := testConfig(1, 1, 0)
			tt.mutate(&cfg)

			_, err := Crawl(context.Background(), cfg, f)
			if !errors.Is(err, ErrConfiguration) || !errors.Is(err, tt.want) {
				t.Errorf("expected ErrConfiguration wrapping %v, got %v", tt.want, err)
			}
			if len(f.calls()) != 0 {
				t.Error("expected no fetches")
			}
		})
	}

	t.Run("nil fetcher", func(t *testing.T) {
		t.Parallel()

		_, err := New(testConfig(1, 1, 0), nil)
		if !errors.Is(err, ErrNoFetcher) {
			t.Errorf("expected ErrNoFetcher, got %v", err)
		}
	})
}

// TestCrawlRunOnce tests that a crawler is single-use.
func TestCrawlRunOnce(t *testing.T) {
	t.Parallel()

	c, err := New(testConfig(1, 1, 0), newChain(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle before run, got %v", c.State())
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

// TestCrawlCancel tests interruption of a running crawl.
func TestCrawlCancel(t *testing.T) {
	t.Parallel()

	f := newChain(1000)
	ctx, cancel := context.WithCancel(context.Background())

	obs := &recordingObserver{onPage: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	result, err := Crawl(ctx, testConfig(2, 1000, 0), f, WithObserver(obs))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil {
		t.Fatal("expected partial result")
	}
	checkStats(t, result, 1000)
	if result.Stats.TotalPagesAttempted >= 1000 {
		t.Errorf("expected crawl to stop early, attempted %d", result.Stats.TotalPagesAttempted)
	}
}

// TestStateString tests state names.
func TestStateString(t *testing.T) {
	t.Parallel()

	names := map[State]string{
		StateIdle:     "idle",
		StateSeeded:   "seeded",
		StateRunning:  "running",
		StateDraining: "draining",
		StateDone:     "done",
		State(99):     "unknown",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
	if canTransition(StateDone, StateRunning) {
		t.Error("done must be terminal")
	}
}

// recordingObserver captures state changes, fetch start times, and counts
// completed pages.
type recordingObserver struct {
	mu     sync.Mutex
	seen   []State
	starts []time.Time
	pages  int
	onPage func(n int)
}

func (r *recordingObserver) StateChanged(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, to)
}

func (r *recordingObserver) FetchStarted(_ string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, at)
}

// fetchStarts returns the recorded fetch start times in order.
func (r *recordingObserver) fetchStarts() []time.Time {
	r.mu.Lock()
	starts := append([]time.Time(nil), r.starts...)
	r.mu.Unlock()
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts
}

func (r *recordingObserver) PageCompleted(model.PageOutcome, time.Duration) {
	r.mu.Lock()
	r.pages++
	n := r.pages
	r.mu.Unlock()
	if r.onPage != nil {
		r.onPage(n)
	}
}

func (r *recordingObserver) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.seen...)
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestCrawlSharedLimiter tests that every fetch goes through the supplied limiter.
func TestCrawlSharedLimiter(t *testing.T) {
	t.Parallel()

	f := newChain(4)
	limiter := ratelimit.New(0)

	c, err := New(testConfig(2, 10, time.Hour), f, WithLimiter(limiter))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Stats.SuccessfulPages != 4 {
		t.Errorf("expected 4 successful pages, got %d", result.Stats.SuccessfulPages)
	}
	if got := limiter.Acquired(); got != 4 {
		t.Errorf("expected 4 acquisitions, got %d", got)
	}
	if limiter.LastStart().IsZero() {
		t.Error("expected the limiter to record a start time")
	}
}
