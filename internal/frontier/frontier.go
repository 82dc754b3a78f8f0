package frontier

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// Frontier is a FIFO queue of pending URLs with deduplication and a budget.
// All methods are safe for concurrent use; the queue, the dedup set, and the
// counters change together under one mutex.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	// queue holds URLs in offer order.
	queue []string

	// seen contains the normalized form of every URL ever enqueued.
	seen map[string]struct{}

	// budget caps the number of URLs that may ever be enqueued.
	budget int

	// claimed counts URLs handed out by Claim or TryClaim.
	claimed int

	// inFlight counts claimed URLs whose processing has not been marked Done.
	inFlight int

	// drained is set once the frontier has been observed empty with nothing in flight.
	drained bool
}

// Snapshot is a point-in-time view of the frontier counters.
type Snapshot struct {
	Queued   int
	Seen     int
	Claimed  int
	InFlight int
	Budget   int
}

// New creates a frontier that accepts at most budget URLs.
func New(budget int) *Frontier {
	if budget < 0 {
		budget = 0
	}
	f := &Frontier{
		queue:  make([]string, 0),
		seen:   make(map[string]struct{}),
		budget: budget,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Seed inserts the start URL. It is a no-op when the budget is zero.
func (f *Frontier) Seed(rawURL string) bool {
	return f.Offer(rawURL)
}

// Offer enqueues rawURL if the budget still has room and the URL has never
// been enqueued before. It reports whether the URL was accepted; a rejected
// offer changes nothing.
func (f *Frontier) Offer(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}
	key := Normalize(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.drained || len(f.seen) >= f.budget {
		return false
	}
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, rawURL)
	f.cond.Signal()
	return true
}

// TryClaim removes and returns the oldest pending URL without waiting.
// The caller must call Done once it has finished with the URL.
func (f *Frontier) TryClaim() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.popLocked()
}

// Claim removes and returns the oldest pending URL, waiting while the queue
// is empty but other claimed URLs are still in flight (they may offer more).
// It returns false when the frontier is drained or ctx is done.
// The caller must call Done once it has finished with a claimed URL.
func (f *Frontier) Claim(ctx context.Context) (string, bool) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return "", false
		}
		if u, ok := f.popLocked(); ok {
			return u, true
		}
		if f.drained || f.inFlight == 0 {
			f.drained = true
			f.cond.Broadcast()
			return "", false
		}
		f.cond.Wait()
	}
}

// Done marks one claimed URL as finished. Any offers it produced must be
// made before calling Done so that waiting claimers see them.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		f.inFlight--
	}
	if f.inFlight == 0 || len(f.queue) > 0 {
		f.cond.Broadcast()
	}
}

// Exhausted reports whether every budgeted URL has been claimed.
func (f *Frontier) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimed >= f.budget
}

// Drained reports whether the frontier has terminated.
func (f *Frontier) Drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drained
}

// Snapshot returns the current counters.
func (f *Frontier) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		Queued:   len(f.queue),
		Seen:     len(f.seen),
		Claimed:  f.claimed,
		InFlight: f.inFlight,
		Budget:   f.budget,
	}
}

func (f *Frontier) popLocked() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	f.claimed++
	f.inFlight++
	return u, true
}

// Normalize returns the dedup key for a URL.
// Fragments are dropped, scheme and host are lowercased, and an empty path
// becomes "/", so http://Example.com and http://example.com/#top collide.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	return u.String()
}
