package crawler

import (
	"time"

	"github.com/nao1215/minicrawler/internal/model"
)

// Observer receives crawl events. Calls come from worker goroutines and
// must be safe for concurrent use; they must not block.
type Observer interface {
	// StateChanged is called after each state transition.
	StateChanged(from, to State)

	// FetchStarted is called when a worker begins a fetch, after rate limiting.
	// at is the start time recorded by the rate limiter.
	FetchStarted(pageURL string, at time.Time)

	// PageCompleted is called once per claimed page with its outcome.
	PageCompleted(outcome model.PageOutcome, elapsed time.Duration)
}

// NopObserver ignores all events.
type NopObserver struct{}

// StateChanged implements Observer.
func (NopObserver) StateChanged(State, State) {}

// FetchStarted implements Observer.
func (NopObserver) FetchStarted(string, time.Time) {}

// PageCompleted implements Observer.
func (NopObserver) PageCompleted(model.PageOutcome, time.Duration) {}
