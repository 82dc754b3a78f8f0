package crawler

import "errors"

var (
	// ErrConfiguration wraps every error that rejects a crawl before any fetch.
	ErrConfiguration = errors.New("crawl configuration error")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("concurrency must be positive")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("max pages must be positive")

	// ErrInvalidDelay is returned when the delay is negative.
	ErrInvalidDelay = errors.New("delay must be non-negative")

	// ErrNoFetcher is returned when no fetcher is supplied.
	ErrNoFetcher = errors.New("fetcher is required")

	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("crawl already started")

	// ErrParse is recorded when a parser panics on a page body.
	ErrParse = errors.New("page parse failed")
)
