package model

import "time"

// Stats holds per-crawl page accounting.
// SuccessfulPages + FailedPages always equals TotalPagesAttempted.
type Stats struct {
	SuccessfulPages     int `json:"successful_pages"`
	FailedPages         int `json:"failed_pages"`
	TotalPagesAttempted int `json:"total_pages_attempted"`
}

// Result is the aggregated output of one crawl.
// It is assembled once when the crawl reaches its final state and is not
// mutated afterwards.
type Result struct {
	// Site is the profile identifier that was crawled.
	Site string `json:"site"`

	// Records holds every extracted record in worker completion order.
	Records []Record `json:"records"`

	// Stats is the page accounting for the crawl.
	Stats Stats `json:"stats"`

	// Failures lists each failed page with its reason.
	Failures []PageFailure `json:"failures,omitempty"`

	// StartedAt is when the crawl was seeded.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last worker exited.
	FinishedAt time.Time `json:"finished_at"`
}

// NewResult creates an empty result for the given site.
func NewResult(site string) *Result {
	return &Result{
		Site:     site,
		Records:  make([]Record, 0),
		Failures: make([]PageFailure, 0),
	}
}

// Duration returns how long the crawl ran.
func (r *Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordCount returns the number of collected records.
func (r *Result) RecordCount() int {
	return len(r.Records)
}
