package model

// PageOutcome is the result of one fetch attempt.
// It is produced by a worker and consumed immediately by the crawler;
// exactly one of Err or the success fields is meaningful.
type PageOutcome struct {
	// URL is the page that was attempted.
	URL string

	// Records are the items extracted from the page, in page order.
	Records []Record

	// NextURL is the discovered next-page link. Empty means none.
	NextURL string

	// Err is the failure reason. Nil means the page succeeded.
	Err error

	// Fetched reports whether the request was issued. It is false when the
	// crawl was cancelled while the page waited for the rate limiter.
	Fetched bool
}

// Succeeded reports whether the attempt produced a parsed page.
func (o PageOutcome) Succeeded() bool {
	return o.Err == nil
}

// PageFailure records a page that could not be fetched or parsed.
type PageFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}
