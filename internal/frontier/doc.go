// Package frontier holds the pending URLs of a crawl and the set of every
// URL ever enqueued.
//
// The frontier is also the crawl's budget keeper and termination detector:
// a URL is accepted only while fewer than the budget have been enqueued, and
// blocking claims end once the queue is empty and no claimed URL is still
// being processed.
package frontier
