// Package crawler runs a bounded-concurrency, pagination-following crawl of
// one site profile.
//
// A Crawler owns the frontier, the page budget, the result accumulator, and
// the stats counters. It launches a fixed pool of workers; each worker
// claims a URL, waits for the shared rate limiter, fetches, parses, records
// the outcome, and offers the discovered next-page URL back to the frontier.
// The crawl ends when the frontier is empty and no worker is mid-page.
//
// The crawl moves through the states Idle, Seeded, Running, Draining, and
// Done. Draining begins when the whole page budget has been claimed: no
// further URL is accepted, but pages already claimed finish and are counted.
package crawler
