// Package model defines the data structures shared by the crawler, the
// report writers, and the run history database.
//
// This package contains the following main types:
//   - Record: one schema-agnostic item extracted from a page
//   - PageOutcome: the transient result of a single fetch attempt
//   - Stats and Result: the aggregated output of a crawl
//
// The types are serializable to JSON for report output and database storage.
package model
