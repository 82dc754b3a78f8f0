// Package main provides the entry point for the minicrawler CLI.
//
// minicrawler crawls a paginated listing site with a bounded pool of
// workers, extracts structured records from each page, and reports what it
// collected.
//
// Usage:
//
//	minicrawler run --site quotes
//	minicrawler run --site books --concurrency 3 --max-pages 10 --delay 0.5
//	minicrawler history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
