// Package fetcher performs the network GET for one page.
//
// The crawler depends only on the Fetcher interface. HTTPFetcher is the
// production implementation: it bounds every request with a timeout, limits
// the body size, decodes the body to UTF-8, and can route through a SOCKS5
// proxy. Any non-success is returned as an error classified by the
// sentinels in errors.go.
package fetcher
