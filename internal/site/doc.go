// Package site maps a site identifier to its crawl profile: the base URL
// used to resolve links, the first page to fetch, and the parser that
// understands the site's markup.
package site
