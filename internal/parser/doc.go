// Package parser extracts structured records and the next-page link from
// listing pages.
//
// Parsers never fail: empty bodies, malformed HTML, and pages without the
// expected structure all yield zero records and no next URL. Selectors are
// evaluated with goquery on top of the golang.org/x/net/html DOM.
package parser
