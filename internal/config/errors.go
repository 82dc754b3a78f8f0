package config

import (
	"errors"

	"github.com/nao1215/minicrawler/internal/crawler"
	"github.com/nao1215/minicrawler/internal/site"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be matched with errors.Is.
var (
	// ErrUnknownSite is returned when the site id matches no profile.
	// It is the same value as site.ErrUnknownSite.
	ErrUnknownSite = site.ErrUnknownSite

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidDelay is returned when the delay between requests is negative.
	// Use 0 for no delay.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidDuration is returned when a delay or timeout string cannot be parsed.
	ErrInvalidDuration = errors.New("invalid duration")
)

// configurationErrors are the errors that reject a crawl before any fetch.
var configurationErrors = []error{
	ErrUnknownSite,
	ErrInvalidConcurrency,
	ErrInvalidMaxPages,
	ErrInvalidDelay,
	ErrInvalidTimeout,
	ErrInvalidMaxBodySize,
	ErrConflictingReportFormats,
	ErrInvalidDuration,
	site.ErrInvalidProfile,
	crawler.ErrConfiguration,
}

// IsConfigurationError reports whether err was caused by invalid configuration.
func IsConfigurationError(err error) bool {
	for _, target := range configurationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
