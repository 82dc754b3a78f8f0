package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nao1215/minicrawler/internal/site"
)

// Defaults holds the crawl settings applied to every site unless a site
// entry overrides them.
type Defaults struct {
	// Concurrency is the number of workers. Zero means unset.
	Concurrency int `yaml:"concurrency,omitempty"`

	// MaxPages is the page budget. Zero means unset.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Delay is the minimum spacing between fetch starts. Nil means unset,
	// so that an explicit 0 can disable rate limiting.
	Delay *Duration `yaml:"delay,omitempty"`

	// Timeout is the per-request timeout. Nil means unset.
	Timeout *Duration `yaml:"timeout,omitempty"`

	// UserAgent replaces the default User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Proxy is a proxy URL such as socks5://127.0.0.1:1080.
	Proxy string `yaml:"proxy,omitempty"`
}

// SiteConfig holds the settings for one site profile.
type SiteConfig struct {
	// BaseURL overrides the profile's base URL, used to resolve next-page links.
	BaseURL string `yaml:"baseURL,omitempty"`

	// StartURL overrides the first page. When BaseURL is set and StartURL is
	// not, the crawl starts at BaseURL.
	StartURL string `yaml:"startURL,omitempty"`

	// Concurrency overrides the default concurrency for this site.
	Concurrency int `yaml:"concurrency,omitempty"`

	// MaxPages overrides the default page budget for this site.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Delay overrides the default delay for this site.
	Delay *Duration `yaml:"delay,omitempty"`

	// Headers are merged over the default headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Seeds are extra listing pages crawled alongside the start page,
	// e.g. one per category. They count against the page budget.
	Seeds []string `yaml:"seeds,omitempty"`
}

// File represents the structure of the .minicrawler configuration file.
type File struct {
	// Defaults applies to all sites.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Sites maps site ids ("quotes", "books") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the settings for a site id with the file defaults
// filled in where the site entry leaves a field unset.
func (cf *File) GetSiteConfig(id string) SiteConfig {
	result := SiteConfig{
		Concurrency: cf.Defaults.Concurrency,
		MaxPages:    cf.Defaults.MaxPages,
		Delay:       cf.Defaults.Delay,
		Headers:     maps.Clone(cf.Defaults.Headers),
	}

	sc, ok := cf.Sites[id]
	if !ok {
		return result
	}
	result.BaseURL = sc.BaseURL
	result.StartURL = sc.StartURL
	result.Seeds = slices.Clone(sc.Seeds)
	if sc.Concurrency != 0 {
		result.Concurrency = sc.Concurrency
	}
	if sc.MaxPages != 0 {
		result.MaxPages = sc.MaxPages
	}
	if sc.Delay != nil {
		result.Delay = sc.Delay
	}
	if len(sc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(sc.Headers))
		}
		maps.Copy(result.Headers, sc.Headers)
	}
	return result
}

// ApplySites applies the base and start URL overrides of every site entry
// to reg. An entry naming an unknown site is an error.
func (cf *File) ApplySites(reg *site.Registry) error {
	for _, id := range slices.Sorted(maps.Keys(cf.Sites)) {
		sc := cf.Sites[id]
		if sc.BaseURL == "" && sc.StartURL == "" {
			if _, err := reg.Resolve(id); err != nil {
				return fmt.Errorf("config file: %w", err)
			}
			continue
		}
		err := reg.Apply(id, site.Override{BaseURL: sc.BaseURL, StartURL: sc.StartURL})
		if err != nil {
			return fmt.Errorf("config file: %w", err)
		}
	}
	return nil
}
