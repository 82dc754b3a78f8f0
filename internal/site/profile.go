package site

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/minicrawler/internal/parser"
)

// Kind identifies a built-in site profile.
type Kind string

// Built-in site identifiers.
const (
	// Quotes is the quotes.toscrape.com listing.
	Quotes Kind = "quotes"

	// Books is the books.toscrape.com catalogue.
	Books Kind = "books"
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Profile binds a site identifier to its URLs and parsing capability.
// Profiles are immutable once resolved.
type Profile struct {
	// ID is the site identifier.
	ID Kind

	// BaseURL is handed to the parser to resolve relative links.
	BaseURL string

	// StartURL is the first page of the listing. Empty means BaseURL.
	StartURL string

	// Parser extracts records and the next link from this site's pages.
	Parser parser.Parser
}

// FirstPage returns the URL the crawl is seeded with.
func (p Profile) FirstPage() string {
	if p.StartURL != "" {
		return p.StartURL
	}
	return p.BaseURL
}

// Validate checks that the profile can drive a crawl.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidProfile)
	}
	if p.Parser == nil {
		return fmt.Errorf("%w: %s has no parser", ErrInvalidProfile, p.ID)
	}
	for _, raw := range []string{p.BaseURL, p.FirstPage()} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %s has bad url %q", ErrInvalidProfile, p.ID, raw)
		}
	}
	return nil
}

// Override replaces the URLs of a registered profile.
// Empty fields keep the built-in value.
type Override struct {
	BaseURL  string
	StartURL string
}

// Registry is the lookup table of known profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[Kind]Profile
}

// NewRegistry creates a registry pre-populated with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[Kind]Profile)}
	for _, p := range Builtin() {
		r.profiles[p.ID] = p
	}
	return r
}

// Builtin returns the profiles compiled into the binary.
func Builtin() []Profile {
	return []Profile{
		{
			ID:      Quotes,
			BaseURL: "https://quotes.toscrape.com",
			Parser:  parser.NewQuotes(),
		},
		{
			ID:       Books,
			BaseURL:  "https://books.toscrape.com/catalogue/",
			StartURL: "https://books.toscrape.com/catalogue/page-1.html",
			Parser:   parser.NewBooks(),
		},
	}
}

// Register adds or replaces a profile.
func (r *Registry) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
	return nil
}

// Apply rewrites the URLs of an already registered profile.
func (r *Registry) Apply(id string, o Override) error {
	p, err := r.Resolve(id)
	if err != nil {
		return err
	}
	if o.BaseURL != "" {
		p.BaseURL = o.BaseURL
		if o.StartURL == "" {
			p.StartURL = ""
		}
	}
	if o.StartURL != "" {
		p.StartURL = o.StartURL
	}
	return r.Register(p)
}

// Resolve returns the profile registered under id.
// Identifiers are matched case-insensitively.
func (r *Registry) Resolve(id string) (Profile, error) {
	key := Kind(strings.ToLower(strings.TrimSpace(id)))

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[key]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownSite, id, strings.Join(r.idsLocked(), ", "))
	}
	return p, nil
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idsLocked()
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return ids
}

// Resolve looks up id among the built-in profiles.
func Resolve(id string) (Profile, error) {
	return NewRegistry().Resolve(id)
}
