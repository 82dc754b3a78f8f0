package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
)

// Fetcher retrieves the body of one page.
// Implementations must bound the request duration themselves.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Func adapts an ordinary function to the Fetcher interface.
type Func func(ctx context.Context, pageURL string) (string, error)

// Fetch calls f(ctx, pageURL).
func (f Func) Fetch(ctx context.Context, pageURL string) (string, error) {
	return f(ctx, pageURL)
}

// Defaults for HTTPFetcher.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 5 * 1024 * 1024
	DefaultUserAgent   = "minicrawler"
)

// HTTPFetcher fetches pages over HTTP(S).
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	headers     map[string]string
	maxBodySize int64
	proxyURL    string
	logger      *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout bounds each request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders adds custom request headers.
func WithHeaders(h map[string]string) Option {
	return func(f *HTTPFetcher) {
		for k, v := range h {
			f.headers[k] = v
		}
	}
}

// WithMaxBodySize limits how many bytes of the body are read.
func WithMaxBodySize(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithProxy routes requests through a SOCKS5 proxy, e.g. socks5://127.0.0.1:1080.
func WithProxy(rawURL string) Option {
	return func(f *HTTPFetcher) {
		f.proxyURL = rawURL
	}
}

// WithHTTPClient replaces the underlying client. WithProxy is ignored when set.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = l
	}
}

// New creates an HTTPFetcher.
func New(opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	if f.client == nil {
		transport, err := newTransport(f.proxyURL)
		if err != nil {
			return nil, err
		}
		f.client = &http.Client{Transport: transport}
	}
	return f, nil
}

// newTransport builds the HTTP transport, optionally dialing through a proxy.
func newTransport(proxyURL string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}
	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}

	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return transport, nil
}

// Fetch performs one GET and returns the decoded body.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", classify(ctx, err)
	}
	defer resp.Body.Close()

	f.logger.Debug("fetched page",
		"url", pageURL,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return "", &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body := io.LimitReader(resp.Body, f.maxBodySize)
	reader, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: decode body: %w", ErrNetwork, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", classify(ctx, err)
	}
	return string(data), nil
}

// classify maps a transport error onto the fetcher sentinels.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
