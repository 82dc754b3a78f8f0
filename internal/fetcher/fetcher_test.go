package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestHTTPFetcherFetch tests the HTTP fetcher against a local server.
func TestHTTPFetcherFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and sends headers", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html>ok</html>"))
		}))
		defer server.Close()

		f, err := New(WithUserAgent("test-agent"), WithHeaders(map[string]string{"X-Test": "1"}))
		if err != nil {
			t.Fatalf("failed to create fetcher: %v", err)
		}

		body, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "<html>ok</html>" {
			t.Errorf("unexpected body %q", body)
		}
		got := <-headers
		if gotUA := got.Get("User-Agent"); gotUA != "test-agent" {
			t.Errorf("expected user agent test-agent, got %q", gotUA)
		}
		if gotCustom := got.Get("X-Test"); gotCustom != "1" {
			t.Errorf("expected custom header, got %q", gotCustom)
		}
	})

	t.Run("decodes latin-1 body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte{'<', 'p', '>', 0xA3, '5', '<', '/', 'p', '>'})
		}))
		defer server.Close()

		f, err := New()
		if err != nil {
			t.Fatalf("failed to create fetcher: %v", err)
		}
		body, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "<p>£5</p>" {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("status error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f, err := New()
		if err != nil {
			t.Fatalf("failed to create fetcher: %v", err)
		}
		_, err = f.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrHTTPStatus) {
			t.Fatalf("expected ErrHTTPStatus, got %v", err)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Errorf("expected StatusError with 404, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		f, err := New(WithTimeout(50 * time.Millisecond))
		if err != nil {
			t.Fatalf("failed to create fetcher: %v", err)
		}
		_, err = f.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("connection refused is a network error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		f, err := New()
		if err != nil {
			t.Fatalf("failed to create fetcher: %v", err)
		}
		_, err = f.Fetch(context.Background(), addr)
		if !errors.Is(err, ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("body is truncated at limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		}))
		defer server.Close()

		f, err := New(WithMaxBodySize(10))
		if err != nil {
			t.Fatalf("failed to create fetcher: %v", err)
		}
		body, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(body))
		}
	})
}

// TestNewProxy tests proxy configuration.
func TestNewProxy(t *testing.T) {
	t.Parallel()

	t.Run("socks5 proxy is accepted", func(t *testing.T) {
		t.Parallel()

		if _, err := New(WithProxy("socks5://127.0.0.1:1080")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unsupported scheme is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithProxy("gopher://127.0.0.1:70"))
		if !errors.Is(err, ErrInvalidProxy) {
			t.Errorf("expected ErrInvalidProxy, got %v", err)
		}
	})
}

// TestStatusError tests the status error message.
func TestStatusError(t *testing.T) {
	t.Parallel()

	err := &StatusError{URL: "http://a.test/", StatusCode: 503}
	if !strings.Contains(err.Error(), "503 Service Unavailable") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
